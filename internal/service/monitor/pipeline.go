package monitor

import (
	"context"
	"strconv"
	"time"

	domain "github.com/oshokin/equipment-monitor/internal/domain/equipment"
	"github.com/oshokin/equipment-monitor/internal/logger"
)

// HandleSensorUpdate normalizes one state-change notification from the bus.
//
// Updates for unbound entities and disabled equipment are ignored. Unparsable
// numeric readings are dropped silently (the source reports unknown/unavailable
// sentinels that way). Every interpreted update appends exactly one event to
// the queue, even when the derived state did not change: the queue is an
// append-only log, not a diff. The append happens before the state lock is
// released, so concurrent callers (bus and HTTP) enqueue in the same order
// their state changes were applied.
func (s *Service) HandleSensorUpdate(
	ctx context.Context,
	entityID string,
	state string,
	attributes map[string]any,
	timestamp time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bindings[entityID]
	if !ok {
		logger.DebugKV(ctx, "Ignoring update for unbound entity", "entity_id", entityID)

		return nil
	}

	e := s.equipments[b.equipmentID]
	if !e.Enabled {
		logger.DebugKV(ctx, "Ignoring update for disabled equipment", "equipment_id", b.equipmentID)

		return nil
	}

	runtime := s.states[b.equipmentID]

	switch b.sensorType {
	case domain.SensorDoor:
		s.applyDoorUpdate(ctx, e, runtime, state, timestamp)

	case domain.SensorEnergy:
		runtime.EnergyOn = state == "on"
		runtime.EnergyAttributes = attributes

	case domain.SensorTemperature:
		value, err := strconv.ParseFloat(state, 64)
		if err != nil {
			logger.DebugKV(ctx, "Dropping unparsable temperature reading",
				"equipment_id", b.equipmentID, "state", state)

			return nil
		}

		runtime.Temperature = &value
		s.evaluateTemperatureLocked(e, runtime)

	case domain.SensorHumidity:
		value, err := strconv.ParseFloat(state, 64)
		if err != nil {
			logger.DebugKV(ctx, "Dropping unparsable humidity reading",
				"equipment_id", b.equipmentID, "state", state)

			return nil
		}

		runtime.Humidity = &value
	}

	return s.queue.Append(ctx, domain.NewEvent(b.equipmentID, b.sensorType, state, attributes, timestamp))
}

// applyDoorUpdate interprets a door state change and drives the door watch.
// Callers must hold mu.
func (s *Service) applyDoorUpdate(
	ctx context.Context,
	e *domain.Equipment,
	runtime *domain.RuntimeState,
	state string,
	timestamp time.Time,
) {
	isOpen := state == "on"
	runtime.DoorOpen = isOpen

	if isOpen {
		runtime.DoorAttributes = map[string]any{
			domain.AttrOpenSince: timestamp.UTC().Format(time.RFC3339),
		}

		s.startDoorTimerLocked(ctx, e)

		return
	}

	runtime.DoorAttributes = map[string]any{}
	s.cancelDoorTimerLocked(e.ID)

	// An active siren keeps the alarm status until silenced.
	if !runtime.SirenActive {
		runtime.Status = domain.StatusOK
		runtime.StatusDetail = domain.StatusDetail{}
	}
}

// evaluateTemperatureLocked applies the configured thresholds to the last
// temperature reading. Callers must hold mu.
//
// Policy: any active alarm blocks the reset to OK, so a temperature back in
// range never clears a door-open alarm.
func (s *Service) evaluateTemperatureLocked(e *domain.Equipment, runtime *domain.RuntimeState) {
	cfg := e.Temperature
	if !cfg.Enabled || runtime.Temperature == nil {
		return
	}

	value := *runtime.Temperature

	switch {
	case cfg.Min != nil && value < *cfg.Min:
		runtime.Status = domain.StatusTemperatureAlert
		runtime.StatusDetail = domain.StatusDetail{
			Reason: domain.ReasonBelowMin,
			Value:  runtime.Temperature,
			Min:    cfg.Min,
		}

	case cfg.Max != nil && value > *cfg.Max:
		runtime.Status = domain.StatusTemperatureAlert
		runtime.StatusDetail = domain.StatusDetail{
			Reason: domain.ReasonAboveMax,
			Value:  runtime.Temperature,
			Max:    cfg.Max,
		}

	default:
		if !runtime.SirenActive && runtime.Status != domain.StatusDoorOpenAlarm {
			runtime.Status = domain.StatusOK
			runtime.StatusDetail = domain.StatusDetail{}
		}
	}
}
