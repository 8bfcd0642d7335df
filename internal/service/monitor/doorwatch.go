package monitor

import (
	"context"
	"time"

	domain "github.com/oshokin/equipment-monitor/internal/domain/equipment"
	"github.com/oshokin/equipment-monitor/internal/logger"
)

// doorTimer is one armed door-open countdown. The handle identity is what
// tells an expired instance apart from a replacement armed after it: an
// expiry callback may only alarm while its own handle still owns the map
// entry for the equipment.
type doorTimer struct {
	// timer is the underlying countdown.
	timer *time.Timer
}

// startDoorTimerLocked arms the door-open timer for the equipment.
// Idempotent: a second start while a timer is pending is ignored.
// Callers must hold mu.
func (s *Service) startDoorTimerLocked(ctx context.Context, e *domain.Equipment) {
	if !e.Door.EnableSiren {
		logger.DebugKV(ctx, "Siren disabled, door timer not started", "equipment_id", e.ID)

		return
	}

	if _, pending := s.timers[e.ID]; pending {
		return
	}

	id := e.ID
	handle := &doorTimer{}

	handle.timer = time.AfterFunc(e.Door.OpenTimeout, func() {
		s.onDoorTimeout(ctx, id, handle)
	})

	s.timers[id] = handle

	logger.DebugKV(ctx, "Door timer started", "equipment_id", id, "timeout", e.Door.OpenTimeout.String())
}

// cancelDoorTimerLocked stops and forgets the pending timer, if any.
// Safe to call when no timer exists. Callers must hold mu.
func (s *Service) cancelDoorTimerLocked(id string) {
	handle, ok := s.timers[id]
	if !ok {
		return
	}

	handle.timer.Stop()
	delete(s.timers, id)
}

// onDoorTimeout fires when the configured open-timeout elapses.
// The expiry is only honored while the firing handle still owns the map
// entry and the door is still open, both re-checked under the lock: a
// callback that expired but lost the race against a cancellation (or
// against a fresh timer armed in its place) never alarms.
func (s *Service) onDoorTimeout(ctx context.Context, id string, fired *doorTimer) {
	s.mu.Lock()

	if current, pending := s.timers[id]; !pending || current != fired {
		// Cancelled or replaced between expiry and lock acquisition.
		s.mu.Unlock()

		return
	}

	delete(s.timers, id)

	runtime, ok := s.states[id]
	if !ok || !runtime.DoorOpen {
		s.mu.Unlock()

		return
	}

	s.activateSirenLocked(runtime, domain.ReasonDoorTimeout)
	s.mu.Unlock()

	logger.WarnKV(ctx, "Door open timeout elapsed, siren triggered", "equipment_id", id)

	s.actuateSiren(ctx, id, true)
}

// TriggerSiren switches the siren on explicitly, independent of door timers.
func (s *Service) TriggerSiren(ctx context.Context, id string) error {
	s.mu.Lock()

	runtime, ok := s.states[id]
	if !ok {
		s.mu.Unlock()

		return ErrEquipmentNotFound
	}

	s.activateSirenLocked(runtime, domain.ReasonManual)
	s.mu.Unlock()

	logger.InfoKV(ctx, "Siren triggered manually", "equipment_id", id)

	s.actuateSiren(ctx, id, true)

	return nil
}

// SilenceSiren switches the siren off and reverts the status to OK.
// When the door is still physically open a fresh timer of full duration is
// armed, so the door never goes silently unmonitored.
func (s *Service) SilenceSiren(ctx context.Context, id string) error {
	s.mu.Lock()

	runtime, ok := s.states[id]
	if !ok {
		s.mu.Unlock()

		return ErrEquipmentNotFound
	}

	s.cancelDoorTimerLocked(id)

	runtime.SirenActive = false
	runtime.SirenDetail = domain.SirenDetail{}
	runtime.Status = domain.StatusOK
	runtime.StatusDetail = domain.StatusDetail{}

	if runtime.DoorOpen {
		s.startDoorTimerLocked(ctx, s.equipments[id])
	}

	s.mu.Unlock()

	logger.InfoKV(ctx, "Siren silenced", "equipment_id", id)

	s.actuateSiren(ctx, id, false)

	return nil
}

// activateSirenLocked records the alarm state. Callers must hold mu.
func (s *Service) activateSirenLocked(runtime *domain.RuntimeState, reason string) {
	now := time.Now().UTC()

	runtime.SirenActive = true
	runtime.SirenDetail = domain.SirenDetail{
		Reason:      reason,
		TriggeredAt: now,
	}
	runtime.Status = domain.StatusDoorOpenAlarm
	runtime.StatusDetail = domain.StatusDetail{Reason: reason}
}

// actuateSiren delegates to the physical actuator, outside the lock.
// An absent sink is a no-op; failures are logged, never propagated.
func (s *Service) actuateSiren(ctx context.Context, id string, on bool) {
	if s.actuator == nil {
		return
	}

	var err error
	if on {
		err = s.actuator.SirenOn(ctx, id)
	} else {
		err = s.actuator.SirenOff(ctx, id)
	}

	if err != nil {
		logger.WarnKV(ctx, "Siren actuation failed", "equipment_id", id, "on", on, "error", err)
	}
}
