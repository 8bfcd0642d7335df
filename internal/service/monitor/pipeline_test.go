package monitor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/equipment-monitor/internal/config"
	domain "github.com/oshokin/equipment-monitor/internal/domain/equipment"
	"github.com/oshokin/equipment-monitor/internal/repository/queue"
)

// floatPtr is a test helper for nullable bounds.
func floatPtr(v float64) *float64 {
	return &v
}

// TestHandleSensorUpdate_AppendsEventPerUpdate verifies every interpreted
// update enqueues exactly one event, even without a state change.
func TestHandleSensorUpdate_AppendsEventPerUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, testEquipment(time.Minute))

	require.NoError(t, f.service.HandleSensorUpdate(ctx, "switch.freezer_power", "on", nil, time.Now()))
	require.NoError(t, f.service.HandleSensorUpdate(ctx, "switch.freezer_power", "on", nil, time.Now()))
	require.Equal(t, 2, f.service.QueueSize())

	events := f.queue.Snapshot()
	require.Equal(t, "freezer-1", events[0].EquipmentID)
	require.Equal(t, domain.SensorEnergy, events[0].SensorType)
	require.NotEqual(t, events[0].ID, events[1].ID)
}

// lockCheckingStore wraps the queue store and records whether the service
// state lock was still held when Append ran.
type lockCheckingStore struct {
	queue.Store

	svc         *Service
	lockWasHeld bool
}

// Append records whether the service lock is held, then delegates.
func (l *lockCheckingStore) Append(ctx context.Context, event domain.Event) error {
	if l.svc.mu.TryLock() {
		l.svc.mu.Unlock()
	} else {
		l.lockWasHeld = true
	}

	return l.Store.Append(ctx, event)
}

// TestHandleSensorUpdate_AppendsUnderStateLock verifies the enqueue happens
// atomically with the state change, so two concurrent callers can never
// enqueue in inverted order relative to the state transitions they caused.
func TestHandleSensorUpdate_AppendsUnderStateLock(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &lockCheckingStore{
		Store: queue.NewFileStore(filepath.Join(t.TempDir(), "queue.json")),
	}

	repo := &memoryRepository{equipments: []*domain.Equipment{testEquipment(time.Minute)}}
	cfg := &config.Config{SyncInterval: time.Minute}

	svc, err := NewService(ctx, cfg, repo, store, new(fakeAPI), nil)
	require.NoError(t, err)

	store.svc = svc

	require.NoError(t, svc.HandleSensorUpdate(ctx, "switch.freezer_power", "on", nil, time.Now()))
	require.True(t, store.lockWasHeld)
	require.Equal(t, 1, svc.QueueSize())
}

// TestHandleSensorUpdate_UnboundEntityIgnored verifies unbound sources produce nothing.
func TestHandleSensorUpdate_UnboundEntityIgnored(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, testEquipment(time.Minute))

	require.NoError(t, f.service.HandleSensorUpdate(ctx, "sensor.unrelated", "42", nil, time.Now()))
	require.Zero(t, f.service.QueueSize())
}

// TestHandleSensorUpdate_DisabledEquipmentIgnored verifies the enabled gate.
func TestHandleSensorUpdate_DisabledEquipmentIgnored(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := testEquipment(time.Minute)
	e.Enabled = false

	f := newFixture(t, e)

	require.NoError(t, f.service.HandleSensorUpdate(ctx, "binary_sensor.freezer_door", "on", nil, time.Now()))
	require.Zero(t, f.service.QueueSize())

	_, state, err := f.service.EquipmentState("freezer-1")
	require.NoError(t, err)
	require.False(t, state.DoorOpen)
}

// TestHandleSensorUpdate_UnparsableNumericDropped verifies unknown/unavailable
// sentinel states are swallowed without an event or an error.
func TestHandleSensorUpdate_UnparsableNumericDropped(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, testEquipment(time.Minute))

	require.NoError(t, f.service.HandleSensorUpdate(ctx, "sensor.freezer_temp", "unavailable", nil, time.Now()))
	require.NoError(t, f.service.HandleSensorUpdate(ctx, "sensor.freezer_humidity", "unknown", nil, time.Now()))
	require.Zero(t, f.service.QueueSize())

	_, state, err := f.service.EquipmentState("freezer-1")
	require.NoError(t, err)
	require.Nil(t, state.Temperature)
	require.Nil(t, state.Humidity)
}

// TestHandleSensorUpdate_NumericReadings stores parsed values.
func TestHandleSensorUpdate_NumericReadings(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, testEquipment(time.Minute))

	require.NoError(t, f.service.HandleSensorUpdate(ctx, "sensor.freezer_temp", "-18.5", nil, time.Now()))
	require.NoError(t, f.service.HandleSensorUpdate(ctx, "sensor.freezer_humidity", "61", nil, time.Now()))

	_, state, err := f.service.EquipmentState("freezer-1")
	require.NoError(t, err)
	require.InDelta(t, -18.5, *state.Temperature, 0.001)
	require.InDelta(t, 61.0, *state.Humidity, 0.001)
	require.Equal(t, 2, f.service.QueueSize())
}

// TestHandleSensorUpdate_EnergyAttributePassthrough keeps the raw payload.
func TestHandleSensorUpdate_EnergyAttributePassthrough(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, testEquipment(time.Minute))

	attrs := map[string]any{
		"power":   112.4,
		"voltage": 229.8,
		"current": 0.49,
	}

	require.NoError(t, f.service.HandleSensorUpdate(ctx, "switch.freezer_power", "on", attrs, time.Now()))

	_, state, err := f.service.EquipmentState("freezer-1")
	require.NoError(t, err)
	require.True(t, state.EnergyOn)
	require.Equal(t, attrs, state.EnergyAttributes)
}

// TestTemperatureAlert_BoundsAndDetail is the threshold property:
// readings strictly inside [min, max] never alert; outside readings carry the
// exact reason, value and violated bound.
func TestTemperatureAlert_BoundsAndDetail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := testEquipment(time.Minute)
	e.Temperature = domain.TemperatureConfig{
		Enabled: true,
		Min:     floatPtr(-22),
		Max:     floatPtr(-16),
	}

	f := newFixture(t, e)

	// Above max: -10 > -16.
	require.NoError(t, f.service.HandleSensorUpdate(ctx, "sensor.freezer_temp", "-10", nil, time.Now()))

	_, state, err := f.service.EquipmentState("freezer-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusTemperatureAlert, state.Status)
	require.Equal(t, domain.ReasonAboveMax, state.StatusDetail.Reason)
	require.InDelta(t, -10.0, *state.StatusDetail.Value, 0.001)
	require.InDelta(t, -16.0, *state.StatusDetail.Max, 0.001)

	// Back in range: -18 resets to OK.
	require.NoError(t, f.service.HandleSensorUpdate(ctx, "sensor.freezer_temp", "-18", nil, time.Now()))

	_, state, err = f.service.EquipmentState("freezer-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusOK, state.Status)
	require.Empty(t, state.StatusDetail.Reason)

	// Below min: -30 < -22.
	require.NoError(t, f.service.HandleSensorUpdate(ctx, "sensor.freezer_temp", "-30", nil, time.Now()))

	_, state, err = f.service.EquipmentState("freezer-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusTemperatureAlert, state.Status)
	require.Equal(t, domain.ReasonBelowMin, state.StatusDetail.Reason)
	require.InDelta(t, -30.0, *state.StatusDetail.Value, 0.001)
	require.InDelta(t, -22.0, *state.StatusDetail.Min, 0.001)
}

// TestTemperatureAlert_ActiveAlarmBlocksReset verifies an in-range reading
// does not clear an active siren alarm.
func TestTemperatureAlert_ActiveAlarmBlocksReset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := testEquipment(time.Minute)
	e.Temperature = domain.TemperatureConfig{
		Enabled: true,
		Max:     floatPtr(-16),
	}

	f := newFixture(t, e)

	require.NoError(t, f.service.TriggerSiren(ctx, "freezer-1"))

	require.NoError(t, f.service.HandleSensorUpdate(ctx, "sensor.freezer_temp", "-18", nil, time.Now()))

	_, state, err := f.service.EquipmentState("freezer-1")
	require.NoError(t, err)
	require.True(t, state.SirenActive)
	require.Equal(t, domain.StatusDoorOpenAlarm, state.Status)
}

// TestTemperatureAlert_DisabledConfigNeverAlerts verifies evaluation is gated
// on the enabled flag.
func TestTemperatureAlert_DisabledConfigNeverAlerts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := testEquipment(time.Minute)
	e.Temperature = domain.TemperatureConfig{
		Enabled: false,
		Max:     floatPtr(-16),
	}

	f := newFixture(t, e)

	require.NoError(t, f.service.HandleSensorUpdate(ctx, "sensor.freezer_temp", "0", nil, time.Now()))

	_, state, err := f.service.EquipmentState("freezer-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusOK, state.Status)
}

// TestDoorUpdate_RecordsOpenSince verifies the open_since attribute is stamped
// on opening and cleared on closing.
func TestDoorUpdate_RecordsOpenSince(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, testEquipment(time.Minute))

	openedAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	require.NoError(t, f.service.HandleSensorUpdate(ctx, "binary_sensor.freezer_door", "on", nil, openedAt))

	_, state, err := f.service.EquipmentState("freezer-1")
	require.NoError(t, err)
	require.True(t, state.DoorOpen)
	require.Equal(t, "2026-08-30T12:00:00Z", state.DoorAttributes[domain.AttrOpenSince])

	require.NoError(t, f.service.HandleSensorUpdate(ctx, "binary_sensor.freezer_door", "off", nil, time.Now()))

	_, state, err = f.service.EquipmentState("freezer-1")
	require.NoError(t, err)
	require.False(t, state.DoorOpen)
	require.Empty(t, state.DoorAttributes)
}
