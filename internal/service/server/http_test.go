package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/equipment-monitor/internal/domain/equipment"
	"github.com/oshokin/equipment-monitor/internal/service/monitor"
)

// fakeService records calls and serves canned responses to the handler.
type fakeService struct {
	equipments map[string]*domain.Equipment
	states     map[string]*domain.RuntimeState
	status     monitor.IntegrationStatus
	queueSize  int
	lastSync   time.Time

	addErr    error
	removeErr error
	sirenErr  error
	updateErr error

	paused       bool
	resumed      bool
	doorConfigs  map[string]domain.DoorConfig
	tempConfigs  map[string]domain.TemperatureConfig
	sensorBinds  map[string]map[domain.SensorType]string
	sirenCalls   []string
	silenceCalls []string
	updates      []fakeUpdate
}

type fakeUpdate struct {
	entityID  string
	state     string
	timestamp time.Time
}

func newFakeService() *fakeService {
	return &fakeService{
		equipments:  make(map[string]*domain.Equipment),
		states:      make(map[string]*domain.RuntimeState),
		status:      monitor.IntegrationOnline,
		doorConfigs: make(map[string]domain.DoorConfig),
		tempConfigs: make(map[string]domain.TemperatureConfig),
		sensorBinds: make(map[string]map[domain.SensorType]string),
	}
}

func (f *fakeService) EquipmentState(id string) (*domain.Equipment, *domain.RuntimeState, error) {
	e, ok := f.equipments[id]
	if !ok {
		return nil, nil, monitor.ErrEquipmentNotFound
	}

	return e, f.states[id], nil
}

func (f *fakeService) AllEquipmentStates() (map[string]*domain.Equipment, map[string]*domain.RuntimeState) {
	return f.equipments, f.states
}

func (f *fakeService) AddEquipment(_ context.Context, id, name, location string) (*domain.Equipment, error) {
	if f.addErr != nil {
		return nil, f.addErr
	}

	e := domain.New(id, name, location)
	f.equipments[id] = e

	return e, nil
}

func (f *fakeService) RemoveEquipment(_ context.Context, id string) error {
	if f.removeErr != nil {
		return f.removeErr
	}

	delete(f.equipments, id)

	return nil
}

func (f *fakeService) SetEnabled(_ context.Context, id string, enabled bool) error {
	e, ok := f.equipments[id]
	if !ok {
		return monitor.ErrEquipmentNotFound
	}

	e.Enabled = enabled

	return nil
}

func (f *fakeService) SetCollectInterval(_ context.Context, id string, interval time.Duration) error {
	e, ok := f.equipments[id]
	if !ok {
		return monitor.ErrEquipmentNotFound
	}

	e.CollectInterval = interval

	return nil
}

func (f *fakeService) SetDoorConfig(_ context.Context, id string, cfg domain.DoorConfig) error {
	if _, ok := f.equipments[id]; !ok {
		return monitor.ErrEquipmentNotFound
	}

	f.doorConfigs[id] = cfg

	return nil
}

func (f *fakeService) SetTemperatureConfig(_ context.Context, id string, cfg domain.TemperatureConfig) error {
	if _, ok := f.equipments[id]; !ok {
		return monitor.ErrEquipmentNotFound
	}

	f.tempConfigs[id] = cfg

	return nil
}

func (f *fakeService) SetSensorSource(
	_ context.Context,
	id string,
	sensorType domain.SensorType,
	entityID string,
) error {
	if _, ok := f.equipments[id]; !ok {
		return monitor.ErrEquipmentNotFound
	}

	binds, ok := f.sensorBinds[id]
	if !ok {
		binds = make(map[domain.SensorType]string)
		f.sensorBinds[id] = binds
	}

	binds[sensorType] = entityID

	return nil
}

func (f *fakeService) TriggerSiren(_ context.Context, id string) error {
	if f.sirenErr != nil {
		return f.sirenErr
	}

	f.sirenCalls = append(f.sirenCalls, id)

	return nil
}

func (f *fakeService) SilenceSiren(_ context.Context, id string) error {
	if f.sirenErr != nil {
		return f.sirenErr
	}

	f.silenceCalls = append(f.silenceCalls, id)

	return nil
}

func (f *fakeService) HandleSensorUpdate(
	_ context.Context,
	entityID, state string,
	_ map[string]any,
	ts time.Time,
) error {
	if f.updateErr != nil {
		return f.updateErr
	}

	f.updates = append(f.updates, fakeUpdate{entityID: entityID, state: state, timestamp: ts})

	return nil
}

func (f *fakeService) Pause(_ context.Context)  { f.paused = true }
func (f *fakeService) Resume(_ context.Context) { f.resumed = true }

func (f *fakeService) IntegrationStatus() monitor.IntegrationStatus { return f.status }
func (f *fakeService) QueueSize() int                               { return f.queueSize }
func (f *fakeService) LastSync() time.Time                          { return f.lastSync }

// do runs a request against a fresh handler over the given fake.
func do(t *testing.T, svc Service, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader

	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	request := httptest.NewRequest(method, target, reader)
	recorder := httptest.NewRecorder()

	NewHandler(svc).ServeHTTP(recorder, request)

	return recorder
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	recorder := do(t, newFakeService(), http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestStatus(t *testing.T) {
	t.Parallel()

	svc := newFakeService()
	svc.status = monitor.IntegrationAPIError
	svc.queueSize = 7
	svc.lastSync = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	recorder := do(t, svc, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var payload statusResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	require.Equal(t, string(monitor.IntegrationAPIError), payload.Status)
	require.Equal(t, 7, payload.QueueSize)
	require.Equal(t, "2025-06-01T12:00:00Z", payload.LastSync)
}

func TestStatusOmitsZeroLastSync(t *testing.T) {
	t.Parallel()

	recorder := do(t, newFakeService(), http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.NotContains(t, recorder.Body.String(), "last_sync")
}

func TestGetEquipment(t *testing.T) {
	t.Parallel()

	svc := newFakeService()
	svc.equipments["fridge-1"] = domain.New("fridge-1", "Fridge", "Kitchen")
	svc.states["fridge-1"] = domain.NewRuntimeState()

	recorder := do(t, svc, http.MethodGet, "/equipment/fridge-1", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var payload equipmentResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	require.Equal(t, "fridge-1", payload.Equipment.ID)
	require.Equal(t, domain.StatusOK, payload.State.Status)
}

func TestGetEquipmentNotFound(t *testing.T) {
	t.Parallel()

	recorder := do(t, newFakeService(), http.MethodGet, "/equipment/missing", nil)
	require.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestAddEquipment(t *testing.T) {
	t.Parallel()

	svc := newFakeService()

	recorder := do(t, svc, http.MethodPost, "/equipment", addEquipmentRequest{
		ID:       "fridge-1",
		Name:     "Fridge",
		Location: "Kitchen",
	})
	require.Equal(t, http.StatusCreated, recorder.Code)
	require.Contains(t, svc.equipments, "fridge-1")
}

func TestAddEquipmentConflict(t *testing.T) {
	t.Parallel()

	svc := newFakeService()
	svc.addErr = monitor.ErrEquipmentExists

	recorder := do(t, svc, http.MethodPost, "/equipment", addEquipmentRequest{ID: "fridge-1"})
	require.Equal(t, http.StatusConflict, recorder.Code)
}

func TestAddEquipmentMalformedBody(t *testing.T) {
	t.Parallel()

	request := httptest.NewRequest(http.MethodPost, "/equipment", bytes.NewReader([]byte("{broken")))
	recorder := httptest.NewRecorder()
	NewHandler(newFakeService()).ServeHTTP(recorder, request)

	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRemoveEquipment(t *testing.T) {
	t.Parallel()

	svc := newFakeService()
	svc.equipments["fridge-1"] = domain.New("fridge-1", "Fridge", "Kitchen")

	recorder := do(t, svc, http.MethodDelete, "/equipment/fridge-1", nil)
	require.Equal(t, http.StatusNoContent, recorder.Code)
	require.NotContains(t, svc.equipments, "fridge-1")
}

func TestSetDoorConfig(t *testing.T) {
	t.Parallel()

	svc := newFakeService()
	svc.equipments["fridge-1"] = domain.New("fridge-1", "Fridge", "Kitchen")

	recorder := do(t, svc, http.MethodPut, "/equipment/fridge-1/door", doorConfigRequest{
		EnableSiren: true,
		OpenTimeout: "90s",
	})
	require.Equal(t, http.StatusNoContent, recorder.Code)
	require.Equal(t, domain.DoorConfig{EnableSiren: true, OpenTimeout: 90 * time.Second}, svc.doorConfigs["fridge-1"])
}

func TestSetDoorConfigInvalidTimeout(t *testing.T) {
	t.Parallel()

	svc := newFakeService()
	svc.equipments["fridge-1"] = domain.New("fridge-1", "Fridge", "Kitchen")

	recorder := do(t, svc, http.MethodPut, "/equipment/fridge-1/door", doorConfigRequest{
		OpenTimeout: "soon",
	})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestSetSensors(t *testing.T) {
	t.Parallel()

	svc := newFakeService()
	svc.equipments["fridge-1"] = domain.New("fridge-1", "Fridge", "Kitchen")

	recorder := do(t, svc, http.MethodPut, "/equipment/fridge-1/sensors", map[domain.SensorType]string{
		domain.SensorTemperature: "sensor.fridge_temp",
		domain.SensorDoor:        "binary_sensor.fridge_door",
	})
	require.Equal(t, http.StatusNoContent, recorder.Code)
	require.Equal(t, "sensor.fridge_temp", svc.sensorBinds["fridge-1"][domain.SensorTemperature])
	require.Equal(t, "binary_sensor.fridge_door", svc.sensorBinds["fridge-1"][domain.SensorDoor])
}

func TestSirenTriggerAndSilence(t *testing.T) {
	t.Parallel()

	svc := newFakeService()

	recorder := do(t, svc, http.MethodPost, "/equipment/fridge-1/siren/trigger", nil)
	require.Equal(t, http.StatusNoContent, recorder.Code)

	recorder = do(t, svc, http.MethodPost, "/equipment/fridge-1/siren/silence", nil)
	require.Equal(t, http.StatusNoContent, recorder.Code)

	require.Equal(t, []string{"fridge-1"}, svc.sirenCalls)
	require.Equal(t, []string{"fridge-1"}, svc.silenceCalls)
}

func TestPauseAndResume(t *testing.T) {
	t.Parallel()

	svc := newFakeService()

	require.Equal(t, http.StatusNoContent, do(t, svc, http.MethodPost, "/sync/pause", nil).Code)
	require.Equal(t, http.StatusNoContent, do(t, svc, http.MethodPost, "/sync/resume", nil).Code)
	require.True(t, svc.paused)
	require.True(t, svc.resumed)
}

func TestInjectUpdate(t *testing.T) {
	t.Parallel()

	svc := newFakeService()

	recorder := do(t, svc, http.MethodPost, "/updates", updateRequest{
		EntityID:  "sensor.fridge_temp",
		State:     "4.5",
		Timestamp: "2025-06-01T12:00:00Z",
	})
	require.Equal(t, http.StatusAccepted, recorder.Code)
	require.Len(t, svc.updates, 1)
	require.Equal(t, "sensor.fridge_temp", svc.updates[0].entityID)
	require.Equal(t, "4.5", svc.updates[0].state)
	require.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), svc.updates[0].timestamp)
}

func TestInjectUpdateDefaultTimestamp(t *testing.T) {
	t.Parallel()

	svc := newFakeService()
	before := time.Now().UTC()

	recorder := do(t, svc, http.MethodPost, "/updates", updateRequest{
		EntityID: "binary_sensor.fridge_door",
		State:    "on",
	})
	require.Equal(t, http.StatusAccepted, recorder.Code)
	require.Len(t, svc.updates, 1)
	require.False(t, svc.updates[0].timestamp.Before(before))
}

func TestInjectUpdateInvalidTimestamp(t *testing.T) {
	t.Parallel()

	recorder := do(t, newFakeService(), http.MethodPost, "/updates", updateRequest{
		EntityID:  "sensor.fridge_temp",
		State:     "4.5",
		Timestamp: "yesterday",
	})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}
