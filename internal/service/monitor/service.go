package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oshokin/equipment-monitor/internal/config"
	domain "github.com/oshokin/equipment-monitor/internal/domain/equipment"
	"github.com/oshokin/equipment-monitor/internal/logger"
	equipmentrepo "github.com/oshokin/equipment-monitor/internal/repository/equipment"
	"github.com/oshokin/equipment-monitor/internal/repository/queue"
)

// IntegrationStatus is the aggregate health of the monitor.
type IntegrationStatus string

// Integration statuses, always observable regardless of internal errors.
const (
	IntegrationOnline    IntegrationStatus = "online"
	IntegrationOffline   IntegrationStatus = "offline"
	IntegrationPaused    IntegrationStatus = "paused"
	IntegrationAPIError  IntegrationStatus = "api_error"
	IntegrationAuthError IntegrationStatus = "auth_error"
)

// API is the slice of the remote client the sync loop depends on.
type API interface {
	EnsureToken(ctx context.Context) error
	SubmitEvents(ctx context.Context, batch []domain.Event) error
	Offline() bool
}

// Actuator switches the physical siren of an equipment.
// The sink may be absent; a nil actuator degrades to a no-op.
type Actuator interface {
	SirenOn(ctx context.Context, equipmentID string) error
	SirenOff(ctx context.Context, equipmentID string) error
}

// binding resolves an external entity id to its equipment and sensor type.
type binding struct {
	// equipmentID is the owning equipment.
	equipmentID string
	// sensorType is the logical sensor the entity feeds.
	sensorType domain.SensorType
}

// Errors surfaced by equipment management operations.
var (
	// ErrEquipmentNotFound is returned when the equipment id is unknown.
	ErrEquipmentNotFound = errors.New("equipment not found")
	// ErrEquipmentExists is returned when adding a duplicate equipment id.
	ErrEquipmentExists = errors.New("equipment already exists")
)

// Service owns the equipment registry, the sensor pipeline, the door/siren
// timers and the sync loop. All shared state is guarded by one RWMutex;
// external readers only ever receive clones.
type Service struct {
	// cfg is the monitor configuration.
	cfg *config.Config
	// repo persists the equipment list.
	repo equipmentrepo.Repository
	// queue is the durable outbound event queue.
	queue queue.Store
	// api talks to the remote monitoring API.
	api API
	// actuator switches physical sirens; may be nil.
	actuator Actuator

	// mu protects everything below.
	mu sync.RWMutex
	// equipments is the configuration registry keyed by equipment id.
	equipments map[string]*domain.Equipment
	// states is the runtime state registry keyed by equipment id.
	states map[string]*domain.RuntimeState
	// bindings resolves bound entity ids to (equipment, sensor type).
	bindings map[string]binding
	// timers holds the live door timer per equipment id. The map entry is the
	// single source of truth for "timer pending", and the handle identity tells
	// an expired instance apart from a replacement armed after it.
	timers map[string]*doorTimer
	// paused suspends sending without stopping state collection.
	paused bool
	// syncStatus is the outcome of the last sync tick.
	syncStatus IntegrationStatus
	// lastSync is when the queue last flushed successfully.
	lastSync time.Time
}

// NewService builds the monitor from persisted configuration.
// Equipment entries that fail validation are skipped with an error log;
// one broken equipment never prevents the others from initializing.
func NewService(
	ctx context.Context,
	cfg *config.Config,
	repo equipmentrepo.Repository,
	store queue.Store,
	api API,
	actuator Actuator,
) (*Service, error) {
	s := &Service{
		cfg:        cfg,
		repo:       repo,
		queue:      store,
		api:        api,
		actuator:   actuator,
		equipments: make(map[string]*domain.Equipment),
		states:     make(map[string]*domain.RuntimeState),
		bindings:   make(map[string]binding),
		timers:     make(map[string]*doorTimer),
		syncStatus: IntegrationOnline,
	}

	if api != nil && api.Offline() {
		s.syncStatus = IntegrationOffline
	}

	equipments, err := repo.Load(ctx)

	switch {
	case err == nil:
	case errors.Is(err, equipmentrepo.ErrNotFound):
		// First run, empty registry.
	default:
		return nil, fmt.Errorf("load equipment: %w", err)
	}

	for _, e := range equipments {
		if err := validateEquipment(e); err != nil {
			logger.ErrorKV(ctx, "Skipping invalid equipment", "equipment_id", equipmentID(e), "error", err)

			continue
		}

		s.equipments[e.ID] = e
		s.states[e.ID] = domain.NewRuntimeState()
	}

	s.rebuildBindings()

	if err := store.Load(ctx); err != nil {
		return nil, fmt.Errorf("load queue: %w", err)
	}

	logger.InfoKV(ctx, "Monitor initialized", "equipment_count", len(s.equipments), "pending_events", store.Len())

	return s, nil
}

// validateEquipment checks an equipment entry for usable configuration.
func validateEquipment(e *domain.Equipment) error {
	if e == nil || e.ID == "" {
		return errors.New("equipment id is required")
	}

	if e.Door.OpenTimeout <= 0 {
		return errors.New("door open timeout must be positive")
	}

	for t := range e.Sensors {
		if !t.Valid() {
			return fmt.Errorf("unknown sensor type %q", t)
		}
	}

	return nil
}

// equipmentID extracts the id for logging without dereferencing nil.
func equipmentID(e *domain.Equipment) string {
	if e == nil {
		return ""
	}

	return e.ID
}

// rebuildBindings recomputes the entity-to-sensor index. Callers must hold mu
// for writing (or own the service exclusively during construction).
func (s *Service) rebuildBindings() {
	s.bindings = make(map[string]binding)

	for id, e := range s.equipments {
		for t, entityID := range e.Sensors {
			if entityID == "" {
				continue
			}

			s.bindings[entityID] = binding{
				equipmentID: id,
				sensorType:  t,
			}
		}
	}
}

// Shutdown cancels all live door timers and performs one final queue persist.
func (s *Service) Shutdown(ctx context.Context) {
	s.mu.Lock()

	for id, handle := range s.timers {
		handle.timer.Stop()
		delete(s.timers, id)
	}

	s.mu.Unlock()

	if err := s.queue.Flush(ctx); err != nil {
		logger.ErrorKV(ctx, "Final queue flush failed", "error", err)
	}

	logger.Info(ctx, "Monitor stopped")
}

// EquipmentState returns clones of the configuration and runtime state
// of one equipment.
func (s *Service) EquipmentState(id string) (*domain.Equipment, *domain.RuntimeState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.equipments[id]
	if !ok {
		return nil, nil, ErrEquipmentNotFound
	}

	return e.Clone(), s.states[id].Clone(), nil
}

// AllEquipmentStates returns clones of every equipment's configuration and
// runtime state, keyed by equipment id.
func (s *Service) AllEquipmentStates() (map[string]*domain.Equipment, map[string]*domain.RuntimeState) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	equipments := make(map[string]*domain.Equipment, len(s.equipments))
	states := make(map[string]*domain.RuntimeState, len(s.states))

	for id, e := range s.equipments {
		equipments[id] = e.Clone()
		states[id] = s.states[id].Clone()
	}

	return equipments, states
}

// IntegrationStatus returns the aggregate monitor status.
func (s *Service) IntegrationStatus() IntegrationStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.paused {
		return IntegrationPaused
	}

	return s.syncStatus
}

// QueueSize returns the number of pending events.
func (s *Service) QueueSize() int {
	return s.queue.Len()
}

// LastSync returns when the queue last flushed successfully,
// zero when it never has.
func (s *Service) LastSync() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastSync
}

// AddEquipment registers a new equipment with default configuration and persists the registry.
func (s *Service) AddEquipment(ctx context.Context, id, name, location string) (*domain.Equipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		return nil, errors.New("equipment id is required")
	}

	if _, ok := s.equipments[id]; ok {
		return nil, ErrEquipmentExists
	}

	e := domain.New(id, name, location)
	s.equipments[id] = e
	s.states[id] = domain.NewRuntimeState()
	s.rebuildBindings()

	if err := s.persistLocked(ctx); err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Equipment added", "equipment_id", id, "name", name)

	return e.Clone(), nil
}

// RemoveEquipment deletes an equipment, cancels its timer and persists the registry.
func (s *Service) RemoveEquipment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.equipments[id]; !ok {
		return ErrEquipmentNotFound
	}

	s.cancelDoorTimerLocked(id)
	delete(s.equipments, id)
	delete(s.states, id)
	s.rebuildBindings()

	if err := s.persistLocked(ctx); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Equipment removed", "equipment_id", id)

	return nil
}

// SetEnabled toggles sensor processing for an equipment.
func (s *Service) SetEnabled(ctx context.Context, id string, enabled bool) error {
	return s.mutateEquipment(ctx, id, func(e *domain.Equipment) {
		e.Enabled = enabled
	})
}

// SetCollectInterval updates the sensor collection period of an equipment.
func (s *Service) SetCollectInterval(ctx context.Context, id string, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("collect interval must be positive")
	}

	return s.mutateEquipment(ctx, id, func(e *domain.Equipment) {
		e.CollectInterval = interval
	})
}

// SetDoorConfig updates the door alarm configuration of an equipment.
func (s *Service) SetDoorConfig(ctx context.Context, id string, cfg domain.DoorConfig) error {
	if cfg.OpenTimeout <= 0 {
		return errors.New("door open timeout must be positive")
	}

	return s.mutateEquipment(ctx, id, func(e *domain.Equipment) {
		e.Door = cfg
	})
}

// SetTemperatureConfig updates the temperature thresholds of an equipment.
func (s *Service) SetTemperatureConfig(ctx context.Context, id string, cfg domain.TemperatureConfig) error {
	if cfg.Enabled && cfg.Min == nil && cfg.Max == nil {
		return errors.New("at least one temperature bound is required")
	}

	return s.mutateEquipment(ctx, id, func(e *domain.Equipment) {
		e.Temperature = cfg
	})
}

// SetSensorSource binds (or, with an empty entity id, unbinds) an external
// entity to a sensor type of the equipment.
func (s *Service) SetSensorSource(ctx context.Context, id string, sensorType domain.SensorType, entityID string) error {
	if !sensorType.Valid() {
		return fmt.Errorf("unknown sensor type %q", sensorType)
	}

	return s.mutateEquipment(ctx, id, func(e *domain.Equipment) {
		if e.Sensors == nil {
			e.Sensors = make(map[domain.SensorType]string)
		}

		if entityID == "" {
			delete(e.Sensors, sensorType)
		} else {
			e.Sensors[sensorType] = entityID
		}
	})
}

// mutateEquipment applies fn to the equipment under the write lock,
// rebuilds the binding index and persists the registry.
func (s *Service) mutateEquipment(ctx context.Context, id string, fn func(*domain.Equipment)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.equipments[id]
	if !ok {
		return ErrEquipmentNotFound
	}

	fn(e)
	s.rebuildBindings()

	return s.persistLocked(ctx)
}

// persistLocked saves the equipment registry. Callers must hold mu.
func (s *Service) persistLocked(ctx context.Context) error {
	equipments := make([]*domain.Equipment, 0, len(s.equipments))
	for _, e := range s.equipments {
		equipments = append(equipments, e)
	}

	// Stable blob layout across saves.
	sort.Slice(equipments, func(i, j int) bool {
		return equipments[i].ID < equipments[j].ID
	})

	if err := s.repo.Save(ctx, equipments); err != nil {
		return fmt.Errorf("persist equipment: %w", err)
	}

	return nil
}
