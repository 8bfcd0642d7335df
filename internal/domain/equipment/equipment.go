package equipment

import "time"

// SensorType identifies the logical kind of a bound sensor.
type SensorType string

// Supported sensor types. Each equipment holds at most one binding per type.
const (
	SensorTemperature SensorType = "temperature"
	SensorHumidity    SensorType = "humidity"
	SensorEnergy      SensorType = "energy"
	SensorDoor        SensorType = "door"
)

// KnownSensorTypes lists every sensor type in a stable order.
var KnownSensorTypes = []SensorType{
	SensorTemperature,
	SensorHumidity,
	SensorEnergy,
	SensorDoor,
}

// Valid reports whether the sensor type is one of the supported kinds.
func (t SensorType) Valid() bool {
	switch t {
	case SensorTemperature, SensorHumidity, SensorEnergy, SensorDoor:
		return true
	default:
		return false
	}
}

// Default configuration values applied when an equipment is created.
const (
	// DefaultCollectInterval is the default sensor collection interval.
	DefaultCollectInterval = 30 * time.Second
	// DefaultDoorOpenTimeout is how long a door may stay open before the siren fires.
	DefaultDoorOpenTimeout = 120 * time.Second
)

// DoorConfig controls the door-open alarm behaviour of an equipment.
type DoorConfig struct {
	// EnableSiren arms the door-open timer; with it off the door state is
	// still tracked but never alarms.
	EnableSiren bool `json:"enable_siren"`
	// OpenTimeout is how long the door may stay continuously open before
	// the siren is triggered.
	OpenTimeout time.Duration `json:"open_timeout"`
}

// TemperatureConfig holds the optional temperature alert thresholds.
type TemperatureConfig struct {
	// Enabled turns threshold evaluation on.
	Enabled bool `json:"enabled"`
	// Min is the lower bound; nil means no lower bound.
	Min *float64 `json:"min,omitempty"`
	// Max is the upper bound; nil means no upper bound.
	Max *float64 `json:"max,omitempty"`
}

// Equipment describes a monitored physical asset and its sensor bindings.
type Equipment struct {
	// ID is the stable identifier of the equipment.
	ID string `json:"id"`
	// Name is the human-readable display name.
	Name string `json:"name"`
	// Location describes where the equipment is installed.
	Location string `json:"location"`
	// Enabled gates all sensor processing for this equipment.
	Enabled bool `json:"enabled"`
	// CollectInterval is the sensor collection period.
	CollectInterval time.Duration `json:"collect_interval"`
	// Door configures the door-open alarm.
	Door DoorConfig `json:"door"`
	// Temperature configures the optional temperature alert thresholds.
	Temperature TemperatureConfig `json:"temperature"`
	// Sensors maps each sensor type to its external entity id.
	// An absent or empty entry means the type is unbound and produces no events.
	Sensors map[SensorType]string `json:"sensors"`
}

// New creates an equipment with the default configuration.
func New(id, name, location string) *Equipment {
	return &Equipment{
		ID:              id,
		Name:            name,
		Location:        location,
		Enabled:         true,
		CollectInterval: DefaultCollectInterval,
		Door: DoorConfig{
			EnableSiren: true,
			OpenTimeout: DefaultDoorOpenTimeout,
		},
		Sensors: make(map[SensorType]string),
	}
}

// Clone returns a deep copy of the equipment.
func (e *Equipment) Clone() *Equipment {
	if e == nil {
		return nil
	}

	cloned := *e

	if e.Temperature.Min != nil {
		v := *e.Temperature.Min
		cloned.Temperature.Min = &v
	}

	if e.Temperature.Max != nil {
		v := *e.Temperature.Max
		cloned.Temperature.Max = &v
	}

	cloned.Sensors = make(map[SensorType]string, len(e.Sensors))
	for k, v := range e.Sensors {
		cloned.Sensors[k] = v
	}

	return &cloned
}

// SensorSource returns the bound entity id for the given sensor type,
// or an empty string when the type is unbound.
func (e *Equipment) SensorSource(t SensorType) string {
	if e == nil || e.Sensors == nil {
		return ""
	}

	return e.Sensors[t]
}
