package equipment

import "time"

// Status is the derived health status of an equipment.
type Status string

// Equipment statuses.
const (
	StatusOK               Status = "ok"
	StatusDoorOpenAlarm    Status = "door_open_alarm"
	StatusTemperatureAlert Status = "temperature_alert"
)

// Status detail reasons.
const (
	ReasonBelowMin    = "below_min"
	ReasonAboveMax    = "above_max"
	ReasonDoorTimeout = "door_open_timeout"
	ReasonManual      = "manual"
)

// Attribute keys shared with the state bus and the remote API.
const (
	AttrOpenSince   = "open_since"
	AttrTriggeredAt = "triggered_at"
)

// StatusDetail carries the payload explaining a non-OK status.
type StatusDetail struct {
	// Reason names the condition (below_min, above_max, door_open_timeout, manual).
	Reason string `json:"reason,omitempty"`
	// Value is the reading that violated the bound, when applicable.
	Value *float64 `json:"value,omitempty"`
	// Min is the violated lower bound, when applicable.
	Min *float64 `json:"min,omitempty"`
	// Max is the violated upper bound, when applicable.
	Max *float64 `json:"max,omitempty"`
}

// SirenDetail carries the payload explaining an active siren.
type SirenDetail struct {
	// Reason names what triggered the siren.
	Reason string `json:"reason,omitempty"`
	// TriggeredAt is when the siren was switched on.
	TriggeredAt time.Time `json:"triggered_at,omitempty"`
}

// RuntimeState is the in-memory sensor state of one equipment.
// It is rebuilt from configuration defaults at startup and never persisted.
type RuntimeState struct {
	// Temperature is the last temperature reading; nil until the first one arrives.
	Temperature *float64 `json:"temperature"`
	// Humidity is the last humidity reading; nil until the first one arrives.
	Humidity *float64 `json:"humidity"`
	// EnergyOn reports whether the equipment is powered.
	EnergyOn bool `json:"energy_on"`
	// DoorOpen reports whether the door is currently open.
	DoorOpen bool `json:"door_open"`
	// DoorAttributes holds door metadata such as open_since.
	DoorAttributes map[string]any `json:"door_attributes"`
	// EnergyAttributes holds the raw attribute payload of the energy sensor
	// (power, voltage, current, energy fields pass through untouched).
	EnergyAttributes map[string]any `json:"energy_attributes"`
	// Status is the derived equipment status.
	Status Status `json:"status"`
	// StatusDetail explains a non-OK status.
	StatusDetail StatusDetail `json:"status_detail"`
	// SirenActive reports whether the siren is switched on.
	SirenActive bool `json:"siren_active"`
	// SirenDetail explains an active siren.
	SirenDetail SirenDetail `json:"siren_detail"`
}

// NewRuntimeState returns the default state used at startup.
func NewRuntimeState() *RuntimeState {
	return &RuntimeState{
		DoorAttributes:   map[string]any{},
		EnergyAttributes: map[string]any{},
		Status:           StatusOK,
	}
}

// Clone returns a copy of the state to avoid leaking internal references.
func (s *RuntimeState) Clone() *RuntimeState {
	if s == nil {
		return nil
	}

	cloned := *s

	if s.Temperature != nil {
		v := *s.Temperature
		cloned.Temperature = &v
	}

	if s.Humidity != nil {
		v := *s.Humidity
		cloned.Humidity = &v
	}

	cloned.DoorAttributes = cloneAttributes(s.DoorAttributes)
	cloned.EnergyAttributes = cloneAttributes(s.EnergyAttributes)
	cloned.StatusDetail = s.StatusDetail.clone()

	return &cloned
}

// clone copies the detail, duplicating the numeric pointers.
func (d StatusDetail) clone() StatusDetail {
	cloned := d

	if d.Value != nil {
		v := *d.Value
		cloned.Value = &v
	}

	if d.Min != nil {
		v := *d.Min
		cloned.Min = &v
	}

	if d.Max != nil {
		v := *d.Max
		cloned.Max = &v
	}

	return cloned
}

// cloneAttributes shallow-copies an attribute map.
// Values are treated as immutable once recorded.
func cloneAttributes(attrs map[string]any) map[string]any {
	if attrs == nil {
		return nil
	}

	cloned := make(map[string]any, len(attrs))
	for k, v := range attrs {
		cloned[k] = v
	}

	return cloned
}
