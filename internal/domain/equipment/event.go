package equipment

import (
	"time"

	"github.com/google/uuid"
)

// Event is one immutable sensor reading queued for submission to the API.
// Once enqueued the payload is opaque: the queue never inspects or reorders it.
type Event struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`
	// EquipmentID is the equipment the reading belongs to.
	EquipmentID string `json:"equipment_id"`
	// SensorType is the logical sensor that produced the reading.
	SensorType SensorType `json:"sensor_type"`
	// State is the raw state value as received from the source.
	State string `json:"state"`
	// Attributes is the raw attribute payload of the reading.
	Attributes map[string]any `json:"attributes,omitempty"`
	// Timestamp is when the reading was taken.
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent builds an event with a fresh id.
func NewEvent(equipmentID string, sensorType SensorType, state string, attributes map[string]any, ts time.Time) Event {
	return Event{
		ID:          uuid.NewString(),
		EquipmentID: equipmentID,
		SensorType:  sensorType,
		State:       state,
		Attributes:  attributes,
		Timestamp:   ts,
	}
}
