package mqtt

import (
	"context"

	"github.com/oshokin/equipment-monitor/internal/logger"
)

// Siren command payloads published to <prefix>/<equipment_id>/siren/set.
const (
	sirenCommandOn  = "on"
	sirenCommandOff = "off"
)

// Actuator switches physical sirens through the bus.
// The sink is best-effort: with no broker connection the command is dropped
// with a log line and the in-memory alarm state still stands.
type Actuator struct {
	// client is the bus connection; may be nil.
	client *Client
}

// NewActuator wraps the bus client; a nil client yields a no-op actuator.
func NewActuator(client *Client) *Actuator {
	return &Actuator{client: client}
}

// SirenOn publishes the turn-on command for the equipment's siren.
func (a *Actuator) SirenOn(ctx context.Context, equipmentID string) error {
	return a.publish(ctx, equipmentID, sirenCommandOn)
}

// SirenOff publishes the turn-off command for the equipment's siren.
func (a *Actuator) SirenOff(ctx context.Context, equipmentID string) error {
	return a.publish(ctx, equipmentID, sirenCommandOff)
}

// publish sends the command when the bus is reachable.
func (a *Actuator) publish(ctx context.Context, equipmentID, command string) error {
	if a == nil || !a.client.Connected() {
		logger.DebugKV(ctx, "Siren sink unavailable, command dropped",
			"equipment_id", equipmentID, "command", command)

		return nil
	}

	topic := a.client.TopicPrefix() + "/" + equipmentID + "/siren/set"

	return a.client.Publish(topic, []byte(command))
}
