package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oshokin/equipment-monitor/internal/logger"
)

// Pipeline is the slice of the monitor the ingest feeds.
type Pipeline interface {
	HandleSensorUpdate(ctx context.Context, entityID, state string, attributes map[string]any, timestamp time.Time) error
}

// statePayload is the JSON body published on <prefix>/<entity_id>/state.
type statePayload struct {
	// State is the raw state value.
	State string `json:"state"`
	// Attributes is the raw attribute map of the reading.
	Attributes map[string]any `json:"attributes,omitempty"`
	// Timestamp is when the reading was taken; RFC3339.
	Timestamp string `json:"timestamp,omitempty"`
}

// Ingest forwards state-change notifications from the bus into the pipeline.
// Filtering to bound entity ids happens inside the pipeline, so a retained
// message for an unknown entity is just ignored.
type Ingest struct {
	// client is the bus connection.
	client *Client
	// pipeline receives decoded updates.
	pipeline Pipeline
}

// NewIngest wires the pipeline to the bus client.
func NewIngest(client *Client, pipeline Pipeline) *Ingest {
	return &Ingest{
		client:   client,
		pipeline: pipeline,
	}
}

// Start subscribes to the state topic wildcard.
func (i *Ingest) Start(ctx context.Context) error {
	filter := i.client.TopicPrefix() + "/+/state"

	err := i.client.Subscribe(filter, func(topic string, payload []byte) error {
		return i.handleMessage(ctx, topic, payload)
	})
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "State bus ingestion started", "filter", filter)

	return nil
}

// handleMessage decodes one bus message and feeds the pipeline.
func (i *Ingest) handleMessage(ctx context.Context, topic string, payload []byte) error {
	entityID, err := entityFromTopic(i.client.TopicPrefix(), topic)
	if err != nil {
		logger.WarnKV(ctx, "Dropping message with unexpected topic", "topic", topic)

		return nil
	}

	var body statePayload
	if err := json.Unmarshal(payload, &body); err != nil {
		logger.WarnKV(ctx, "Dropping malformed state payload", "topic", topic, "error", err)

		return nil
	}

	timestamp := time.Now().UTC()

	if body.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, body.Timestamp); err == nil {
			timestamp = parsed
		}
	}

	if err := i.pipeline.HandleSensorUpdate(ctx, entityID, body.State, body.Attributes, timestamp); err != nil {
		logger.ErrorKV(ctx, "Sensor update failed", "entity_id", entityID, "error", err)
	}

	// Bus delivery never retries; failures were logged above.
	return nil
}

// entityFromTopic extracts the entity id from <prefix>/<entity_id>/state.
func entityFromTopic(prefix, topic string) (string, error) {
	trimmed := strings.TrimPrefix(topic, prefix+"/")
	if trimmed == topic {
		return "", fmt.Errorf("topic %q does not match prefix %q", topic, prefix)
	}

	entityID, ok := strings.CutSuffix(trimmed, "/state")
	if !ok || entityID == "" || strings.Contains(entityID, "/") {
		return "", fmt.Errorf("topic %q is not a state topic", topic)
	}

	return entityID, nil
}
