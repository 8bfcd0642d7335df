package mqtt

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/oshokin/equipment-monitor/internal/config"
)

// disconnectQuiesce is how long Disconnect waits for in-flight messages.
const disconnectQuiesce = 250 * time.Millisecond

// MessageHandler processes one received message.
type MessageHandler func(topic string, payload []byte) error

// Client wraps the paho MQTT client for the state bus.
type Client struct {
	// client is the underlying paho connection.
	client mqtt.Client
	// topicPrefix is the root of the state and siren command topics.
	topicPrefix string
}

// Connect dials the broker from configuration.
func Connect(cfg *config.MQTT) (*Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}

	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)

	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to broker %s: %w", cfg.Broker, token.Error())
	}

	return &Client{
		client:      client,
		topicPrefix: cfg.TopicPrefix,
	}, nil
}

// Subscribe registers the handler for a topic filter.
func (c *Client) Subscribe(topic string, handler MessageHandler) error {
	token := c.client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		_ = handler(msg.Topic(), msg.Payload())
	})

	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, token.Error())
	}

	return nil
}

// Publish sends a payload to a topic.
func (c *Client) Publish(topic string, payload []byte) error {
	token := c.client.Publish(topic, 1, false, payload)
	token.Wait()

	if token.Error() != nil {
		return fmt.Errorf("publish to %s: %w", topic, token.Error())
	}

	return nil
}

// Connected reports whether the broker connection is up.
func (c *Client) Connected() bool {
	return c != nil && c.client.IsConnected()
}

// Disconnect closes the broker connection.
func (c *Client) Disconnect() {
	if c == nil {
		return
	}

	c.client.Disconnect(uint(disconnectQuiesce.Milliseconds()))
}

// TopicPrefix returns the configured topic root.
func (c *Client) TopicPrefix() string {
	return c.topicPrefix
}
