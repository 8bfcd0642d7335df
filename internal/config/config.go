package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// MQTT holds the optional state-bus connection parameters.
// When Broker is empty the monitor runs without a bus and relies on the
// HTTP update endpoint for sensor input.
type MQTT struct {
	// Broker is the MQTT broker URL (e.g., tcp://localhost:1883).
	Broker string `yaml:"broker"`
	// ClientID identifies this monitor instance on the broker.
	ClientID string `yaml:"client_id"`
	// Username is the broker username, if the broker requires authentication.
	Username string `yaml:"username"`
	// Password is the broker password, if the broker requires authentication.
	Password string `yaml:"password"`
	// TopicPrefix is the root of the state and siren command topics.
	TopicPrefix string `yaml:"topic_prefix"`
}

// Config holds settings shared by the monitor binaries.
type Config struct {
	// APIURL is the base URL of the remote monitoring API.
	APIURL string `yaml:"api_url"`
	// Username is the API login name. Overridable via MONITOR_API_USERNAME.
	Username string `yaml:"username"`
	// Password is the API login password. Overridable via MONITOR_API_PASSWORD.
	Password string `yaml:"password"`
	// OfflineMode disables all outbound network calls; logins succeed with a
	// fixed token and submitted events are accepted and discarded.
	OfflineMode bool `yaml:"offline_mode"`
	// Timeout is the duration for individual HTTP calls.
	Timeout time.Duration `yaml:"timeout"`
	// SyncInterval is the period between queue flushes to the API.
	SyncInterval time.Duration `yaml:"sync_interval"`
	// ListenAddr is the HTTP admin surface listen address.
	ListenAddr string `yaml:"listen_addr"`
	// StateDir is the directory holding the equipment and queue blobs.
	StateDir string `yaml:"state_dir"`
	// MQTT configures the sensor state bus.
	MQTT MQTT `yaml:"mqtt"`
}

const (
	// DefaultConfigFilename is the default filename for monitor settings.
	DefaultConfigFilename = "monitor-settings.yaml"

	// DefaultEquipmentFilename is the default filename for the equipment blob.
	DefaultEquipmentFilename = "monitor-equipment.json"

	// DefaultQueueFilename is the default filename for the pending event queue blob.
	DefaultQueueFilename = "monitor-queue.json"

	// DefaultTimeout is the default duration for HTTP calls.
	DefaultTimeout = 10 * time.Second

	// DefaultSyncInterval is the default period between queue flushes.
	DefaultSyncInterval = 60 * time.Second

	// DefaultListenAddr is the default admin surface listen address.
	DefaultListenAddr = ":8090"

	// DefaultTopicPrefix is the default root of state-bus topics.
	DefaultTopicPrefix = "monitor"

	// DefaultFilePermissions is the default file permission for config and state files.
	DefaultFilePermissions = 0o600

	// EnvUsername overrides the YAML username when set.
	EnvUsername = "MONITOR_API_USERNAME"

	// EnvPassword overrides the YAML password when set.
	EnvPassword = "MONITOR_API_PASSWORD"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errAPIURLRequired is returned when the API URL is missing outside offline mode.
	errAPIURLRequired = errors.New("api_url must be provided unless offline_mode is enabled")
	// errCredentialsRequired is returned when credentials are missing outside offline mode.
	errCredentialsRequired = errors.New("username and password must be provided unless offline_mode is enabled")
)

// Load reads configuration from the provided path, applies environment
// overrides for credentials and validates essential fields.
// A .env file in the working directory is honored when present.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	// Missing .env is fine; explicit env vars still apply.
	_ = godotenv.Load()

	if v := os.Getenv(EnvUsername); v != "" {
		cfg.Username = v
	}

	if v := os.Getenv(EnvPassword); v != "" {
		cfg.Password = v
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and fills in defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if !cfg.OfflineMode {
		if cfg.APIURL == "" {
			return errAPIURLRequired
		}

		if _, err := url.ParseRequestURI(cfg.APIURL); err != nil {
			return fmt.Errorf("invalid api_url: %w", err)
		}

		if cfg.Username == "" || cfg.Password == "" {
			return errCredentialsRequired
		}
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = DefaultSyncInterval
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}

	if cfg.StateDir == "" {
		cfg.StateDir = "."
	}

	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = DefaultTopicPrefix
	}

	return nil
}

// EquipmentFile returns the path of the equipment blob inside StateDir.
func (c *Config) EquipmentFile() string {
	return filepath.Join(c.StateDir, DefaultEquipmentFilename)
}

// QueueFile returns the path of the queue blob inside StateDir.
func (c *Config) QueueFile() string {
	return filepath.Join(c.StateDir, DefaultQueueFilename)
}
