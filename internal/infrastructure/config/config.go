package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the forensic readiness core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Readiness ReadinessConfig `yaml:"readiness"`
	Inventory InventoryConfig `yaml:"inventory"`
	Evidence  EvidenceConfig  `yaml:"evidence"`
	LAN       LANConfig       `yaml:"lan"`
	Secrets   SecretsConfig   `yaml:"secrets"`
	Security  SecurityConfig  `yaml:"security"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
// The database backs the evidence key-value stores.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains settings for the read-only inspection API.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// WebSocketConfig contains settings for the live evidence feed.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// SecurityConfig contains API access control settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains bearer token settings. An empty secret leaves the
// inspection API open, which is only sensible on a loopback listener.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// ReadinessConfig holds the operator's forensic interest preferences.
//
// Platform and DeviceType are the raw operator inputs: comma-separated
// tokens drawn from the vocabulary, or the literal "all".
type ReadinessConfig struct {
	Platform   string           `yaml:"platform"`
	DeviceType string           `yaml:"device_type"`
	Vocabulary VocabularyConfig `yaml:"vocabulary"`

	// MaintenanceDomains restricts the dynamic maintenance subscription to
	// these integration domains. Empty means every accepted platform.
	MaintenanceDomains []string `yaml:"maintenance_domains"`
}

// VocabularyConfig lists the supported platform and device type tokens.
// The literal "all" is implicit and must not be listed.
type VocabularyConfig struct {
	Platforms   []string `yaml:"platforms"`
	DeviceTypes []string `yaml:"device_types"`
}

// InventoryConfig points at the snapshot exported from the host platform's
// device, entity and integration registries.
type InventoryConfig struct {
	Path string `yaml:"path"`
}

// EvidenceConfig contains evidence store settings.
type EvidenceConfig struct {
	// StorageVersion is attached to every store at allocation time.
	StorageVersion int `yaml:"storage_version"`

	// QueueSize bounds the per-subscriber event queue.
	QueueSize int `yaml:"queue_size"`

	// MirrorToInfluxDB copies every stored record into InfluxDB as a timeline point.
	MirrorToInfluxDB bool `yaml:"mirror_to_influxdb"`
}

// LANConfig lists LAN-resident components of forensic interest.
type LANConfig struct {
	Components []LANComponentConfig `yaml:"components"`
}

// LANComponentConfig describes one LAN component such as a router.
// Credentials are secret references; literal credentials are not accepted.
type LANComponentConfig struct {
	ID       string           `yaml:"id"`
	Kind     string           `yaml:"kind"`
	Address  string           `yaml:"address"`
	Port     int              `yaml:"port,omitempty"`
	Username *SecretRefConfig `yaml:"username,omitempty"`
	Password *SecretRefConfig `yaml:"password,omitempty"`
}

// SecretRefConfig references a value held by the secret resolver.
type SecretRefConfig struct {
	ID  string `yaml:"id"`
	Key string `yaml:"key"`
}

// SecretsConfig configures where mounted secrets are looked up.
type SecretsConfig struct {
	Paths []string `yaml:"paths"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: FORENSICS_SECTION_KEY
// For example: FORENSICS_DATABASE_PATH, FORENSICS_READINESS_PLATFORM
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Gray Logic",
		},
		Database: DatabaseConfig{
			Path:        "./data/forensics.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-forensics",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8091,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Readiness: ReadinessConfig{
			Platform:   "all",
			DeviceType: "all",
			Vocabulary: VocabularyConfig{
				Platforms:   []string{"hue"},
				DeviceTypes: []string{"light", "switch"},
			},
		},
		Inventory: InventoryConfig{
			Path: "./configs/inventory.yaml",
		},
		Evidence: EvidenceConfig{
			StorageVersion: 1,
			QueueSize:      256,
		},
		Secrets: SecretsConfig{
			Paths: []string{"/run/secrets"},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: FORENSICS_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("FORENSICS_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("FORENSICS_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("FORENSICS_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("FORENSICS_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("FORENSICS_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security
	if v := os.Getenv("FORENSICS_SECURITY_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}

	// Readiness preferences
	if v := os.Getenv("FORENSICS_READINESS_PLATFORM"); v != "" {
		cfg.Readiness.Platform = v
	}
	if v := os.Getenv("FORENSICS_READINESS_DEVICE_TYPE"); v != "" {
		cfg.Readiness.DeviceType = v
	}

	// Inventory
	if v := os.Getenv("FORENSICS_INVENTORY_PATH"); v != "" {
		cfg.Inventory.Path = v
	}
}

// Validate checks the configuration for errors.
//
// Token-level validation of the readiness preferences happens in the
// interest package; here only structural problems are reported.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.WebSocket.MaxMessageSize < 1 {
		errs = append(errs, "websocket.max_message_size must be at least 1")
	}
	if c.WebSocket.PingInterval < 1 || c.WebSocket.PongTimeout < 1 {
		errs = append(errs, "websocket.ping_interval and websocket.pong_timeout must be at least 1")
	}

	if s := c.Security.JWT.Secret; s != "" && len(s) < 32 {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if strings.TrimSpace(c.Readiness.Platform) == "" {
		errs = append(errs, "readiness.platform is required")
	}
	if strings.TrimSpace(c.Readiness.DeviceType) == "" {
		errs = append(errs, "readiness.device_type is required")
	}
	if len(c.Readiness.Vocabulary.Platforms) == 0 {
		errs = append(errs, "readiness.vocabulary.platforms must not be empty")
	}

	if c.Inventory.Path == "" {
		errs = append(errs, "inventory.path is required")
	}

	if c.Evidence.StorageVersion < 1 {
		errs = append(errs, "evidence.storage_version must be at least 1")
	}
	if c.Evidence.QueueSize < 1 {
		errs = append(errs, "evidence.queue_size must be at least 1")
	}

	errs = append(errs, c.validateLAN()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validateLAN checks LAN component entries for identity and secret references.
func (c *Config) validateLAN() []string {
	var errs []string
	seen := make(map[string]bool, len(c.LAN.Components))

	for i, comp := range c.LAN.Components {
		if comp.ID == "" {
			errs = append(errs, fmt.Sprintf("lan.components[%d].id is required", i))
			continue
		}
		if seen[comp.ID] {
			errs = append(errs, fmt.Sprintf("lan.components[%d].id %q is duplicated", i, comp.ID))
		}
		seen[comp.ID] = true

		if comp.Kind == "" {
			errs = append(errs, fmt.Sprintf("lan.components[%d].kind is required", i))
		}
		if comp.Address == "" {
			errs = append(errs, fmt.Sprintf("lan.components[%d].address is required", i))
		}
		if !validSecretRef(comp.Username) {
			errs = append(errs, fmt.Sprintf("lan.components[%d].username must reference a secret id and key", i))
		}
		if !validSecretRef(comp.Password) {
			errs = append(errs, fmt.Sprintf("lan.components[%d].password must reference a secret id and key", i))
		}
	}

	return errs
}

// validSecretRef reports whether an optional reference is either absent or complete.
func validSecretRef(ref *SecretRefConfig) bool {
	return ref == nil || (ref.ID != "" && ref.Key != "")
}
