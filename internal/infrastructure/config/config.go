// Package config loads and validates automation-core's runtime configuration.
//
// Configuration is layered: built-in defaults, then a YAML file, then
// environment variable overrides, then validation. Validation aggregates
// every problem it finds into a single error so an operator sees all of
// them at once instead of fixing one and re-running.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for automation-core.
type Config struct {
	Secrets  SecretsConfig  `yaml:"secrets"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	App      AppConfig      `yaml:"app"`
	Store    StoreConfig    `yaml:"store"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SecretsConfig carries the credential-shaped keys external collaborators
// (user accounts, authentication) rely on. automation-core itself never
// reads these operationally — it only enforces that they are present at
// startup, for configuration-contract parity with those collaborators.
type SecretsConfig struct {
	SecretKey    string `yaml:"secret_key"`
	JWTSecretKey string `yaml:"jwt_secret_key"`
}

// DatabaseConfig is consumed only by external collaborators that keep
// unrelated relational data (users, nodes, forwarding rules). Left empty,
// automation-core's own persistence is the flat JSON files under Store.
type DatabaseConfig struct {
	URI string `yaml:"uri"`
}

// MQTTConfig configures the broker connection used by the bus client.
type MQTTConfig struct {
	BrokerHost            string `yaml:"broker_host"`
	BrokerPort            int    `yaml:"broker_port"`
	Username              string `yaml:"username"`
	Password              string `yaml:"password"`
	TopicBase             string `yaml:"topic_base"`
	ClientID              string `yaml:"client_id"`
	QoS                   int    `yaml:"qos"`
	ReconnectDelaySeconds int    `yaml:"reconnect_delay_seconds"`
	ReconnectMaxAttempts  int    `yaml:"reconnect_max_attempts"`
}

// AppConfig configures the HTTP API surface.
type AppConfig struct {
	Host  string     `yaml:"host"`
	Port  int        `yaml:"port"`
	Debug bool       `yaml:"debug"`
	CORS  CORSConfig `yaml:"cors"`
	// AdminUser is optional; carried for parity with external auth
	// collaborators. automation-core does not gate any route on it.
	AdminUser string `yaml:"admin_user"`
}

// CORSConfig configures the allow-list for cross-origin requests.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StoreConfig names the on-disk JSON files that back DeviceRegistry and
// RuleStore, and the bound on the in-memory command history ring.
type StoreConfig struct {
	DevicesFile        string `yaml:"devices_file"`
	RulesFile          string `yaml:"rules_file"`
	CommandHistorySize int    `yaml:"command_history_size"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads a YAML configuration file, applies environment overrides,
// validates the result, and returns it. A missing mandatory key aborts
// startup via the returned error.
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
		MQTT: MQTTConfig{
			BrokerHost:            "localhost",
			BrokerPort:            1883,
			TopicBase:             "home",
			ClientID:              "automation-core",
			QoS:                   1,
			ReconnectDelaySeconds: 5,
			ReconnectMaxAttempts:  5,
		},
		App: AppConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Store: StoreConfig{
			DevicesFile:        "./data/devices.json",
			RulesFile:          "./data/rules.json",
			CommandHistorySize: 50,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Environment variables follow the pattern
// AUTOMATIONCORE_SECTION_KEY.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AUTOMATIONCORE_SECRET_KEY"); v != "" {
		cfg.Secrets.SecretKey = v
	}
	if v := os.Getenv("AUTOMATIONCORE_JWT_SECRET_KEY"); v != "" {
		cfg.Secrets.JWTSecretKey = v
	}
	if v := os.Getenv("AUTOMATIONCORE_DATABASE_URI"); v != "" {
		cfg.Database.URI = v
	}
	if v := os.Getenv("AUTOMATIONCORE_MQTT_BROKER_HOST"); v != "" {
		cfg.MQTT.BrokerHost = v
	}
	if v := os.Getenv("AUTOMATIONCORE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("AUTOMATIONCORE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
	if v := os.Getenv("AUTOMATIONCORE_APP_HOST"); v != "" {
		cfg.App.Host = v
	}
}

// Validate checks the configuration for errors, aggregating every
// problem found into a single error.
func (c *Config) Validate() error {
	var errs []string

	if c.Secrets.SecretKey == "" {
		errs = append(errs, "secrets.secret_key is required")
	}
	if c.Secrets.JWTSecretKey == "" {
		errs = append(errs, "secrets.jwt_secret_key is required")
	}
	if c.MQTT.BrokerHost == "" {
		errs = append(errs, "mqtt.broker_host is required")
	}
	if c.MQTT.BrokerPort < 1 || c.MQTT.BrokerPort > 65535 {
		errs = append(errs, "mqtt.broker_port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.App.Port < 1 || c.App.Port > 65535 {
		errs = append(errs, "app.port must be between 1 and 65535")
	}
	if c.Store.DevicesFile == "" {
		errs = append(errs, "store.devices_file is required")
	}
	if c.Store.RulesFile == "" {
		errs = append(errs, "store.rules_file is required")
	}
	if c.Store.CommandHistorySize < 1 {
		errs = append(errs, "store.command_history_size must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ReconnectDelay returns the configured reconnect delay as a Duration.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.MQTT.ReconnectDelaySeconds) * time.Second
}
