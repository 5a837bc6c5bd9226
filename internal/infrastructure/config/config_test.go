package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
secrets:
  secret_key: "test-secret"
  jwt_secret_key: "test-jwt-secret"
mqtt:
  broker_host: "localhost"
  broker_port: 1883
  client_id: "test-client"
  qos: 1
app:
  host: "0.0.0.0"
  port: 8080
store:
  devices_file: "/tmp/devices.json"
  rules_file: "/tmp/rules.json"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.BrokerHost != "localhost" {
		t.Errorf("MQTT.BrokerHost = %q, want %q", cfg.MQTT.BrokerHost, "localhost")
	}

	if cfg.Store.DevicesFile != "/tmp/devices.json" {
		t.Errorf("Store.DevicesFile = %q, want %q", cfg.Store.DevicesFile, "/tmp/devices.json")
	}

	if cfg.Store.CommandHistorySize != 50 {
		t.Errorf("Store.CommandHistorySize = %d, want default 50", cfg.Store.CommandHistorySize)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
secrets:
  secret_key: ""
mqtt:
  broker_host: "localhost"
  broker_port: 1883
app:
  port: 8080
store:
  devices_file: "/tmp/devices.json"
  rules_file: "/tmp/rules.json"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty secrets, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	validSecrets := SecretsConfig{SecretKey: "s", JWTSecretKey: "j"}

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name: "valid config",
			config: &Config{
				Secrets: validSecrets,
				MQTT:    MQTTConfig{BrokerHost: "localhost", BrokerPort: 1883, QoS: 1},
				App:     AppConfig{Port: 8080},
				Store:   StoreConfig{DevicesFile: "d.json", RulesFile: "r.json", CommandHistorySize: 50},
			},
			wantErr: false,
		},
		{
			name: "missing secret key",
			config: &Config{
				Secrets: SecretsConfig{JWTSecretKey: "j"},
				MQTT:    MQTTConfig{BrokerHost: "localhost", BrokerPort: 1883, QoS: 1},
				App:     AppConfig{Port: 8080},
				Store:   StoreConfig{DevicesFile: "d.json", RulesFile: "r.json", CommandHistorySize: 50},
			},
			wantErr: true,
		},
		{
			name: "invalid QoS",
			config: &Config{
				Secrets: validSecrets,
				MQTT:    MQTTConfig{BrokerHost: "localhost", BrokerPort: 1883, QoS: 3},
				App:     AppConfig{Port: 8080},
				Store:   StoreConfig{DevicesFile: "d.json", RulesFile: "r.json", CommandHistorySize: 50},
			},
			wantErr: true,
		},
		{
			name: "invalid app port",
			config: &Config{
				Secrets: validSecrets,
				MQTT:    MQTTConfig{BrokerHost: "localhost", BrokerPort: 1883, QoS: 1},
				App:     AppConfig{Port: 0},
				Store:   StoreConfig{DevicesFile: "d.json", RulesFile: "r.json", CommandHistorySize: 50},
			},
			wantErr: true,
		},
		{
			name: "missing devices file",
			config: &Config{
				Secrets: validSecrets,
				MQTT:    MQTTConfig{BrokerHost: "localhost", BrokerPort: 1883, QoS: 1},
				App:     AppConfig{Port: 8080},
				Store:   StoreConfig{RulesFile: "r.json", CommandHistorySize: 50},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("AUTOMATIONCORE_MQTT_BROKER_HOST", "mqtt.example.com")
	t.Setenv("AUTOMATIONCORE_MQTT_USERNAME", "testuser")
	t.Setenv("AUTOMATIONCORE_MQTT_PASSWORD", "testpass")
	t.Setenv("AUTOMATIONCORE_APP_HOST", "192.168.1.1")
	t.Setenv("AUTOMATIONCORE_SECRET_KEY", "override-secret")

	applyEnvOverrides(cfg)

	if cfg.MQTT.BrokerHost != "mqtt.example.com" {
		t.Errorf("MQTT.BrokerHost = %q, want %q", cfg.MQTT.BrokerHost, "mqtt.example.com")
	}
	if cfg.MQTT.Username != "testuser" {
		t.Errorf("MQTT.Username = %q, want %q", cfg.MQTT.Username, "testuser")
	}
	if cfg.App.Host != "192.168.1.1" {
		t.Errorf("App.Host = %q, want %q", cfg.App.Host, "192.168.1.1")
	}
	if cfg.Secrets.SecretKey != "override-secret" {
		t.Errorf("Secrets.SecretKey = %q, want %q", cfg.Secrets.SecretKey, "override-secret")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.MQTT.BrokerPort != 1883 {
		t.Errorf("defaultConfig MQTT.BrokerPort = %d, want 1883", cfg.MQTT.BrokerPort)
	}
	if cfg.App.Port != 8080 {
		t.Errorf("defaultConfig App.Port = %d, want 8080", cfg.App.Port)
	}
	if cfg.Store.CommandHistorySize != 50 {
		t.Errorf("defaultConfig Store.CommandHistorySize = %d, want 50", cfg.Store.CommandHistorySize)
	}
}
