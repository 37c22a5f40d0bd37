package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_MinimalConfig(t *testing.T) {
	yaml := `
endpoint_url: http://localhost:8000/sensores
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// check defaults applied
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.PollInterval.Duration() != 5*time.Second {
		t.Errorf("PollInterval = %v, want 5s", cfg.PollInterval.Duration())
	}
	if cfg.StaleThreshold.Duration() != 20*time.Second {
		t.Errorf("StaleThreshold = %v, want 20s", cfg.StaleThreshold.Duration())
	}
	if cfg.Tolerance != 0.1 {
		t.Errorf("Tolerance = %v, want 0.1", cfg.Tolerance)
	}
	if cfg.FetchTimeout != 0 {
		t.Errorf("FetchTimeout = %v, want 0 (engine default)", cfg.FetchTimeout.Duration())
	}
	if cfg.MQTT != nil || cfg.Kafka != nil {
		t.Error("brokers should be disabled by default")
	}
	if cfg.Log.SlogLevel() != slog.LevelInfo {
		t.Errorf("Log.SlogLevel() = %v, want INFO", cfg.Log.SlogLevel())
	}
}

func TestParse_FullConfig(t *testing.T) {
	yaml := `
title: Lab B2
port: 9090
endpoint_url: https://lab.example.com/sensores
poll_interval: 2s
stale_threshold: 1m
fetch_timeout: 1500ms
tolerance_epsilon: 0.05
headers:
  Authorization: Bearer token123
journal: /tmp/transitions.db
mqtt:
  broker: tcp://broker:1883
  topic: lab/reading
  client_id: lab-b2
  qos: 1
  retained: true
  timeout: 3s
kafka:
  brokers:
    - "kafka-1:9092"
    - "kafka-2:9092"
  topic: lab.readings
log:
  level: debug
  file: /var/log/sensorsync.log
  max_size_mb: 10
  max_backups: 3
  max_age_days: 7
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Title != "Lab B2" {
		t.Errorf("Title = %q, want %q", cfg.Title, "Lab B2")
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.PollInterval.Duration() != 2*time.Second {
		t.Errorf("PollInterval = %v, want 2s", cfg.PollInterval.Duration())
	}
	if cfg.StaleThreshold.Duration() != time.Minute {
		t.Errorf("StaleThreshold = %v, want 1m", cfg.StaleThreshold.Duration())
	}
	if cfg.FetchTimeout.Duration() != 1500*time.Millisecond {
		t.Errorf("FetchTimeout = %v, want 1.5s", cfg.FetchTimeout.Duration())
	}
	if cfg.Tolerance != 0.05 {
		t.Errorf("Tolerance = %v, want 0.05", cfg.Tolerance)
	}
	if cfg.Headers["Authorization"] != "Bearer token123" {
		t.Errorf("Headers[Authorization] = %q", cfg.Headers["Authorization"])
	}
	if cfg.Journal != "/tmp/transitions.db" {
		t.Errorf("Journal = %q", cfg.Journal)
	}

	if cfg.MQTT == nil {
		t.Fatal("MQTT = nil")
	}
	if cfg.MQTT.Broker != "tcp://broker:1883" || cfg.MQTT.Topic != "lab/reading" || cfg.MQTT.ClientID != "lab-b2" {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
	if cfg.MQTT.QoS != 1 || !cfg.MQTT.Retained || cfg.MQTT.Timeout.Duration() != 3*time.Second {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}

	if cfg.Kafka == nil {
		t.Fatal("Kafka = nil")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "kafka-2:9092" {
		t.Errorf("Kafka.Brokers = %v", cfg.Kafka.Brokers)
	}

	if cfg.Log.SlogLevel() != slog.LevelDebug {
		t.Errorf("Log.SlogLevel() = %v, want DEBUG", cfg.Log.SlogLevel())
	}
	if cfg.Log.File != "/var/log/sensorsync.log" || cfg.Log.MaxSizeMB != 10 || cfg.Log.MaxBackups != 3 || cfg.Log.MaxAgeDays != 7 {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestParse_EnvVarSubstitution(t *testing.T) {
	t.Setenv("SENSOR_HOST", "lab.local:8000")
	t.Setenv("API_TOKEN", "secret")
	t.Setenv("MQTT_BROKER", "tcp://mqtt.local:1883")

	yaml := `
endpoint_url: http://${SENSOR_HOST}/sensores
headers:
  Authorization: Bearer ${API_TOKEN}
journal: ${JOURNAL_DIR:-/var/lib}/transitions.db
mqtt:
  broker: ${MQTT_BROKER}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.EndpointURL != "http://lab.local:8000/sensores" {
		t.Errorf("EndpointURL = %q", cfg.EndpointURL)
	}
	if cfg.Headers["Authorization"] != "Bearer secret" {
		t.Errorf("Headers[Authorization] = %q", cfg.Headers["Authorization"])
	}
	if cfg.Journal != "/var/lib/transitions.db" {
		t.Errorf("Journal = %q", cfg.Journal)
	}
	if cfg.MQTT.Broker != "tcp://mqtt.local:1883" {
		t.Errorf("MQTT.Broker = %q", cfg.MQTT.Broker)
	}
}

func TestParse_EnvVarMissing(t *testing.T) {
	yaml := `
endpoint_url: http://${SENSORSYNC_UNSET_HOST}/sensores
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Parse() expected error for missing env var")
	}
	if !strings.Contains(err.Error(), "SENSORSYNC_UNSET_HOST") {
		t.Errorf("error should name the variable, got: %v", err)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing endpoint",
			yaml:    `port: 8080`,
			wantErr: "endpoint_url is required",
		},
		{
			name:    "no scheme",
			yaml:    `endpoint_url: localhost/sensores`,
			wantErr: "must have a scheme",
		},
		{
			name:    "wrong scheme",
			yaml:    `endpoint_url: ftp://lab/sensores`,
			wantErr: "must be http or https",
		},
		{
			name: "port out of range",
			yaml: `
endpoint_url: http://lab/sensores
port: 70000`,
			wantErr: "port must be between",
		},
		{
			name: "poll interval too short",
			yaml: `
endpoint_url: http://lab/sensores
poll_interval: 100ms`,
			wantErr: "poll_interval must be at least",
		},
		{
			name: "negative stale threshold",
			yaml: `
endpoint_url: http://lab/sensores
stale_threshold: -1s`,
			wantErr: "stale_threshold must be positive",
		},
		{
			name: "fetch timeout not below interval",
			yaml: `
endpoint_url: http://lab/sensores
poll_interval: 5s
fetch_timeout: 5s`,
			wantErr: "must be shorter than poll_interval",
		},
		{
			name: "negative tolerance",
			yaml: `
endpoint_url: http://lab/sensores
tolerance_epsilon: -0.1`,
			wantErr: "tolerance_epsilon",
		},
		{
			name: "mqtt without broker",
			yaml: `
endpoint_url: http://lab/sensores
mqtt:
  topic: lab/reading`,
			wantErr: "mqtt: mqtt broker is required",
		},
		{
			name: "mqtt bad qos",
			yaml: `
endpoint_url: http://lab/sensores
mqtt:
  broker: tcp://broker:1883
  qos: 3`,
			wantErr: "qos must be 0, 1 or 2",
		},
		{
			name: "mqtt bad scheme",
			yaml: `
endpoint_url: http://lab/sensores
mqtt:
  broker: http://broker:1883`,
			wantErr: "mqtt:",
		},
		{
			name: "kafka without brokers",
			yaml: `
endpoint_url: http://lab/sensores
kafka:
  topic: readings`,
			wantErr: "kafka: at least one kafka broker is required",
		},
		{
			name: "bad log level",
			yaml: `
endpoint_url: http://lab/sensores
log:
  level: loud`,
			wantErr: "log.level",
		},
		{
			name: "negative log rotation",
			yaml: `
endpoint_url: http://lab/sensores
log:
  max_backups: -1`,
			wantErr: "rotation limits",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want containing %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("endpoint_url: [unterminated"))
	if err == nil {
		t.Fatal("Parse() expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "failed to parse YAML") {
		t.Errorf("error = %v", err)
	}
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		want    time.Duration
		wantErr bool
	}{
		{"seconds", "poll_interval: 5s", 5 * time.Second, false},
		{"compound", "poll_interval: 1m30s", 90 * time.Second, false},
		{"milliseconds string", "poll_interval: 1500ms", 1500 * time.Millisecond, false},
		{"integer milliseconds", "poll_interval: 5000", 5 * time.Second, false},
		{"quoted string", `poll_interval: "2s"`, 2 * time.Second, false},
		{"invalid", "poll_interval: soon", 0, true},
		{"sequence", "poll_interval: [1, 2]", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte("endpoint_url: http://lab/sensores\n" + tt.yaml))
			if tt.wantErr {
				if err == nil {
					t.Fatal("Parse() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if got := cfg.PollInterval.Duration(); got != tt.want {
				t.Errorf("PollInterval = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogConfig_SlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"nonsense", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			if got := (LogConfig{Level: tt.level}).SlogLevel(); got != tt.want {
				t.Errorf("SlogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "value")
	t.Setenv("EMPTY_VAR", "") // set but empty

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"no vars", "plain text", "plain text", false},
		{"simple var", "${TEST_VAR}", "value", false},
		{"var in text", "prefix ${TEST_VAR} suffix", "prefix value suffix", false},
		{"multiple vars", "${TEST_VAR}-${TEST_VAR}", "value-value", false},
		{"with default (var set)", "${TEST_VAR:-default}", "value", false},
		{"with default (var unset)", "${UNSET:-default}", "default", false},
		{"missing required", "${MISSING}", "", true},
		{"empty default (var unset)", "${UNSET:-}", "", false},
		{"set but empty var", "${EMPTY_VAR}", "", false},
		{"set but empty with default", "${EMPTY_VAR:-fallback}", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandEnvVars(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expandEnvVars() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expandEnvVars() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("expandEnvVars() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensorsync.yaml")
	if err := os.WriteFile(path, []byte("endpoint_url: http://lab/sensores\nport: 9000\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("error = %v", err)
	}
}
