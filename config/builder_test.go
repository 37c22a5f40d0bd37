package config

import (
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/jpalmerr/sensorsync"
)

func TestBuildOptions_Minimal(t *testing.T) {
	cfg, err := Parse([]byte("endpoint_url: http://lab.local/sensores\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	eng, err := sensorsync.New(BuildOptions(cfg, nil)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if eng.EndpointURL() != "http://lab.local/sensores" {
		t.Errorf("EndpointURL() = %q", eng.EndpointURL())
	}
	if eng.Port() != 8080 {
		t.Errorf("Port() = %d, want 8080", eng.Port())
	}
	if eng.PollInterval() != 5*time.Second {
		t.Errorf("PollInterval() = %v, want 5s", eng.PollInterval())
	}
	if eng.StaleThreshold() != 20*time.Second {
		t.Errorf("StaleThreshold() = %v, want 20s", eng.StaleThreshold())
	}
	if eng.FetchTimeout() != 4*time.Second {
		t.Errorf("FetchTimeout() = %v, want 4s", eng.FetchTimeout())
	}
	if eng.Tolerance() != 0.1 {
		t.Errorf("Tolerance() = %v, want 0.1", eng.Tolerance())
	}
}

func TestBuildOptions_AllFields(t *testing.T) {
	yaml := `
title: Lab B2
port: 9191
disable_server: true
endpoint_url: https://lab.example.com/sensores
poll_interval: 2s
stale_threshold: 30s
fetch_timeout: 1s
tolerance_epsilon: 0.5
headers:
  X-Lab: b2
journal: /tmp/journal.db
mqtt:
  broker: tcp://broker:1883
kafka:
  brokers: ["kafka:9092"]
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng, err := sensorsync.New(BuildOptions(cfg, logger)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if eng.Port() != 9191 {
		t.Errorf("Port() = %d, want 9191", eng.Port())
	}
	if eng.PollInterval() != 2*time.Second {
		t.Errorf("PollInterval() = %v, want 2s", eng.PollInterval())
	}
	if eng.StaleThreshold() != 30*time.Second {
		t.Errorf("StaleThreshold() = %v, want 30s", eng.StaleThreshold())
	}
	if eng.FetchTimeout() != time.Second {
		t.Errorf("FetchTimeout() = %v, want 1s", eng.FetchTimeout())
	}
	if eng.Tolerance() != 0.5 {
		t.Errorf("Tolerance() = %v, want 0.5", eng.Tolerance())
	}
}

func TestBuildOptions_InvalidValuesRejectedByNew(t *testing.T) {
	// a config built by hand skips Parse validation
	cfg := &Config{
		EndpointURL:    "http://lab/sensores",
		Port:           8080,
		PollInterval:   Duration(time.Second),
		StaleThreshold: Duration(time.Second),
		FetchTimeout:   Duration(2 * time.Second),
		Tolerance:      0.1,
	}

	if _, err := sensorsync.New(BuildOptions(cfg, nil)...); err == nil {
		t.Fatal("New() expected error for fetch timeout above poll interval")
	}
}

func TestMapToKeyValuePairs(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]string
		want []string
	}{
		{"empty", map[string]string{}, []string{}},
		{"single", map[string]string{"a": "1"}, []string{"a", "1"}},
		{"sorted", map[string]string{"b": "2", "a": "1", "c": "3"}, []string{"a", "1", "b", "2", "c", "3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapToKeyValuePairs(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("mapToKeyValuePairs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMQTTConfig_SDK(t *testing.T) {
	m := &MQTTConfig{
		Broker:   "tcp://broker:1883",
		Topic:    "lab/reading",
		QoS:      2,
		Retained: true,
		Timeout:  Duration(3 * time.Second),
	}

	got := m.sdk()
	if got.Broker != m.Broker || got.Topic != m.Topic || got.QoS != 2 || !got.Retained || got.Timeout != 3*time.Second {
		t.Errorf("sdk() = %+v", got)
	}
}
