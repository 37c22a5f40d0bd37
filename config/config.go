// Package config provides YAML configuration parsing for sensorsync.
//
// This package enables running sensorsync as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	port: 8080
//	endpoint_url: http://${SENSOR_HOST:-localhost:8000}/sensores
//	poll_interval: 5s
//	stale_threshold: 20s
//	tolerance_epsilon: 0.1
//
//	journal: /var/lib/sensorsync/transitions.db
//
//	mqtt:
//	  broker: tcp://broker:1883
//	  topic: lab/reading
//
//	log:
//	  level: debug
//	  file: /var/log/sensorsync.log
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/sensorsync"
)

// minPollInterval is the minimum allowed polling interval for production configs.
// This prevents accidental DoS of the sensor endpoint with overly aggressive polling.
const minPollInterval = 1 * time.Second

const (
	defaultPort           = 8080
	defaultPollInterval   = 5 * time.Second
	defaultStaleThreshold = 20 * time.Second
	defaultTolerance      = 0.1
)

// Config is the root configuration structure for sensorsync.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "sensorsync" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// DisableServer turns off the dashboard and API.
	DisableServer bool `yaml:"disable_server"`

	// EndpointURL is the sensor endpoint. Required.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	EndpointURL string `yaml:"endpoint_url"`

	// PollInterval is the time between ticks. Defaults to 5s.
	PollInterval Duration `yaml:"poll_interval"`

	// StaleThreshold is how long a live reading may stay unchanged before
	// the fallback is shown. Defaults to 20s.
	StaleThreshold Duration `yaml:"stale_threshold"`

	// FetchTimeout bounds each fetch. Defaults to 80% of the poll interval.
	FetchTimeout Duration `yaml:"fetch_timeout"`

	// Tolerance is the numeric comparison epsilon. Defaults to 0.1.
	Tolerance float64 `yaml:"tolerance_epsilon"`

	// Headers are custom HTTP headers sent with each fetch.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`

	// Journal is the path of the SQLite transition journal. Empty disables it.
	Journal string `yaml:"journal"`

	MQTT  *MQTTConfig  `yaml:"mqtt"`
	Kafka *KafkaConfig `yaml:"kafka"`

	Log LogConfig `yaml:"log"`
}

// MQTTConfig configures the MQTT publisher.
type MQTTConfig struct {
	// Broker is the broker URL, e.g. tcp://broker:1883. Supports env substitution.
	Broker   string   `yaml:"broker"`
	Topic    string   `yaml:"topic"`
	ClientID string   `yaml:"client_id"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	QoS      int      `yaml:"qos"`
	Retained bool     `yaml:"retained"`
	Timeout  Duration `yaml:"timeout"`
}

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	// Brokers are host:port addresses. Each supports env substitution.
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	Key     string   `yaml:"key"`
	Timeout Duration `yaml:"timeout"`
}

// LogConfig configures the CLI logger.
type LogConfig struct {
	// Level is debug, info, warn or error. Defaults to info.
	Level string `yaml:"level"`

	// File, when set, receives the logs in addition to stderr and is rotated
	// by size.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// SlogLevel returns the parsed level. Call it on a validated config.
func (l LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if l.Level == "" {
		return slog.LevelInfo
	}
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Duration wraps time.Duration for YAML unmarshalling.
//
// It accepts duration strings ("5s", "1m30s") or a bare integer number of
// milliseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a string or integer, got %v", node.Kind)
	}

	if node.ShortTag() == "!!int" {
		var ms int64
		if err := node.Decode(&ms); err != nil {
			return err
		}
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in the endpoint URL, header values, the
// journal path and broker addresses. Defaults are applied for Port (8080),
// PollInterval (5s), StaleThreshold (20s) and Tolerance (0.1).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = Duration(defaultPollInterval)
	}
	if cfg.StaleThreshold == 0 {
		cfg.StaleThreshold = Duration(defaultStaleThreshold)
	}
	if cfg.Tolerance == 0 {
		cfg.Tolerance = defaultTolerance
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.EndpointURL == "" {
		return errors.New("endpoint_url is required")
	}
	expanded, err := expandEnvVars(c.EndpointURL)
	if err != nil {
		return fmt.Errorf("endpoint_url: %w", err)
	}
	c.EndpointURL = expanded

	parsedURL, err := url.Parse(c.EndpointURL)
	if err != nil {
		return fmt.Errorf("endpoint_url: invalid url: %w", err)
	}
	if parsedURL.Scheme == "" {
		return errors.New("endpoint_url: url must have a scheme (http:// or https://)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("endpoint_url: url scheme must be http or https, got %q", parsedURL.Scheme)
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}
	if c.StaleThreshold.Duration() <= 0 {
		return fmt.Errorf("stale_threshold must be positive, got %s", c.StaleThreshold.Duration())
	}
	if c.FetchTimeout != 0 {
		if c.FetchTimeout.Duration() < 0 {
			return fmt.Errorf("fetch_timeout cannot be negative, got %s", c.FetchTimeout.Duration())
		}
		if c.FetchTimeout.Duration() >= c.PollInterval.Duration() {
			return fmt.Errorf("fetch_timeout (%s) must be shorter than poll_interval (%s)",
				c.FetchTimeout.Duration(), c.PollInterval.Duration())
		}
	}
	if math.IsNaN(c.Tolerance) || math.IsInf(c.Tolerance, 0) || c.Tolerance < 0 {
		return fmt.Errorf("tolerance_epsilon must be a positive number, got %v", c.Tolerance)
	}

	for k, v := range c.Headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("headers[%s]: %w", k, err)
		}
		c.Headers[k] = expanded
	}

	if c.Journal != "" {
		expanded, err := expandEnvVars(c.Journal)
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		c.Journal = expanded
	}

	if c.MQTT != nil {
		if err := c.MQTT.expandAndValidate(); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if c.Kafka != nil {
		if err := c.Kafka.expandAndValidate(); err != nil {
			return fmt.Errorf("kafka: %w", err)
		}
	}

	if c.Log.Level != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
			return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
		}
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return errors.New("log: rotation limits cannot be negative")
	}

	return nil
}

func (m *MQTTConfig) expandAndValidate() error {
	expanded, err := expandEnvVars(m.Broker)
	if err != nil {
		return fmt.Errorf("broker: %w", err)
	}
	m.Broker = expanded

	for _, field := range []*string{&m.Username, &m.Password} {
		expanded, err := expandEnvVars(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}

	if m.QoS < 0 || m.QoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2, got %d", m.QoS)
	}
	if m.Timeout.Duration() < 0 {
		return fmt.Errorf("timeout cannot be negative, got %s", m.Timeout.Duration())
	}
	return m.sdk().Validate()
}

// sdk converts m to the engine's MQTT configuration.
func (m *MQTTConfig) sdk() sensorsync.MQTTConfig {
	return sensorsync.MQTTConfig{
		Broker:   m.Broker,
		Topic:    m.Topic,
		ClientID: m.ClientID,
		Username: m.Username,
		Password: m.Password,
		QoS:      byte(m.QoS),
		Retained: m.Retained,
		Timeout:  m.Timeout.Duration(),
	}
}

func (k *KafkaConfig) expandAndValidate() error {
	for i, b := range k.Brokers {
		expanded, err := expandEnvVars(strings.TrimSpace(b))
		if err != nil {
			return fmt.Errorf("brokers[%d]: %w", i, err)
		}
		k.Brokers[i] = expanded
	}
	if k.Timeout.Duration() < 0 {
		return fmt.Errorf("timeout cannot be negative, got %s", k.Timeout.Duration())
	}
	return k.sdk().Validate()
}

// sdk converts k to the engine's Kafka configuration.
func (k *KafkaConfig) sdk() sensorsync.KafkaConfig {
	return sensorsync.KafkaConfig{
		Brokers: append([]string(nil), k.Brokers...),
		Topic:   k.Topic,
		Key:     k.Key,
		Timeout: k.Timeout.Duration(),
	}
}
