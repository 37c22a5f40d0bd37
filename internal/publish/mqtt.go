package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/jpalmerr/sensorsync/internal/event"
)

const (
	defaultMQTTTopic   = "sensorsync/reading"
	defaultMQTTTimeout = 5 * time.Second
	mqttQuiesceMillis  = 250
)

// MQTTConfig describes the broker connection of an [MQTT] publisher.
type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
	QoS      byte
	Retained bool
	Timeout  time.Duration
}

// Validate reports the first problem with c.
func (c MQTTConfig) Validate() error {
	if c.Broker == "" {
		return errors.New("mqtt broker is required")
	}
	u, err := url.Parse(c.Broker)
	if err != nil {
		return fmt.Errorf("invalid mqtt broker %q: %w", c.Broker, err)
	}
	switch u.Scheme {
	case "tcp", "ssl", "tls", "ws", "wss", "mqtt", "mqtts":
	default:
		return fmt.Errorf("mqtt broker %q must use tcp, ssl, tls, ws, wss, mqtt or mqtts", c.Broker)
	}
	if c.QoS > 2 {
		return fmt.Errorf("mqtt qos must be 0, 1 or 2, got %d", c.QoS)
	}
	return nil
}

func (c MQTTConfig) withDefaults() MQTTConfig {
	if c.Topic == "" {
		c.Topic = defaultMQTTTopic
	}
	if c.ClientID == "" {
		c.ClientID = "sensorsync"
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultMQTTTimeout
	}
	return c
}

// mqttClient is the subset of mqtt.Client the publisher uses.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes change events to an MQTT topic.
type MQTT struct {
	cfg    MQTTConfig
	client mqttClient
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewMQTT connects to the broker and returns a ready publisher.
//
// The client reconnects automatically; publishes made while disconnected
// fail with the token's error and are not retried.
func NewMQTT(cfg MQTTConfig, logger *slog.Logger) (*MQTT, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.Timeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("mqtt connection lost", "broker", cfg.Broker, "error", err)
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("connect to mqtt broker %s: timed out after %s", cfg.Broker, cfg.Timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", cfg.Broker, err)
	}

	logger.Info("mqtt publisher connected", "broker", cfg.Broker, "topic", cfg.Topic)
	return newMQTT(cfg, client, logger), nil
}

func newMQTT(cfg MQTTConfig, client mqttClient, logger *slog.Logger) *MQTT {
	return &MQTT{cfg: cfg.withDefaults(), client: client, logger: logger}
}

// Name implements [Publisher].
func (p *MQTT) Name() string { return "mqtt" }

// Publish implements [Publisher].
func (p *MQTT) Publish(ctx context.Context, e event.ChangeEvent) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrClosed
	}

	payload, err := e.Encode()
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}

	token := p.client.Publish(p.cfg.Topic, p.cfg.QoS, p.cfg.Retained, payload)

	timeout := p.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(timeout):
		return fmt.Errorf("publish to %s: timed out after %s", p.cfg.Topic, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.cfg.Topic, err)
	}
	return nil
}

// Close disconnects from the broker. Safe to call more than once.
func (p *MQTT) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.client.Disconnect(mqttQuiesceMillis)
	return nil
}

var _ Publisher = (*MQTT)(nil)
