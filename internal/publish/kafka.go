package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jpalmerr/sensorsync/internal/event"
)

const (
	defaultKafkaTopic   = "sensorsync.readings"
	defaultKafkaTimeout = 5 * time.Second
)

// KafkaConfig describes the cluster and topic of a [Kafka] publisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	// Key is the message key; all events of one engine share it so they land
	// on one partition in commit order.
	Key     string
	Timeout time.Duration
}

// Validate reports the first problem with c.
func (c KafkaConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("at least one kafka broker is required")
	}
	for i, b := range c.Brokers {
		if b == "" {
			return fmt.Errorf("kafka broker %d is empty", i)
		}
	}
	return nil
}

func (c KafkaConfig) withDefaults() KafkaConfig {
	if c.Topic == "" {
		c.Topic = defaultKafkaTopic
	}
	if c.Key == "" {
		c.Key = "sensorsync"
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultKafkaTimeout
	}
	return c
}

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka writes change events to a Kafka topic.
type Kafka struct {
	cfg    KafkaConfig
	writer messageWriter
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewKafka returns a publisher writing to cfg.Topic. The writer connects
// lazily on the first publish.
func NewKafka(cfg KafkaConfig, logger *slog.Logger) (*Kafka, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		WriteTimeout: cfg.Timeout,
	}

	logger.Info("kafka publisher configured", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return newKafka(cfg, w, logger), nil
}

func newKafka(cfg KafkaConfig, w messageWriter, logger *slog.Logger) *Kafka {
	return &Kafka{cfg: cfg.withDefaults(), writer: w, logger: logger}
}

// Name implements [Publisher].
func (p *Kafka) Name() string { return "kafka" }

// Publish implements [Publisher].
func (p *Kafka) Publish(ctx context.Context, e event.ChangeEvent) error {
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

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(p.cfg.Key),
		Value: payload,
		Time:  e.CommittedAt,
		Headers: []kafka.Header{
			{Key: "tick_id", Value: []byte(e.TickID)},
			{Key: "decision", Value: []byte(e.Decision)},
			{Key: "version", Value: []byte(strconv.FormatUint(e.Version, 10))},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to %s: %w", p.cfg.Topic, err)
	}
	return nil
}

// Close flushes and closes the writer. Safe to call more than once.
func (p *Kafka) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}

var _ Publisher = (*Kafka)(nil)
