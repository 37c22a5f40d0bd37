package sensorsync

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"time"
)

// engineConfig holds mutable state during Engine construction.
type engineConfig struct {
	title          string
	endpointURL    string
	pollInterval   time.Duration
	staleThreshold time.Duration
	fetchTimeout   time.Duration
	tolerance      float64
	headers        map[string]string
	port           int
	serve          bool
	logger         *slog.Logger
	callbacks      []func(Change)
	publishers     []Publisher
	mqtt           *MQTTConfig
	kafka          *KafkaConfig
	journalPath    string
	clock          func() time.Time
}

// Option is a function that configures an [Engine] during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*engineConfig) error

// WithEndpointURL sets the sensor endpoint to poll. Required.
//
// Only http and https URLs are accepted.
func WithEndpointURL(rawURL string) Option {
	return func(cfg *engineConfig) error {
		u, err := url.Parse(rawURL)
		if err != nil {
			return fmt.Errorf("invalid endpoint URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("endpoint URL must use http or https scheme, got %q", u.Scheme)
		}
		if u.Host == "" {
			return errors.New("endpoint URL must have a host")
		}
		cfg.endpointURL = rawURL
		return nil
	}
}

// WithPollInterval sets the time between ticks. Defaults to 5 seconds.
//
// Returns an error if the duration is zero or negative.
func WithPollInterval(d time.Duration) Option {
	return func(cfg *engineConfig) error {
		if d <= 0 {
			return errors.New("poll interval must be positive")
		}
		cfg.pollInterval = d
		return nil
	}
}

// WithStaleThreshold sets how long a live reading may stay unchanged before
// the engine falls back. Defaults to 20 seconds.
//
// Returns an error if the duration is zero or negative.
func WithStaleThreshold(d time.Duration) Option {
	return func(cfg *engineConfig) error {
		if d <= 0 {
			return errors.New("stale threshold must be positive")
		}
		cfg.staleThreshold = d
		return nil
	}
}

// WithTolerance sets the epsilon under which two numeric measurements are
// considered equal. Defaults to 0.1.
//
// Returns an error unless eps is finite and positive.
func WithTolerance(eps float64) Option {
	return func(cfg *engineConfig) error {
		if math.IsNaN(eps) || math.IsInf(eps, 0) || eps <= 0 {
			return fmt.Errorf("tolerance must be a positive finite number, got %v", eps)
		}
		cfg.tolerance = eps
		return nil
	}
}

// WithFetchTimeout bounds each fetch. Defaults to 80% of the poll interval and
// must stay below it, which [New] checks once all options are applied.
func WithFetchTimeout(d time.Duration) Option {
	return func(cfg *engineConfig) error {
		if d <= 0 {
			return errors.New("fetch timeout must be positive")
		}
		cfg.fetchTimeout = d
		return nil
	}
}

// WithHeaders adds HTTP headers sent with every fetch, as key-value pairs.
//
// Example:
//
//	sensorsync.WithHeaders("Authorization", "Bearer token", "X-Lab", "b2")
//
// Returns an error if an odd number of arguments is given. Cache-control
// headers are always overridden so that no cached reading is served.
func WithHeaders(kv ...string) Option {
	return func(cfg *engineConfig) error {
		if len(kv)%2 != 0 {
			return errors.New("headers must be key-value pairs")
		}
		if cfg.headers == nil {
			cfg.headers = make(map[string]string, len(kv)/2)
		}
		for i := 0; i < len(kv); i += 2 {
			cfg.headers[kv[i]] = kv[i+1]
		}
		return nil
	}
}

// WithPort sets the HTTP port for the dashboard and API. Defaults to 8080.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *engineConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithoutServer disables the HTTP server. The engine still polls and feeds
// callbacks, sinks and subscribers.
func WithoutServer() Option {
	return func(cfg *engineConfig) error {
		cfg.serve = false
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the engine.
//
// If not specified, [slog.Default] is used. Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *engineConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithReadingCallback registers a function called after every commit.
//
// Multiple callbacks may be registered; they execute in registration order,
// synchronously, from a single goroutine. Callbacks must be non-blocking.
// Panics within callbacks are recovered and logged.
//
// Example:
//
//	sensorsync.WithReadingCallback(func(c sensorsync.Change) {
//	    if c.To == sensorsync.ModeFallback {
//	        log.Printf("sensor feed lost: %v", c.Err)
//	    }
//	})
//
// Nil callbacks are silently ignored.
func WithReadingCallback(cb func(Change)) Option {
	return func(cfg *engineConfig) error {
		if cb == nil {
			return nil
		}
		cfg.callbacks = append(cfg.callbacks, cb)
		return nil
	}
}

// WithPublisher adds a sink that receives a [ChangeEvent] for every commit.
//
// The engine closes the publisher when [Engine.Start] returns.
func WithPublisher(p Publisher) Option {
	return func(cfg *engineConfig) error {
		if p == nil {
			return errors.New("publisher cannot be nil")
		}
		cfg.publishers = append(cfg.publishers, p)
		return nil
	}
}

// WithMQTT publishes every commit to an MQTT broker. The connection is made
// by [Engine.Start].
func WithMQTT(c MQTTConfig) Option {
	return func(cfg *engineConfig) error {
		if err := c.Validate(); err != nil {
			return err
		}
		cfg.mqtt = &c
		return nil
	}
}

// WithKafka writes every commit to a Kafka topic.
func WithKafka(c KafkaConfig) Option {
	return func(cfg *engineConfig) error {
		if err := c.Validate(); err != nil {
			return err
		}
		cfg.kafka = &c
		return nil
	}
}

// WithJournal records every commit in the SQLite database at path and serves
// the history at /api/history.
func WithJournal(path string) Option {
	return func(cfg *engineConfig) error {
		if path == "" {
			return errors.New("journal path cannot be empty")
		}
		cfg.journalPath = path
		return nil
	}
}

// WithClock replaces time.Now as the source of tick times. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(cfg *engineConfig) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		cfg.clock = now
		return nil
	}
}

// WithTitle sets the dashboard title displayed in the browser tab and header.
//
// If not specified, defaults to "sensorsync".
func WithTitle(title string) Option {
	return func(cfg *engineConfig) error {
		cfg.title = title
		return nil
	}
}
