package config

import (
	"log/slog"
	"sort"

	"github.com/jpalmerr/sensorsync"
)

// BuildOptions converts parsed configuration into SDK options for
// [sensorsync.New].
//
// The logger is passed through with [sensorsync.WithLogger] when non-nil.
// Validation of the individual values is left to the options themselves.
func BuildOptions(cfg *Config, logger *slog.Logger) []sensorsync.Option {
	opts := []sensorsync.Option{
		sensorsync.WithEndpointURL(cfg.EndpointURL),
		sensorsync.WithPort(cfg.Port),
		sensorsync.WithPollInterval(cfg.PollInterval.Duration()),
		sensorsync.WithStaleThreshold(cfg.StaleThreshold.Duration()),
		sensorsync.WithTolerance(cfg.Tolerance),
	}

	if cfg.FetchTimeout != 0 {
		opts = append(opts, sensorsync.WithFetchTimeout(cfg.FetchTimeout.Duration()))
	}

	if len(cfg.Headers) > 0 {
		opts = append(opts, sensorsync.WithHeaders(mapToKeyValuePairs(cfg.Headers)...))
	}

	if cfg.Title != "" {
		opts = append(opts, sensorsync.WithTitle(cfg.Title))
	}

	if cfg.DisableServer {
		opts = append(opts, sensorsync.WithoutServer())
	}

	if cfg.Journal != "" {
		opts = append(opts, sensorsync.WithJournal(cfg.Journal))
	}

	if cfg.MQTT != nil {
		opts = append(opts, sensorsync.WithMQTT(cfg.MQTT.sdk()))
	}

	if cfg.Kafka != nil {
		opts = append(opts, sensorsync.WithKafka(cfg.Kafka.sdk()))
	}

	if logger != nil {
		opts = append(opts, sensorsync.WithLogger(logger))
	}

	return opts
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	// sort keys for deterministic ordering
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}
