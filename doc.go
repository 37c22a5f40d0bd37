// Package sensorsync keeps a trustworthy "current reading" from an
// unreliable sensor feed.
//
// An [Engine] polls one HTTP endpoint on a fixed interval, normalizes each
// JSON payload into a [reading.Reading], and decides whether it supersedes
// the reading currently displayed. When the endpoint fails, or keeps
// returning the same values for longer than the stale threshold, the engine
// falls back to a fixed sentinel reading so consumers never show frozen data
// as if it were live.
//
// # Quick Start
//
//	eng, _ := sensorsync.New(sensorsync.WithEndpointURL("http://lab.local/sensors"))
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	eng.Start(ctx) // blocks until context is cancelled
//
// # Configuration
//
// The engine uses the functional options pattern:
//
//	eng, err := sensorsync.New(
//	    sensorsync.WithEndpointURL("http://lab.local/sensors"),
//	    sensorsync.WithPollInterval(5 * time.Second),
//	    sensorsync.WithStaleThreshold(20 * time.Second),
//	    sensorsync.WithTolerance(0.1),
//	    sensorsync.WithJournal("transitions.db"),
//	    sensorsync.WithMQTT(sensorsync.MQTTConfig{Broker: "tcp://broker:1883"}),
//	)
//
// The config package loads the same settings from a YAML file.
//
// # Reading the State
//
// [Engine.Current] and [Engine.Snapshot] return the latest committed state
// without blocking. [Engine.Subscribe] streams every commit, and
// [WithReadingCallback] registers a function called after each one.
//
// # Architecture
//
// The engine consists of several internal packages (under internal/):
//
//   - internal/poller: Interval ticker, single-slot work queue and HTTP client
//   - internal/reconcile: The per-tick decision procedure and staleness clock
//   - internal/store: Atomic snapshot store with pub/sub for real-time updates
//   - internal/server: HTTP server with REST API, Server-Sent Events and metrics
//   - internal/journal: SQLite log of every commit
//   - internal/publish: MQTT and Kafka sinks
//   - internal/metrics: Prometheus instruments
//   - dashboard: Embedded web UI assets
//
// The reading package is public so that callers can inspect readings and
// reuse the normalizer and comparator on their own.
package sensorsync
