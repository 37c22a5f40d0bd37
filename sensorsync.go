package sensorsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/sensorsync/dashboard"
	"github.com/jpalmerr/sensorsync/internal/event"
	"github.com/jpalmerr/sensorsync/internal/journal"
	"github.com/jpalmerr/sensorsync/internal/metrics"
	"github.com/jpalmerr/sensorsync/internal/poller"
	"github.com/jpalmerr/sensorsync/internal/publish"
	"github.com/jpalmerr/sensorsync/internal/reconcile"
	"github.com/jpalmerr/sensorsync/internal/server"
	"github.com/jpalmerr/sensorsync/internal/store"
	"github.com/jpalmerr/sensorsync/reading"
)

const (
	defaultPollInterval = poller.DefaultInterval
	defaultPort         = 8080

	// sinkTimeout bounds a single journal write or broker publish.
	sinkTimeout = 5 * time.Second
)

// ErrAlreadyStarted is returned by a second call to [Engine.Start].
var ErrAlreadyStarted = errors.New("engine already started")

// Engine polls one sensor endpoint and keeps the reading consumers should
// display.
//
// Engine is created using [New] with functional options and started with
// [Engine.Start]. The current state is readable at any time through
// [Engine.Current], [Engine.Snapshot] and [Engine.Subscribe], including
// before Start.
//
// The typical lifecycle is:
//
//	eng, err := sensorsync.New(sensorsync.WithEndpointURL("http://lab.local/sensors"))
//	if err != nil {
//	    slog.Error("failed to create engine", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	eng.Start(ctx) // blocks until context cancelled
type Engine struct {
	title          string
	endpointURL    string
	pollInterval   time.Duration
	staleThreshold time.Duration
	fetchTimeout   time.Duration
	tolerance      float64
	port           int
	serve          bool
	logger         *slog.Logger
	callbacks      []func(Change)

	mqttCfg     *MQTTConfig
	kafkaCfg    *KafkaConfig
	journalPath string

	store      *store.SnapshotStore
	reconciler *reconcile.Reconciler
	scheduler  *poller.Scheduler
	metrics    *metrics.Metrics
	started    atomic.Bool

	// sinkMu guards the sinks and serializes fan-out, so callbacks and
	// publishers see commits one at a time and in order.
	sinkMu     sync.Mutex
	publishers []Publisher
	journal    *journal.Journal
}

// New creates a new [Engine] with the given options.
//
// [WithEndpointURL] is required. Other options have sensible defaults:
//   - Poll interval: 5 seconds
//   - Stale threshold: 20 seconds
//   - Tolerance: 0.1
//   - Fetch timeout: 80% of the poll interval
//   - Port: 8080
//
// The engine starts in the fallback state with the staleness clock at the
// current time. Returns an error if any option is invalid.
func New(opts ...Option) (*Engine, error) {
	cfg := &engineConfig{
		pollInterval:   defaultPollInterval,
		staleThreshold: reconcile.DefaultStaleThreshold,
		tolerance:      reading.DefaultEpsilon,
		port:           defaultPort,
		serve:          true,
		clock:          time.Now,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.endpointURL == "" {
		return nil, errors.New("endpoint URL is required")
	}

	if cfg.fetchTimeout == 0 {
		cfg.fetchTimeout = poller.DefaultTimeout(cfg.pollInterval)
	}
	if cfg.fetchTimeout >= cfg.pollInterval {
		return nil, fmt.Errorf("fetch timeout (%s) must be shorter than the poll interval (%s)", cfg.fetchTimeout, cfg.pollInterval)
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	m := metrics.New()
	st := store.NewSnapshotStore(cfg.clock())
	rec := reconcile.NewReconciler(st, reading.NewComparator(cfg.tolerance), cfg.staleThreshold, logger)
	sched := poller.NewScheduler(poller.Config{
		URL:      cfg.endpointURL,
		Headers:  copyMap(cfg.headers),
		Interval: cfg.pollInterval,
		Timeout:  cfg.fetchTimeout,
		Now:      cfg.clock,
		OnSkip:   m.TickSkipped,
	}, rec, logger)

	return &Engine{
		title:          cfg.title,
		endpointURL:    cfg.endpointURL,
		pollInterval:   cfg.pollInterval,
		staleThreshold: cfg.staleThreshold,
		fetchTimeout:   cfg.fetchTimeout,
		tolerance:      cfg.tolerance,
		port:           cfg.port,
		serve:          cfg.serve,
		logger:         logger,
		callbacks:      cfg.callbacks,
		mqttCfg:        cfg.mqtt,
		kafkaCfg:       cfg.kafka,
		journalPath:    cfg.journalPath,
		store:          st,
		reconciler:     rec,
		scheduler:      sched,
		metrics:        m,
		publishers:     cfg.publishers,
	}, nil
}

// Start begins polling and, unless [WithoutServer] was given, serving the
// dashboard and API.
//
// Start is a blocking call that runs until the provided context is cancelled.
// During execution:
//
//   - The endpoint is polled immediately, then every poll interval
//   - Each response is reconciled against the current reading
//   - Every commit is journaled, published and passed to callbacks
//   - The dashboard is available at http://localhost:<port>
//
// Start may be called once. Returns nil on graceful shutdown. Returns an
// error if a sink cannot be opened or the HTTP server fails to start.
func (e *Engine) Start(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	e.logger.Info("sensorsync starting",
		"endpoint", e.endpointURL,
		"poll_interval", e.pollInterval.String(),
		"stale_threshold", e.staleThreshold.String(),
		"fetch_timeout", e.fetchTimeout.String(),
	)

	// check if context already cancelled
	if ctx.Err() != nil {
		e.closeSinks()
		return nil
	}

	if err := e.openSinks(); err != nil {
		e.closeSinks()
		return err
	}
	defer e.closeSinks()

	e.scheduler.Start(ctx)

	// track the results consumer goroutine to ensure clean shutdown
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for tick := range e.scheduler.Results() {
			e.handleTick(tick)
		}
	}()

	// cleanup ensures the scheduler is stopped and every result is processed
	cleanup := func() {
		e.scheduler.Stop()
		wg.Wait()
	}

	if e.serve {
		var opts []server.Option
		opts = append(opts, server.WithMetrics(e.metrics.Handler()))
		if e.journal != nil {
			opts = append(opts, server.WithHistory(e.journal))
		}
		httpServer := server.NewServer(e.store, e.port, dashboard.Assets, e.title, e.logger, opts...)
		if err := httpServer.Start(ctx); err != nil {
			cleanup()
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		e.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", e.port))
	}

	<-ctx.Done()
	cleanup()
	e.logger.Info("sensorsync stopped")
	return nil
}

// Tick performs one synchronous poll-and-reconcile cycle outside the schedule
// and returns the resulting change.
//
// ok is false if nothing was reconciled because ctx was cancelled first.
// The change is also fanned out to callbacks and any sinks Start opened.
func (e *Engine) Tick(ctx context.Context) (Change, bool) {
	tick, ok := e.scheduler.RunOnce(ctx)
	if !ok {
		return Change{}, false
	}
	e.handleTick(tick)
	return newChange(tick), true
}

// Current returns the reading consumers should display.
func (e *Engine) Current() reading.Reading {
	return e.store.Current()
}

// Snapshot returns the engine's current state.
func (e *Engine) Snapshot() State {
	return e.store.Snapshot()
}

// Subscribe returns a channel receiving every committed [State].
//
// The channel is buffered; a subscriber that falls behind misses states.
// Call [Engine.Unsubscribe] when done.
func (e *Engine) Subscribe() <-chan State {
	return e.store.Subscribe()
}

// Unsubscribe removes a subscription and closes its channel.
func (e *Engine) Unsubscribe(ch <-chan State) {
	e.store.Unsubscribe(ch)
}

// EndpointURL returns the polled sensor endpoint.
func (e *Engine) EndpointURL() string {
	return e.endpointURL
}

// Port returns the configured HTTP port for the dashboard server.
func (e *Engine) Port() int {
	return e.port
}

// PollInterval returns the configured interval between ticks.
func (e *Engine) PollInterval() time.Duration {
	return e.pollInterval
}

// StaleThreshold returns how long a live reading may stay unchanged.
func (e *Engine) StaleThreshold() time.Duration {
	return e.staleThreshold
}

// FetchTimeout returns the per-fetch timeout.
func (e *Engine) FetchTimeout() time.Duration {
	return e.fetchTimeout
}

// Tolerance returns the numeric comparison epsilon.
func (e *Engine) Tolerance() float64 {
	return e.tolerance
}

// openSinks opens the journal and connects the configured brokers.
func (e *Engine) openSinks() error {
	e.sinkMu.Lock()
	defer e.sinkMu.Unlock()

	if e.journalPath != "" {
		j, err := journal.Open(e.journalPath)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		e.journal = j
	}
	if e.mqttCfg != nil {
		p, err := publish.NewMQTT(*e.mqttCfg, e.logger)
		if err != nil {
			return fmt.Errorf("failed to start mqtt publisher: %w", err)
		}
		e.publishers = append(e.publishers, p)
	}
	if e.kafkaCfg != nil {
		p, err := publish.NewKafka(*e.kafkaCfg, e.logger)
		if err != nil {
			return fmt.Errorf("failed to start kafka publisher: %w", err)
		}
		e.publishers = append(e.publishers, p)
	}
	return nil
}

// closeSinks closes every sink, logging failures.
func (e *Engine) closeSinks() {
	e.sinkMu.Lock()
	defer e.sinkMu.Unlock()

	for _, p := range e.publishers {
		if err := p.Close(); err != nil {
			e.logger.Warn("failed to close publisher", "sink", p.Name(), "error", err)
		}
	}
	e.publishers = nil

	if err := e.journal.Close(); err != nil {
		e.logger.Warn("failed to close journal", "error", err)
	}
	e.journal = nil
}

// handleTick records metrics and logs for a tick and fans out commits.
func (e *Engine) handleTick(t poller.Tick) {
	out := t.Outcome
	e.metrics.ObserveTick(out, t.Latency, reading.FailureKind(out.Err))

	logAttrs := []any{
		"tick_id", t.ID,
		"decision", string(out.Decision),
		"state", string(out.To),
		"version", out.State.Version,
		"latency_ms", t.Latency.Milliseconds(),
	}
	switch {
	case !out.Changed():
		e.logger.Debug("tick held", logAttrs...)
		return
	case out.From != out.To:
		e.logger.Info("display mode changed", append(logAttrs, "from", string(out.From), "reading", out.State.Current.String())...)
	default:
		e.logger.Debug("reading committed", append(logAttrs, "reading", out.State.Current.String())...)
	}

	e.sinkMu.Lock()
	defer e.sinkMu.Unlock()

	ev := event.FromOutcome(t.ID, out)
	if e.journal != nil {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		if err := e.journal.Record(ctx, ev); err != nil {
			e.metrics.SinkError("journal")
			e.logger.Warn("failed to journal change", "tick_id", t.ID, "error", err)
		}
		cancel()
	}
	for _, p := range e.publishers {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		if err := p.Publish(ctx, ev); err != nil {
			e.metrics.SinkError(p.Name())
			e.logger.Warn("failed to publish change", "sink", p.Name(), "tick_id", t.ID, "error", err)
		}
		cancel()
	}

	if len(e.callbacks) > 0 {
		change := newChange(t)
		for _, cb := range e.callbacks {
			e.invokeCallbackSafe(cb, change)
		}
	}
}

// newChange converts a poller tick into the public callback type.
func newChange(t poller.Tick) Change {
	out := t.Outcome
	return Change{
		TickID:      t.ID,
		Decision:    out.Decision,
		From:        out.From,
		To:          out.To,
		Reading:     out.State.Current,
		Candidate:   out.Candidate,
		Version:     out.State.Version,
		CommittedAt: out.State.CommittedAt,
		Latency:     t.Latency,
		Err:         out.Err,
	}
}

// invokeCallbackSafe calls a reading callback with panic recovery.
// Panics are logged with a correlation ID and stack but do not propagate.
func (e *Engine) invokeCallbackSafe(cb func(Change), c Change) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("reading callback panicked",
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
				"tick_id", c.TickID,
				"stack", string(debug.Stack()),
			)
		}
	}()
	cb(c)
}

// copyMap returns a copy of the map, or nil if input is nil.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
