package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/sensorsync/internal/reconcile"
	"github.com/jpalmerr/sensorsync/reading"
)

// DefaultInterval is the poll interval used when none is configured.
const DefaultInterval = 5 * time.Second

// Reconciler is the decision step run once per tick.
type Reconciler interface {
	Reconcile(p reading.Payload, now time.Time) reconcile.Outcome
}

// Tick holds the outcome of one poll-and-reconcile cycle.
type Tick struct {
	// ID correlates log lines, journal entries and published events of one tick.
	ID string

	// StartedAt is when the fetch began.
	StartedAt time.Time

	// Latency is the time taken by the HTTP request.
	Latency time.Duration

	// StatusCode is the HTTP status code, zero if no response was received.
	StatusCode int

	// Outcome is what the reconciler decided.
	Outcome reconcile.Outcome
}

// Config describes the endpoint and timing the [Scheduler] polls with.
type Config struct {
	// URL is the sensor endpoint.
	URL string

	// Headers are extra request headers.
	Headers map[string]string

	// Interval is the time between ticks.
	Interval time.Duration

	// Timeout bounds each fetch. Zero means 80% of Interval.
	Timeout time.Duration

	// Now returns the tick time handed to the reconciler. Defaults to time.Now.
	Now func() time.Time

	// OnSkip is called whenever a tick is dropped because the previous one
	// is still in flight. May be nil.
	OnSkip func()
}

// Scheduler polls the sensor endpoint on a fixed interval and feeds every
// response to a [Reconciler].
//
// The scheduler ticks once immediately on start and then every Interval.
// Ticks pass through a single-slot work queue drained by one worker, so at
// most one reconciliation runs at a time and at most one more waits behind
// it; any further tick is skipped. Results are emitted to a channel that can
// be consumed by the caller.
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Scheduler struct {
	cfg        Config
	reconciler Reconciler
	client     *Client
	results    chan Tick
	queue      chan struct{}
	logger     *slog.Logger
	skipped    atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	started   bool
	stopped   bool
	closeOnce sync.Once
}

// NewScheduler creates a new polling [Scheduler].
//
// The scheduler must be started with [Scheduler.Start] and stopped with
// [Scheduler.Stop]. Results are available via [Scheduler.Results].
func NewScheduler(cfg Config, rec Reconciler, logger *slog.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout(cfg.Interval)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:        cfg,
		reconciler: rec,
		client:     NewClient(),
		results:    make(chan Tick, 1),
		queue:      make(chan struct{}, 1),
		logger:     logger,
	}
}

// DefaultTimeout returns the fetch timeout used when none is configured:
// 80% of the poll interval, so a hung endpoint gives up before the next tick.
func DefaultTimeout(interval time.Duration) time.Duration {
	return interval * 4 / 5
}

// Results returns a receive-only channel that emits one [Tick] per completed
// cycle.
//
// The channel is closed when the scheduler stops. Consumers should read from
// this channel until it is closed.
func (s *Scheduler) Results() <-chan Tick {
	return s.results
}

// Skipped returns how many ticks were dropped because a previous tick was
// still queued.
func (s *Scheduler) Skipped() uint64 {
	return s.skipped.Load()
}

// Start begins the polling loop in background goroutines.
//
// Start is non-blocking and returns immediately. The scheduler will:
//  1. Enqueue a tick immediately
//  2. Enqueue a tick every Interval, skipping it if the queue slot is taken
//  3. Continue until [Scheduler.Stop] is called or the context is cancelled
//
// If ctx is nil, context.Background() is used as the parent context.
// Start is idempotent; subsequent calls after the first are no-ops.
// If Stop was called before Start, Start is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	pollCtx := s.ctx // capture under lock to avoid race
	s.wg.Add(2)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.closeOnce.Do(func() { close(s.results) })

		for {
			select {
			case <-pollCtx.Done():
				return
			case <-s.queue:
				s.runTick(pollCtx)
			}
		}
	}()

	go func() {
		defer s.wg.Done()

		s.enqueue()

		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				s.enqueue()
			}
		}
	}()
}

// Stop halts the scheduler and waits for all goroutines to complete.
//
// Stop cancels the scheduler's context, which abandons an in-flight fetch,
// and blocks until both loops exit and the results channel is closed. The
// abandoned fetch is never reconciled.
//
// Stop is idempotent and safe to call multiple times. Calling Stop before
// Start is a safe no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()

	// clean up client connections after all goroutines complete
	if s.client != nil {
		s.client.Close()
	}

	// ensure channel is closed even if Start() was never called
	s.closeOnce.Do(func() { close(s.results) })
}

// RunOnce performs a single synchronous tick outside the schedule.
//
// The reconciler serializes concurrent calls, so RunOnce may be used while
// the scheduler is running. ok is false if ctx was cancelled before the
// result could be reconciled.
func (s *Scheduler) RunOnce(ctx context.Context) (Tick, bool) {
	return s.tick(ctx)
}

// enqueue offers a tick to the single-slot queue without blocking.
func (s *Scheduler) enqueue() {
	select {
	case s.queue <- struct{}{}:
	default:
		s.skipped.Add(1)
		s.logger.Debug("tick skipped, previous tick still in flight")
		if s.cfg.OnSkip != nil {
			s.cfg.OnSkip()
		}
	}
}

// runTick performs one tick and emits its result.
func (s *Scheduler) runTick(ctx context.Context) {
	t, ok := s.tick(ctx)
	if !ok {
		return
	}

	select {
	case s.results <- t:
	case <-ctx.Done():
	}
}

// tick fetches, then reconciles unless ctx was cancelled meanwhile.
func (s *Scheduler) tick(ctx context.Context) (Tick, bool) {
	id := uuid.NewString()
	started := time.Now()

	resp := s.client.Fetch(ctx, s.cfg.URL, s.cfg.Headers, s.cfg.Timeout)

	// teardown abandons the fetch; its result must not reach the store
	if ctx.Err() != nil {
		s.logger.Debug("tick abandoned", "tick_id", id)
		return Tick{}, false
	}

	out := s.reconciler.Reconcile(resp.Payload(), s.cfg.Now())

	return Tick{
		ID:         id,
		StartedAt:  started,
		Latency:    resp.Latency,
		StatusCode: resp.StatusCode,
		Outcome:    out,
	}, true
}
