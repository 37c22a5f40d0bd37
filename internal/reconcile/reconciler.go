// Package reconcile decides, once per poll, whether a freshly fetched
// sensor reading replaces the one currently displayed.
//
// The decision procedure lives in [Reconciler.Reconcile]. It is a small
// state machine over two modes, [ModeLive] and [ModeFallback]:
//
//   - FALLBACK -> LIVE: a successful fetch yields a reading that differs from the sentinel
//   - LIVE -> LIVE: a successful fetch yields a changed reading; the staleness clock restarts
//   - LIVE -> FALLBACK: a failed fetch, or a successful fetch whose value has not
//     changed for longer than the stale threshold
//   - FALLBACK -> FALLBACK: a failed fetch while already on the sentinel; nothing is written
//
// Users of the sensorsync library should not need to interact with this
// package directly.
package reconcile

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jpalmerr/sensorsync/reading"
)

// Decision is what a single reconciliation did to the store.
type Decision string

const (
	// DecisionHeld means nothing was committed.
	DecisionHeld Decision = "held"

	// DecisionCommitted means the candidate reading was committed.
	DecisionCommitted Decision = "committed"

	// DecisionStaleReverted means a frozen live feed was replaced with the fallback reading.
	DecisionStaleReverted Decision = "stale_reverted"
)

// Outcome describes one reconciliation.
type Outcome struct {
	// Decision is what happened to the store.
	Decision Decision

	// From is the mode before the tick, To the mode after it.
	From, To Mode

	// Candidate is the normalized reading produced this tick.
	Candidate reading.Reading

	// State is the store's state after the tick (unchanged when held).
	State SyncState

	// Elapsed is the time since the last live update, measured before the tick.
	Elapsed time.Duration

	// Err is the normalization failure, if any. It is informational only.
	Err error
}

// Changed reports whether the tick committed anything.
func (o Outcome) Changed() bool {
	return o.Decision != DecisionHeld
}

// Reconciler runs the per-tick decision procedure against a [Store].
//
// Reconcile calls are serialized, so a Reconciler may be shared by
// goroutines, but it must be the only writer of its store.
type Reconciler struct {
	store      Store
	comparator reading.Comparator
	threshold  time.Duration
	logger     *slog.Logger

	mu sync.Mutex
}

// NewReconciler returns a Reconciler committing to st.
//
// A non-positive threshold uses [DefaultStaleThreshold]. A nil logger uses
// slog.Default().
func NewReconciler(st Store, cmp reading.Comparator, threshold time.Duration, logger *slog.Logger) *Reconciler {
	if threshold <= 0 {
		threshold = DefaultStaleThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:      st,
		comparator: cmp,
		threshold:  threshold,
		logger:     logger,
	}
}

// Threshold returns the configured stale threshold.
func (r *Reconciler) Threshold() time.Duration {
	return r.threshold
}

// Reconcile normalizes p, compares it to the current reading and commits at
// most one new state, using now as the tick time.
func (r *Reconciler) Reconcile(p reading.Payload, now time.Time) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.store.Snapshot()

	candidate, err := reading.Normalize(p)
	ok := err == nil
	if !ok {
		r.logger.Warn("sensor fetch degraded to fallback",
			"kind", reading.FailureKind(err),
			"error", err.Error(),
		)
	}

	current := state.Current
	changed := !r.comparator.Equal(&current, &candidate)
	wasLive := !current.IsFallback()
	elapsed := state.Clock.Elapsed(now)

	out := Outcome{
		Decision:  DecisionHeld,
		From:      state.Mode(),
		To:        state.Mode(),
		Candidate: candidate,
		State:     state,
		Elapsed:   elapsed,
		Err:       err,
	}

	// a feed that keeps answering with the same value is treated as stuck
	if ok && !changed && wasLive && elapsed > r.threshold {
		next := SyncState{
			Current:     reading.Fallback(),
			Clock:       state.Clock,
			Version:     state.Version + 1,
			CommittedAt: now,
		}
		r.store.Commit(next)
		r.logger.Warn("sensor feed stale, reverting to fallback",
			"elapsed", elapsed.String(),
			"threshold", r.threshold.String(),
		)

		out.Decision = DecisionStaleReverted
		out.To = ModeFallback
		out.State = next
		return out
	}

	if !changed {
		return out
	}

	next := SyncState{
		Current:     candidate,
		Clock:       state.Clock,
		Version:     state.Version + 1,
		CommittedAt: now,
	}
	// failure-driven changes keep the clock: it measures time since the last
	// successful live reading, not since the last display change
	if ok {
		next.Clock = state.Clock.Reset(now)
	}
	r.store.Commit(next)

	out.Decision = DecisionCommitted
	out.To = next.Mode()
	out.State = next
	return out
}
