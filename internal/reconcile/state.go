package reconcile

import (
	"time"

	"github.com/jpalmerr/sensorsync/reading"
)

// Mode is the coarse display state of the engine.
type Mode string

const (
	// ModeLive means the current reading came from the sensor endpoint.
	ModeLive Mode = "live"

	// ModeFallback means the fallback sentinel is displayed.
	ModeFallback Mode = "fallback"
)

// ModeOf returns the mode implied by r.
func ModeOf(r reading.Reading) Mode {
	if r.IsFallback() {
		return ModeFallback
	}
	return ModeLive
}

// SyncState is the single current reading and the staleness clock that
// goes with it.
//
// SyncState values are immutable snapshots. The [Reconciler] produces a new
// SyncState for every commit and hands it to a [Store].
type SyncState struct {
	// Current is the reading consumers should display.
	Current reading.Reading

	// Clock tracks the last accepted live reading.
	Clock StalenessMonitor

	// Version counts commits since the engine started. Zero is the initial state.
	Version uint64

	// CommittedAt is when Current was committed, or the engine start time.
	CommittedAt time.Time
}

// InitialState returns the state an engine starts in: the fallback reading
// with the staleness clock started at start.
func InitialState(start time.Time) SyncState {
	return SyncState{
		Current:     reading.Fallback(),
		Clock:       NewStalenessMonitor(start),
		CommittedAt: start,
	}
}

// Mode returns the display mode of the current reading.
func (s SyncState) Mode() Mode {
	return ModeOf(s.Current)
}

// Store holds the current [SyncState].
//
// Implementations must make Snapshot safe to call concurrently with Commit
// and must publish each committed state atomically. Only the [Reconciler]
// calls Commit.
type Store interface {
	// Snapshot returns the current state.
	Snapshot() SyncState

	// Commit replaces the current state.
	Commit(state SyncState)
}
