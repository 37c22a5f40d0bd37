package store

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpalmerr/sensorsync/internal/reconcile"
	"github.com/jpalmerr/sensorsync/reading"
)

// subscriberBuffer is the per-subscriber channel capacity.
const subscriberBuffer = 16

// SnapshotStore is the in-memory implementation of [Store].
//
// The current state lives behind an atomic pointer, so [SnapshotStore.Snapshot]
// never blocks and never observes a partially written state. Commits are
// expected from a single writer; they are additionally serialized so that
// subscribers see states in commit order.
//
// Subscribers receive updates via buffered channels. Updates are sent
// non-blocking; if a subscriber's buffer is full, the update is dropped for
// that subscriber to prevent blocking the reconciler.
type SnapshotStore struct {
	current atomic.Pointer[reconcile.SyncState]

	commitMu    sync.Mutex
	subscribers map[chan reconcile.SyncState]struct{}
	subMu       sync.RWMutex
}

// NewSnapshotStore creates a store holding the initial state for an engine
// started at start: the fallback reading with the staleness clock at start.
func NewSnapshotStore(start time.Time) *SnapshotStore {
	s := &SnapshotStore{
		subscribers: make(map[chan reconcile.SyncState]struct{}),
	}
	initial := reconcile.InitialState(start)
	s.current.Store(&initial)
	return s
}

// Snapshot returns the current state.
func (s *SnapshotStore) Snapshot() reconcile.SyncState {
	return *s.current.Load()
}

// Current returns the reading consumers should display.
func (s *SnapshotStore) Current() reading.Reading {
	return s.current.Load().Current
}

// Commit publishes state as the current state and notifies all subscribers.
func (s *SnapshotStore) Commit(state reconcile.SyncState) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	next := state
	s.current.Store(&next)
	s.notifySubscribers(next)
}

// Subscribe creates a new subscription and returns a channel for receiving
// committed states.
//
// Caller must call [SnapshotStore.Unsubscribe] when done to prevent resource leaks.
func (s *SnapshotStore) Subscribe() <-chan reconcile.SyncState {
	ch := make(chan reconcile.SyncState, subscriberBuffer)

	s.subMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// Safe to call multiple times or with an unknown channel.
func (s *SnapshotStore) Unsubscribe(ch <-chan reconcile.SyncState) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for subCh := range s.subscribers {
		if subCh == ch {
			delete(s.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends state to all active subscribers without blocking.
func (s *SnapshotStore) notifySubscribers(state reconcile.SyncState) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for ch := range s.subscribers {
		select {
		case ch <- state:
		default:
			// subscriber is slow, drop the message
		}
	}
}

var _ Store = (*SnapshotStore)(nil)
