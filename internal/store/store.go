package store

import "github.com/jpalmerr/sensorsync/internal/reconcile"

// Store is the full contract of the engine's state holder.
//
// Store implementations must be safe for concurrent access. Commit is called
// only by the reconciler; everything else may be called from any goroutine.
type Store interface {
	reconcile.Store

	// Subscribe returns a channel that receives every committed state.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan reconcile.SyncState

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan reconcile.SyncState)
}
