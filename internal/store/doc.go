// Package store holds the engine's single current sensor state and fans
// out every committed change to subscribers.
//
// This package is internal to sensorsync. It implements the single-writer
// snapshot store that the reconciler commits to:
//
//   - [Store]: Interface combining the reconciler's write side with read and subscribe access
//   - [SnapshotStore]: Lock-free snapshot reads over an atomic pointer, with pub/sub
//
// Readers always observe a complete [reconcile.SyncState], either the one
// before a commit or the one after it. Subscribers receive updates via
// channels with non-blocking sends (slow subscribers miss updates rather
// than block the reconciler).
package store
