package reconcile

import "time"

// DefaultStaleThreshold is how long a live feed may keep returning the same
// value before it is treated as disconnected.
const DefaultStaleThreshold = 20 * time.Second

// StalenessMonitor tracks the time of the last accepted live reading.
//
// StalenessMonitor is a value type; [StalenessMonitor.Reset] returns a new
// monitor rather than mutating the receiver, so a [SyncState] snapshot never
// changes underneath a reader.
type StalenessMonitor struct {
	lastLiveUpdateAt time.Time
}

// NewStalenessMonitor returns a monitor whose clock starts at t.
func NewStalenessMonitor(t time.Time) StalenessMonitor {
	return StalenessMonitor{lastLiveUpdateAt: t}
}

// LastLiveUpdateAt returns the time of the last accepted live reading, or
// the engine start time if none has been accepted yet.
func (m StalenessMonitor) LastLiveUpdateAt() time.Time {
	return m.lastLiveUpdateAt
}

// Elapsed returns now minus the last live update.
func (m StalenessMonitor) Elapsed(now time.Time) time.Duration {
	return now.Sub(m.lastLiveUpdateAt)
}

// IsStale reports whether more than threshold has passed since the last
// live update. Exactly threshold is not stale.
func (m StalenessMonitor) IsStale(now time.Time, threshold time.Duration) bool {
	return m.Elapsed(now) > threshold
}

// Reset returns a monitor whose clock restarts at now.
func (m StalenessMonitor) Reset(now time.Time) StalenessMonitor {
	return StalenessMonitor{lastLiveUpdateAt: now}
}
