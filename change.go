package sensorsync

import (
	"time"

	"github.com/jpalmerr/sensorsync/internal/event"
	"github.com/jpalmerr/sensorsync/internal/publish"
	"github.com/jpalmerr/sensorsync/internal/reconcile"
	"github.com/jpalmerr/sensorsync/reading"
)

// Mode is whether the engine displays a live reading or the fallback.
type Mode = reconcile.Mode

const (
	// ModeLive means the current reading came from the sensor endpoint.
	ModeLive = reconcile.ModeLive

	// ModeFallback means the fallback sentinel is displayed.
	ModeFallback = reconcile.ModeFallback
)

// Decision is what one tick did to the engine's state.
type Decision = reconcile.Decision

const (
	// DecisionHeld means the tick left the state untouched.
	DecisionHeld = reconcile.DecisionHeld

	// DecisionCommitted means the tick's reading replaced the current one.
	DecisionCommitted = reconcile.DecisionCommitted

	// DecisionStaleReverted means a live feed that stopped changing was
	// replaced with the fallback reading.
	DecisionStaleReverted = reconcile.DecisionStaleReverted
)

// State is an immutable snapshot of the engine: the current reading, the
// staleness clock, a commit counter and the time of the last commit.
type State = reconcile.SyncState

// ChangeEvent is the document journaled and published for every commit.
type ChangeEvent = event.ChangeEvent

// Publisher delivers change events to an external system. See [WithPublisher].
type Publisher = publish.Publisher

// MQTTConfig configures the MQTT publisher enabled by [WithMQTT].
type MQTTConfig = publish.MQTTConfig

// KafkaConfig configures the Kafka publisher enabled by [WithKafka].
type KafkaConfig = publish.KafkaConfig

// Change describes one commit, as delivered to reading callbacks.
//
// Change is a value type; callbacks may retain it.
type Change struct {
	// TickID correlates the change with log lines and published events.
	TickID string

	// Decision is [DecisionCommitted] or [DecisionStaleReverted] for
	// callbacks. [Engine.Tick] may also report [DecisionHeld].
	Decision Decision

	// From and To are the display modes before and after the commit.
	From, To Mode

	// Reading is the reading now displayed.
	Reading reading.Reading

	// Candidate is what the endpoint returned this tick. It differs from
	// Reading on a stale revert.
	Candidate reading.Reading

	// Version is the commit counter after this change.
	Version uint64

	// CommittedAt is the tick time of the commit.
	CommittedAt time.Time

	// Latency is the time taken by the fetch.
	Latency time.Duration

	// Err is the fetch or payload failure that caused a revert to the
	// fallback, if any.
	Err error
}

// Transition reports whether the change switched between live and fallback.
func (c Change) Transition() bool {
	return c.From != c.To
}
