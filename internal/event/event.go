// Package event defines the document emitted for every committed state change.
package event

import (
	"encoding/json"
	"time"

	"github.com/jpalmerr/sensorsync/internal/reconcile"
	"github.com/jpalmerr/sensorsync/reading"
)

// ChangeEvent describes one commit to the engine's state.
type ChangeEvent struct {
	TickID      string             `json:"tick_id"`
	Decision    reconcile.Decision `json:"decision"`
	From        reconcile.Mode     `json:"from"`
	To          reconcile.Mode     `json:"to"`
	Reading     reading.Reading    `json:"reading"`
	Version     uint64             `json:"version"`
	CommittedAt time.Time          `json:"committed_at"`
}

// FromOutcome builds the event for a committed outcome of the tick tickID.
func FromOutcome(tickID string, out reconcile.Outcome) ChangeEvent {
	return ChangeEvent{
		TickID:      tickID,
		Decision:    out.Decision,
		From:        out.From,
		To:          out.To,
		Reading:     out.State.Current,
		Version:     out.State.Version,
		CommittedAt: out.State.CommittedAt.UTC(),
	}
}

// Encode returns the JSON wire form of e.
func (e ChangeEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses a JSON document produced by [ChangeEvent.Encode].
func Decode(data []byte) (ChangeEvent, error) {
	var e ChangeEvent
	err := json.Unmarshal(data, &e)
	return e, err
}
