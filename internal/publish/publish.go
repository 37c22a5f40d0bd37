// Package publish forwards committed state changes to message brokers.
//
// Two sinks are provided: [MQTT] publishes each change to a topic on an MQTT
// broker and [Kafka] writes it to a Kafka topic keyed by the engine's source
// name. Both encode the same [event.ChangeEvent] JSON document.
package publish

import (
	"context"
	"errors"

	"github.com/jpalmerr/sensorsync/internal/event"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("publisher closed")

// Publisher delivers change events to an external system.
//
// Publish is called from the engine's single result-processing goroutine and
// should respect ctx for its deadline.
type Publisher interface {
	// Name identifies the sink in logs and metrics.
	Name() string

	// Publish delivers one event.
	Publish(ctx context.Context, e event.ChangeEvent) error

	// Close releases the connection to the broker.
	Close() error
}
