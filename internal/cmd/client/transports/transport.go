// Package transports provides pluggable event transports for the CLI.
package transports

import "context"

// Event is one received event.
type Event struct {
	Name string
	Data []byte
}

// EventsTransport abstracts the transport used by the CLI (gRPC/HTTP).
type EventsTransport interface {
	Publish(ctx context.Context, name string, data []byte) error
	// Subscribe delivers events for names to onEvent until ctx ends or
	// onEvent returns an error. ErrStop ends the subscription cleanly.
	Subscribe(ctx context.Context, names []string, onEvent func(Event) error) error
}
