package hub

import "errors"

var (
	// ErrNoTransport is returned by remote operations on a hub built without
	// an event-service client.
	ErrNoTransport = errors.New("hub: no event service transport")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("hub: closed")
	// ErrEmptyName is returned for an empty event name.
	ErrEmptyName = errors.New("hub: empty event name")
	// ErrNilHandler is returned when Subscribe is given no handler.
	ErrNilHandler = errors.New("hub: nil handler")
	// ErrInvalidRef is returned when WithRef is given a pointer to a
	// zero-size value, which can never be collected.
	ErrInvalidRef = errors.New("hub: listener ref must point to a non-zero-size value")
)
