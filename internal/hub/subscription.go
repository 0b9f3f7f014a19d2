package hub

import (
	"context"
	"sync/atomic"
)

// Handler receives the payload of one event, decoded as UTF-8.
type Handler func(data string)

// Subscription is a handle to one registered listener.
type Subscription struct {
	hub     *Hub
	id      string
	name    string
	handler Handler
	local   bool
	ref     *listenerRef
	active  atomic.Bool

	// settled is closed once Subscribe added or abandoned the subscription;
	// err holds the failure. Both guarded by hub.mu.
	settled chan struct{}
	err     error
}

// ID returns the subscription id.
func (s *Subscription) ID() string { return s.id }

// Name returns the event name.
func (s *Subscription) Name() string { return s.name }

// Local reports whether the subscription is in-process only.
func (s *Subscription) Local() bool { return s.local }

// Active reports whether the subscription still receives events.
func (s *Subscription) Active() bool { return s.active.Load() }

// Unsubscribe removes the subscription. See Hub.Unsubscribe.
func (s *Subscription) Unsubscribe(ctx context.Context) error {
	return s.hub.Unsubscribe(ctx, s.name, s.id)
}
