package hub

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/globulario/services-sub005/pkg/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// interest is the server-side registration state of one event name.
type interest int

const (
	interestNone interest = iota
	interestRegistering
	interestRegistered
	interestRevoking
)

// bucket holds the listeners of one event name.
type bucket struct {
	subs   map[string]*Subscription
	order  []string // subscription ids in subscribe order
	remote int

	interest interest
	// ready is closed when an in-flight register or revoke completes.
	ready chan struct{}
	// pending counts Subscribe calls blocked on this bucket; the bucket is
	// kept while it is non-zero.
	pending int
}

func (h *Hub) bucketLocked(name string) *bucket {
	b := h.buckets[name]
	if b == nil {
		b = &bucket{subs: make(map[string]*Subscription)}
		h.buckets[name] = b
	}
	return b
}

func (h *Hub) dropBucketIfIdleLocked(name string, b *bucket) {
	if len(b.subs) == 0 && b.pending == 0 && b.interest == interestNone && h.buckets[name] == b {
		delete(h.buckets, name)
	}
}

func (h *Hub) addLocked(b *bucket, s *Subscription) {
	b.subs[s.id] = s
	b.order = append(b.order, s.id)
	if !s.local {
		b.remote++
	}
	s.active.Store(true)
	close(s.settled)
	h.metrics.subscriptions.Inc()
}

func (h *Hub) releaseRefLocked(s *Subscription) {
	if s.ref == nil {
		return
	}
	k := refKey{ref: s.ref.key, name: s.name}
	if h.refs[k] == s {
		delete(h.refs, k)
	}
}

// Subscribe registers handler for name and returns its handle.
//
// With WithRef, a second Subscribe for the same ref and name returns the
// existing handle and does not call OnSubscribed. A remote subscription opens
// the event stream if needed; the first one for a name registers interest
// with the service and is only added once that succeeds. Concurrent remote
// subscribers wait for the in-flight registration instead of issuing another.
// A registration failure is returned and OnSubscribed is not called.
func (h *Hub) Subscribe(ctx context.Context, name string, handler Handler, opts ...SubscribeOption) (*Subscription, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if handler == nil {
		return nil, ErrNilHandler
	}
	o := subscribeOptions{local: true}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ref != nil && o.ref.zeroSize {
		return nil, ErrInvalidRef
	}

	h.mu.Lock()
	for {
		if h.closed {
			h.mu.Unlock()
			return nil, ErrClosed
		}
		if o.ref == nil {
			break
		}
		existing := h.refs[refKey{ref: o.ref.key, name: name}]
		if existing == nil {
			break
		}
		if existing.active.Load() {
			h.mu.Unlock()
			return existing, nil
		}
		// the claiming Subscribe is still registering interest; share its
		// outcome
		settled := existing.settled
		h.mu.Unlock()
		select {
		case <-settled:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		h.mu.Lock()
		// a claimant that gave up on its own context leaves the ref free
		// for this call to retry
		if err := existing.err; err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			h.mu.Unlock()
			return nil, err
		}
	}
	if !o.local && h.client == nil {
		h.mu.Unlock()
		return nil, ErrNoTransport
	}
	s := &Subscription{
		hub:     h,
		id:      h.opts.IDs.Next(),
		name:    name,
		handler: handler,
		local:   o.local,
		ref:     o.ref,
		settled: make(chan struct{}),
	}
	if o.ref != nil {
		h.refs[refKey{ref: o.ref.key, name: name}] = s
	}

	if o.local {
		h.addLocked(h.bucketLocked(name), s)
		h.mu.Unlock()
		h.logger.Debug("subscribed", log.Str("name", name), log.Str("subscription_id", s.id), log.Bool("local", true))
		if o.onSubscribed != nil {
			o.onSubscribed(s.id)
		}
		return s, nil
	}

	if err := h.subscribeRemoteLocked(ctx, s); err != nil {
		return nil, err
	}
	h.logger.Debug("subscribed", log.Str("name", name), log.Str("subscription_id", s.id), log.Bool("local", false))
	if o.onSubscribed != nil {
		o.onSubscribed(s.id)
	}
	return s, nil
}

// subscribeRemoteLocked is called with h.mu held and returns with it
// released.
func (h *Hub) subscribeRemoteLocked(ctx context.Context, s *Subscription) error {
	b := h.bucketLocked(s.name)
	b.pending++
	for {
		switch b.interest {
		case interestRegistered:
			b.pending--
			h.addLocked(b, s)
			h.mu.Unlock()
			return nil

		case interestRegistering, interestRevoking:
			ready := b.ready
			h.mu.Unlock()
			select {
			case <-ready:
			case <-ctx.Done():
				h.mu.Lock()
				h.abandonLocked(b, s, ctx.Err())
				h.mu.Unlock()
				return ctx.Err()
			}
			h.mu.Lock()
			if h.closed {
				h.abandonLocked(b, s, ErrClosed)
				h.mu.Unlock()
				return ErrClosed
			}

		case interestNone:
			b.interest = interestRegistering
			b.ready = make(chan struct{})
			h.mu.Unlock()

			err := h.ch.ensureOpen(ctx)
			if err == nil {
				err = h.register(ctx, s.name)
			}

			h.mu.Lock()
			close(b.ready)
			if err != nil {
				err = fmt.Errorf("hub: register interest in %q: %w", s.name, err)
				b.interest = interestNone
				h.abandonLocked(b, s, err)
				h.mu.Unlock()
				h.metrics.rpcErrors.WithLabelValues("subscribe").Inc()
				h.logger.Warn("register interest failed", log.Str("name", s.name), log.Err(err))
				return err
			}
			b.interest = interestRegistered
		}
	}
}

// abandonLocked undoes the bookkeeping of a Subscribe that did not complete
// and hands err to callers waiting on the same ref.
func (h *Hub) abandonLocked(b *bucket, s *Subscription, err error) {
	b.pending--
	s.err = err
	close(s.settled)
	h.releaseRefLocked(s)
	h.dropBucketIfIdleLocked(s.name, b)
}

// register issues register-interest, retrying with exponential backoff up to
// Options.RegisterAttempts times. Invalid-argument rejections are not retried.
func (h *Hub) register(ctx context.Context, name string) error {
	op := func() (struct{}, error) {
		err := h.client.Subscribe(ctx, name, h.clientID)
		if status.Code(err) == codes.InvalidArgument {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = h.opts.RegisterBackoff
	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(h.opts.RegisterAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			h.logger.Debug("register interest retry", log.Str("name", name), log.Duration("next", next), log.Err(err))
		}),
	)
	return err
}

// Unsubscribe removes subscription id from name. Unknown names or ids are a
// no-op. Removing the last subscription of a name whose interest is
// registered revokes it; a revoke failure is logged and returned, but the
// local removal stands.
func (h *Hub) Unsubscribe(ctx context.Context, name, id string) error {
	h.mu.Lock()
	b := h.buckets[name]
	if b == nil {
		h.mu.Unlock()
		return nil
	}
	s := b.subs[id]
	if s == nil {
		h.mu.Unlock()
		return nil
	}
	delete(b.subs, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	if !s.local {
		b.remote--
	}
	s.active.Store(false)
	h.releaseRefLocked(s)
	h.metrics.subscriptions.Dec()

	revoke := len(b.subs) == 0 && b.interest == interestRegistered && !h.closed
	if revoke {
		b.interest = interestRevoking
		b.ready = make(chan struct{})
	} else if len(b.subs) == 0 && b.interest == interestRegistered {
		b.interest = interestNone
	}
	h.dropBucketIfIdleLocked(name, b)
	h.mu.Unlock()
	h.logger.Debug("unsubscribed", log.Str("name", name), log.Str("subscription_id", id))

	if !revoke {
		return nil
	}
	err := h.client.UnSubscribe(ctx, name, h.clientID)

	h.mu.Lock()
	b.interest = interestNone
	close(b.ready)
	h.dropBucketIfIdleLocked(name, b)
	h.mu.Unlock()

	if err != nil {
		h.metrics.rpcErrors.WithLabelValues("unsubscribe").Inc()
		h.logger.Warn("revoke interest failed", log.Str("name", name), log.Err(err))
		return fmt.Errorf("hub: revoke interest in %q: %w", name, err)
	}
	return nil
}

// resubscribeAll re-registers interest, one name at a time, for every name
// with at least one remote subscription. It stops at the first failure.
func (h *Hub) resubscribeAll(ctx context.Context) error {
	h.mu.Lock()
	var names []string
	for n, b := range h.buckets {
		if b.remote > 0 && b.interest == interestRegistered {
			names = append(names, n)
		}
	}
	h.mu.Unlock()
	sort.Strings(names)

	for i, n := range names {
		if err := h.client.Subscribe(ctx, n, h.clientID); err != nil {
			h.metrics.rpcErrors.WithLabelValues("resubscribe").Inc()
			return fmt.Errorf("hub: resubscribe %q (%d of %d): %w", n, i+1, len(names), err)
		}
	}
	if len(names) > 0 {
		h.logger.Info("resubscribed", log.Int("names", len(names)))
	}
	return nil
}
