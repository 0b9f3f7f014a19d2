package hub

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/globulario/services-sub005/internal/eventrpc"
	"github.com/globulario/services-sub005/pkg/log"
)

// Hub is a local/remote event bus bound to one event-service client id.
type Hub struct {
	opts     Options
	client   eventrpc.Client
	clientID string
	clock    clock.Clock
	logger   log.Logger
	metrics  *metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	buckets map[string]*bucket
	refs    map[refKey]*Subscription
	closed  bool

	ch    *channel
	sweep *clock.Ticker
	stop  chan struct{}
	wg    sync.WaitGroup
	// callbacks counts listener and hook calls running on goroutines wg
	// tracks.
	callbacks atomic.Int32
}

// New returns a Hub using client for remote operations. A nil client yields a
// local-only hub whose remote operations fail with ErrNoTransport.
func New(client eventrpc.Client, opts Options) *Hub {
	opts.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		opts:     opts,
		client:   client,
		clientID: opts.IDs.Next(),
		clock:    opts.Clock,
		metrics:  newMetrics(opts.Registerer),
		ctx:      ctx,
		cancel:   cancel,
		buckets:  make(map[string]*bucket),
		refs:     make(map[refKey]*Subscription),
		stop:     make(chan struct{}),
	}
	h.logger = opts.Logger.WithComponent("eventhub").With(log.Str("client_id", h.clientID))
	h.ch = newChannel(h)
	h.sweep = h.clock.Ticker(opts.SweepInterval)
	h.wg.Add(1)
	go h.sweepLoop()
	return h
}

// ClientID returns the id under which the hub registers with the service.
func (h *Hub) ClientID() string { return h.clientID }

// State returns the event channel state.
func (h *Hub) State() ChannelState { return h.ch.State() }

// Len returns the number of subscriptions for name.
func (h *Hub) Len(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if b := h.buckets[name]; b != nil {
		return len(b.subs)
	}
	return 0
}

// Names returns every event name with at least one subscription, sorted.
func (h *Hub) Names() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.buckets))
	for n, b := range h.buckets {
		if len(b.subs) > 0 {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// Publish delivers data to listeners of name. A local publish dispatches
// synchronously before returning. A remote publish sends data to the event
// service; its error is logged and returned, and callers may ignore it.
func (h *Hub) Publish(ctx context.Context, name, data string, local bool) error {
	if name == "" {
		return ErrEmptyName
	}
	if local {
		h.Dispatch(name, data)
		return nil
	}
	if h.client == nil {
		return ErrNoTransport
	}
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if err := h.client.Publish(ctx, name, []byte(data)); err != nil {
		h.metrics.rpcErrors.WithLabelValues("publish").Inc()
		h.logger.Warn("publish failed", log.Str("name", name), log.Err(err))
		return fmt.Errorf("hub: publish %q: %w", name, err)
	}
	return nil
}

// Dispatch synchronously invokes every active listener of name in
// subscription order. A panicking listener is logged and skipped.
func (h *Hub) Dispatch(name, data string) {
	h.mu.Lock()
	b := h.buckets[name]
	if b == nil {
		h.mu.Unlock()
		return
	}
	subs := make([]*Subscription, 0, len(b.order))
	for _, id := range b.order {
		subs = append(subs, b.subs[id])
	}
	h.mu.Unlock()

	for _, s := range subs {
		if !s.active.Load() {
			continue
		}
		h.invoke(s, data)
	}
}

func (h *Hub) invoke(s *Subscription, data string) {
	defer func() {
		if r := recover(); r != nil {
			h.metrics.panics.Inc()
			h.logger.Error("listener panicked",
				log.Str("name", s.name),
				log.Str("subscription_id", s.id),
				log.F("panic", r))
		}
	}()
	h.metrics.dispatched.Inc()
	s.handler(data)
}

// Close stops the sweep and the heartbeat watchdog, cancels the stream and
// asks the service to drop this client. The Quit error is logged and
// returned; the hub is closed regardless.
//
// Close normally waits for the hub's goroutines to exit. Called from a
// listener of a stream event or from Options.OnReconnect, it returns without
// waiting, and the calling goroutine exits once the callback returns.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	close(h.stop)
	h.sweep.Stop()
	opened := h.ch.close()
	h.cancel()
	if h.callbacks.Load() == 0 {
		h.wg.Wait()
	}

	if h.client == nil || !opened {
		return nil
	}
	if err := h.client.Quit(ctx, h.clientID); err != nil {
		h.metrics.rpcErrors.WithLabelValues("quit").Inc()
		h.logger.Warn("quit failed", log.Err(err))
		return fmt.Errorf("hub: quit: %w", err)
	}
	h.logger.Debug("hub closed")
	return nil
}

func (h *Hub) rpcContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(h.ctx, h.opts.RPCTimeout)
}

// decodePayload renders event bytes as text, replacing invalid UTF-8.
func decodePayload(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return strings.ToValidUTF8(string(b), "\uFFFD")
}

func (h *Hub) notifyReconnect(err error) {
	if h.opts.OnReconnect != nil {
		h.callbacks.Add(1)
		defer h.callbacks.Add(-1)
		h.opts.OnReconnect(err)
	}
}
