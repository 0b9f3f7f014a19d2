package hub

import (
	"time"
	"unsafe"
	"weak"

	"github.com/benbjohnson/clock"
	"github.com/globulario/services-sub005/pkg/id"
	"github.com/globulario/services-sub005/pkg/log"
	"github.com/prometheus/client_golang/prometheus"
)

// Options configures a Hub. Zero values select defaults.
type Options struct {
	// HeartbeatTimeout is the longest silence tolerated on the stream.
	// Defaults to 25s.
	HeartbeatTimeout time.Duration
	// SweepInterval is the period of the listener-ref sweep. Defaults to 5s.
	SweepInterval time.Duration
	// RegisterAttempts bounds register-interest attempts per Subscribe.
	// Defaults to 1 (no retry).
	RegisterAttempts int
	// RegisterBackoff is the first retry delay; later ones grow
	// exponentially. Defaults to 2s.
	RegisterBackoff time.Duration
	// RPCTimeout bounds RPCs the hub issues on its own: revokes from the
	// sweep, resubscription after reconnect. Defaults to 10s.
	RPCTimeout time.Duration
	// OnReconnect, if set, is called after every watchdog-driven reconnect
	// with nil on success or the error that interrupted it.
	OnReconnect func(err error)

	Clock      clock.Clock
	Logger     log.Logger
	Registerer prometheus.Registerer
	IDs        id.Generator
}

func (o *Options) setDefaults() {
	if o.HeartbeatTimeout <= 0 {
		o.HeartbeatTimeout = 25 * time.Second
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = 5 * time.Second
	}
	if o.RegisterAttempts < 1 {
		o.RegisterAttempts = 1
	}
	if o.RegisterBackoff <= 0 {
		o.RegisterBackoff = 2 * time.Second
	}
	if o.RPCTimeout <= 0 {
		o.RPCTimeout = 10 * time.Second
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.Logger == nil {
		o.Logger = log.NewNopLogger()
	}
	if o.IDs == nil {
		o.IDs = id.NewGenerator()
	}
}

// SubscribeOption tunes one Subscribe call.
type SubscribeOption func(*subscribeOptions)

type subscribeOptions struct {
	local        bool
	ref          *listenerRef
	onSubscribed func(id string)
}

// Local keeps the subscription in-process. This is the default.
func Local() SubscribeOption {
	return func(o *subscribeOptions) { o.local = true }
}

// Remote backs the subscription by the event service.
func Remote() SubscribeOption {
	return func(o *subscribeOptions) { o.local = false }
}

// OnSubscribed is called once with the subscription id after a successful,
// non-deduplicated Subscribe.
func OnSubscribed(fn func(id string)) SubscribeOption {
	return func(o *subscribeOptions) { o.onSubscribed = fn }
}

// WithRef ties the subscription to ref. At most one subscription exists per
// (ref, name); the hub holds ref weakly and removes the subscription once ref
// has been garbage collected.
func WithRef[T any](ref *T) SubscribeOption {
	return func(o *subscribeOptions) {
		if ref == nil {
			o.ref = nil
			return
		}
		wp := weak.Make(ref)
		o.ref = &listenerRef{
			key:      wp,
			alive:    func() bool { return wp.Value() != nil },
			zeroSize: unsafe.Sizeof(*ref) == 0,
		}
	}
}

// listenerRef identifies a caller object without keeping it alive. key is a
// weak.Pointer, which compares equal for equal original pointers.
type listenerRef struct {
	key      any
	alive    func() bool
	zeroSize bool
}

type refKey struct {
	ref  any
	name string
}
