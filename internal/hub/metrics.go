package hub

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	reconnects    prometheus.Counter
	frames        *prometheus.CounterVec
	dispatched    prometheus.Counter
	panics        prometheus.Counter
	rpcErrors     *prometheus.CounterVec
	subscriptions prometheus.Gauge
	state         prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: "globular", Subsystem: "eventhub", Name: name, Help: help}
	}
	m := &metrics{
		reconnects:    prometheus.NewCounter(prometheus.CounterOpts(opts("reconnects_total", "Watchdog-driven stream reconnects."))),
		frames:        prometheus.NewCounterVec(prometheus.CounterOpts(opts("frames_total", "Frames received on the event stream.")), []string{"kind"}),
		dispatched:    prometheus.NewCounter(prometheus.CounterOpts(opts("dispatched_total", "Listener invocations."))),
		panics:        prometheus.NewCounter(prometheus.CounterOpts(opts("listener_panics_total", "Listener invocations that panicked."))),
		rpcErrors:     prometheus.NewCounterVec(prometheus.CounterOpts(opts("rpc_errors_total", "Failed event-service calls.")), []string{"op"}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts(opts("subscriptions", "Active subscriptions."))),
		state:         prometheus.NewGauge(prometheus.GaugeOpts(opts("channel_state", "Event channel state (0 disconnected, 1 connecting, 2 awaiting heartbeat, 3 connected)."))),
	}
	if reg == nil {
		return m
	}
	m.reconnects = register(reg, m.reconnects)
	m.frames = register(reg, m.frames)
	m.dispatched = register(reg, m.dispatched)
	m.panics = register(reg, m.panics)
	m.rpcErrors = register(reg, m.rpcErrors)
	m.subscriptions = register(reg, m.subscriptions)
	m.state = register(reg, m.state)
	return m
}

// register returns the already registered collector when an identical one
// exists, so several hubs can share one registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}
