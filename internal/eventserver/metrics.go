package eventserver

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	published prometheus.Counter
	sent      *prometheus.CounterVec
	dropped   *prometheus.CounterVec
	streams   prometheus.Gauge
}

func newCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "globular",
		Subsystem: "eventserver",
		Name:      name,
		Help:      help,
	}, labels)
}

// NewMetrics creates collectors and registers them with reg. A nil reg leaves
// them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "globular",
			Subsystem: "eventserver",
			Name:      "published_total",
			Help:      "Events accepted by Publish.",
		}),
		sent:      newCounterVec("frames_sent_total", "Frames written to attached clients.", []string{"kind"}),
		dropped:   newCounterVec("frames_dropped_total", "Event frames not delivered.", []string{"reason"}),
		streams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "globular",
			Subsystem: "eventserver",
			Name:      "attached_clients",
			Help:      "Clients with a live attachment.",
		}),
	}
	if reg == nil {
		return m
	}
	m.published = register(reg, m.published)
	m.sent = register(reg, m.sent)
	m.dropped = register(reg, m.dropped)
	m.streams = register(reg, m.streams)
	return m
}

// register returns the already registered collector when an identical one
// exists, so several services can share one registry.
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
