package serverrun

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// storageMetrics reports configuration-store latency to Prometheus.
type storageMetrics struct {
	reads   prometheus.Histogram
	commits *prometheus.HistogramVec
}

func newStorageMetrics(reg prometheus.Registerer) *storageMetrics {
	m := &storageMetrics{
		reads: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "globular",
			Subsystem: "store",
			Name:      "read_seconds",
			Help:      "Configuration store read latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		commits: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "globular",
			Subsystem: "store",
			Name:      "commit_seconds",
			Help:      "Configuration store commit latency by batch size.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"size"}),
	}
	reg.MustRegister(m.reads, m.commits)
	return m
}

func (m *storageMetrics) ObserveRead(elapsed time.Duration, _ int) {
	m.reads.Observe(elapsed.Seconds())
}

func (m *storageMetrics) ObserveCommit(elapsed time.Duration, ops int, _ int) {
	size := "single"
	if ops > 1 {
		size = "batch"
	}
	m.commits.WithLabelValues(size).Observe(elapsed.Seconds())
}
