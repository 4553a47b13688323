package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics tracks key-value store operations.
//
// Metrics:
//   - sentinel_store_operations_total: Operations by op and result
//     (ok, not_found, unavailable, skipped)
//   - sentinel_store_operation_duration_seconds: Operation latency including retries
type StoreMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewStoreMetrics creates and registers store metrics with the provided registry.
func NewStoreMetrics(namespace string, registry *prometheus.Registry) *StoreMetrics {
	sm := &StoreMetrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "operations_total",
				Help:      "Key-value store operations by operation and result",
			},
			[]string{"op", "result"},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "operation_duration_seconds",
				Help:      "Key-value store operation latency in seconds",
				// Operations are bounded by a 1s timeout and one retry
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
			},
			[]string{"op"},
		),
	}

	registry.MustRegister(sm.operations, sm.duration)
	return sm
}

// Record records one operation.
func (sm *StoreMetrics) Record(op, result string, duration time.Duration) {
	sm.operations.WithLabelValues(op, result).Inc()
	if result != "skipped" {
		sm.duration.WithLabelValues(op).Observe(duration.Seconds())
	}
}
