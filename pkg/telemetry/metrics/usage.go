package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// UsageMetrics tracks usage recording.
//
// Metrics:
//   - sentinel_usage_records_total: RecordUsage calls by service and result
//     (recorded, monthly_failed, failed, skipped, rejected)
type UsageMetrics struct {
	records *prometheus.CounterVec
}

// NewUsageMetrics creates and registers usage metrics with the provided registry.
func NewUsageMetrics(namespace string, registry *prometheus.Registry) *UsageMetrics {
	um := &UsageMetrics{
		records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "usage",
				Name:      "records_total",
				Help:      "Usage recordings by service and result",
			},
			[]string{"service", "result"},
		),
	}

	registry.MustRegister(um.records)
	return um
}

// Record records one RecordUsage outcome.
func (um *UsageMetrics) Record(service, result string) {
	um.records.WithLabelValues(service, result).Inc()
}
