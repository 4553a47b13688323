package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CostMetrics tracks estimated spend.
//
// Metrics:
//   - sentinel_cost_estimated: Latest monthly spend estimate by service
//   - sentinel_cost_unpriced_estimates_total: Estimates of services without pricing
type CostMetrics struct {
	estimated *prometheus.GaugeVec
	unpriced  *prometheus.CounterVec
}

// NewCostMetrics creates and registers cost metrics with the provided registry.
func NewCostMetrics(namespace string, registry *prometheus.Registry) *CostMetrics {
	cm := &CostMetrics{
		estimated: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "cost",
				Name:      "estimated",
				Help:      "Latest estimated spend of the current month by service",
			},
			[]string{"service"},
		),

		unpriced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cost",
				Name:      "unpriced_estimates_total",
				Help:      "Cost estimates of services without a pricing table",
			},
			[]string{"service"},
		),
	}

	registry.MustRegister(cm.estimated, cm.unpriced)
	return cm
}

// Update records the latest estimate of service.
func (cm *CostMetrics) Update(service string, amount float64, priced bool) {
	cm.estimated.WithLabelValues(service).Set(amount)
	if !priced {
		cm.unpriced.WithLabelValues(service).Inc()
	}
}
