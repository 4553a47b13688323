package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// BudgetMetrics tracks budget checks and alerts.
//
// Metrics:
//   - sentinel_budget_checks_total: Checks by service and action
//   - sentinel_budget_usage_ratio: Latest spend ratio by service
//   - sentinel_budget_alerts_total: Alerts raised by service and level
//   - sentinel_budget_review_required_total: Checks flagged for manual review
type BudgetMetrics struct {
	checks         *prometheus.CounterVec
	ratio          *prometheus.GaugeVec
	alerts         *prometheus.CounterVec
	reviewRequired *prometheus.CounterVec
}

// NewBudgetMetrics creates and registers budget metrics with the provided registry.
func NewBudgetMetrics(namespace string, registry *prometheus.Registry) *BudgetMetrics {
	bm := &BudgetMetrics{
		checks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "budget",
				Name:      "checks_total",
				Help:      "Budget checks by service and action",
			},
			[]string{"service", "action"},
		),

		ratio: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "budget",
				Name:      "usage_ratio",
				Help:      "Latest monthly spend as a ratio of the budget (0.0-1.0+)",
			},
			[]string{"service"},
		),

		alerts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "budget",
				Name:      "alerts_total",
				Help:      "Budget threshold alerts by service and level",
			},
			[]string{"service", "level"},
		),

		reviewRequired: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "budget",
				Name:      "review_required_total",
				Help:      "Budget checks whose alert state or delivery failed and need manual review",
			},
			[]string{"service"},
		),
	}

	registry.MustRegister(bm.checks, bm.ratio, bm.alerts, bm.reviewRequired)
	return bm
}

// RecordCheck records one budget check. Skipped checks leave the ratio
// untouched.
func (bm *BudgetMetrics) RecordCheck(service string, ratio float64, action string) {
	bm.checks.WithLabelValues(service, action).Inc()
	if action != "skipped" {
		bm.ratio.WithLabelValues(service).Set(ratio)
	}
}

// RecordAlert records a raised alert.
func (bm *BudgetMetrics) RecordAlert(service, level string) {
	bm.alerts.WithLabelValues(service, level).Inc()
}

// RecordReview records a check flagged for review.
func (bm *BudgetMetrics) RecordReview(service string) {
	bm.reviewRequired.WithLabelValues(service).Inc()
}
