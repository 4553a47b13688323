package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// HealthMetrics tracks monitored service health.
//
// Metrics:
//   - sentinel_health_records_total: Health records by service and status
//   - sentinel_health_uptime_percent: Latest computed uptime by service
//   - sentinel_health_critical_validations_total: Validations by outcome
//   - sentinel_health_critical_failures: Failed services of the latest validation
type HealthMetrics struct {
	records     *prometheus.CounterVec
	uptime      *prometheus.GaugeVec
	validations *prometheus.CounterVec
	failures    prometheus.Gauge
}

// NewHealthMetrics creates and registers health metrics with the provided registry.
func NewHealthMetrics(namespace string, registry *prometheus.Registry) *HealthMetrics {
	hm := &HealthMetrics{
		records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "health",
				Name:      "records_total",
				Help:      "Health records by service and status",
			},
			[]string{"service", "status"},
		),

		uptime: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "health",
				Name:      "uptime_percent",
				Help:      "Latest computed uptime percentage by service",
			},
			[]string{"service"},
		),

		validations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "health",
				Name:      "critical_validations_total",
				Help:      "Critical service validations by outcome",
			},
			[]string{"healthy"},
		),

		failures: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "health",
				Name:      "critical_failures",
				Help:      "Failed services in the latest critical validation",
			},
		),
	}

	registry.MustRegister(hm.records, hm.uptime, hm.validations, hm.failures)
	return hm
}

// RecordStatus records one health record.
func (hm *HealthMetrics) RecordStatus(service, status string) {
	hm.records.WithLabelValues(service, status).Inc()
}

// UpdateUptime sets the latest uptime of service.
func (hm *HealthMetrics) UpdateUptime(service string, percent float64) {
	hm.uptime.WithLabelValues(service).Set(percent)
}

// RecordValidation records a critical validation outcome.
func (hm *HealthMetrics) RecordValidation(healthy bool, failures int) {
	hm.validations.WithLabelValues(strconv.FormatBool(healthy)).Inc()
	hm.failures.Set(float64(failures))
}
