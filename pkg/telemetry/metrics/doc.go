// Package metrics provides Prometheus metrics collection for Sentinel.
//
// # Overview
//
// A single Collector owns every metric and implements the small observer
// interfaces declared by the domain packages (kvstore, usage, costs, budget
// and health). Components receive the collector as their Observer and never
// import this package, so they stay usable without Prometheus.
//
// # Metrics Categories
//
//   - Store Metrics: Operation count by result and operation latency
//   - Usage Metrics: Recording outcomes by service
//   - Cost Metrics: Latest monthly estimate and unpriced estimates
//   - Budget Metrics: Checks, spend ratio, alerts and manual review flags
//   - Health Metrics: Records by status, uptime and critical validations
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	client, err := kvstore.Connect(env, cfg.Store, kvstore.Options{Observer: collector})
//	recorder := usage.NewRecorder(client, cfg.Usage, usage.Options{Observer: collector})
//	http.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// # Prometheus Endpoint
//
//	# HELP sentinel_budget_alerts_total Budget threshold alerts by service and level
//	# TYPE sentinel_budget_alerts_total counter
//	sentinel_budget_alerts_total{level="warning",service="maps"} 1
//
// # Cardinality Management
//
// Service names come from callers. The collector keeps at most 1000
// distinct service label values; later services are aggregated into
// "other".
package metrics
