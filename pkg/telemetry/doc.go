// Package telemetry groups the observability of Sentinel.
//
// # Components
//
//   - logging: Structured slog logging with credential redaction and
//     request, service and trace correlation
//   - metrics: Prometheus metrics for the store, usage, cost, budget and
//     health components
//   - tracing: OpenTelemetry spans exported over OTLP gRPC
//
// # Usage
//
//	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging, os.Stderr))
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	defer tracer.Shutdown(context.Background())
//
// Domain packages never import metrics; each declares a small Observer
// interface that the metrics Collector implements.
//
// # Credential Protection
//
// Store tokens and passwords never reach the log output. Attributes named
// token, password, secret or api_key (and any configured redact key) are
// masked, and store URLs are logged with their password removed.
package telemetry
