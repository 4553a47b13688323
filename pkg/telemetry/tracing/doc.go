// Package tracing provides OpenTelemetry tracing for Sentinel.
//
// When telemetry.tracing.enabled is set, New installs an OTLP gRPC exporter
// as the global tracer provider. Store operations, usage recording, budget
// checks and status requests start spans through StartSpan, which always
// resolves the global provider, so spans are dropped cheaply when tracing
// is disabled.
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    endpoint: "otel-collector:4317"
//	    insecure: true
//	    sampler: ratio
//	    sample_ratio: 0.1
package tracing
