package tracing

import "go.opentelemetry.io/otel/attribute"

// Attribute keys use the "sentinel.*" namespace.
const (
	AttrStoreOp     = "sentinel.store.op"
	AttrStoreResult = "sentinel.store.result"
	AttrEnvironment = "sentinel.environment"
	AttrService     = "sentinel.service"
	AttrEndpoint    = "sentinel.endpoint"
	AttrMonth       = "sentinel.month"
	AttrAlertLevel  = "sentinel.alert.level"
	AttrRetryCount  = "sentinel.retry_count"
)

// StoreAttributes returns the attributes of a store operation span.
// Keys are not recorded: they carry tenant identifiers.
func StoreAttributes(op, environment string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrStoreOp, op),
		attribute.String(AttrEnvironment, environment),
	}
}

// ServiceAttributes returns the attributes identifying a metered service.
func ServiceAttributes(service, month string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(AttrService, service)}
	if month != "" {
		attrs = append(attrs, attribute.String(AttrMonth, month))
	}
	return attrs
}
