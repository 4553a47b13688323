// Package status serves the read-only operator surface of Sentinel.
//
// # Routes
//
//	GET  /health                  liveness
//	GET  /ready                   readiness (503 when a required check fails)
//	GET  /version                 build information
//	GET  /metrics                 Prometheus exposition
//	GET  /status/environment      resolved environment, never credentials
//	GET  /status/usage            usage snapshot (?day=YYYY-MM-DD&month=YYYY-MM)
//	GET  /status/costs            cost report (?month=YYYY-MM)
//	GET  /status/budgets          budget level and ratio per service
//	GET  /status/health           uptime per monitored service (?window=hours)
//	POST /v1/health-reports       health runner ingestion (API key)
//	GET  /v1/validate-critical    deployment gate (?services=a,b)
//
// # Degraded store
//
// Analytics routes answer 200 with "available": false when the store is
// unreachable or not configured. Only validate-critical answers 503, since
// a deployment gate must fail closed. Health reports answer 503 on store
// errors so the runner retries.
//
// # Authentication
//
// Health reports feed the deployment gate, so ingestion requires one of
// status.ingest_tokens as "Authorization: Bearer <token>" or
// "X-API-Key: <token>". Without configured tokens the route answers 403.
//
// # Middleware
//
// Requests pass through panic recovery, request ID propagation
// (X-Request-ID), completion logging and W3C trace context extraction.
package status
