// Package health tracks the health of monitored services and of the
// sentinel process itself.
//
// # Monitored Services
//
// An external runner probes each dependency and reports the result through
// Tracker.RecordHealth. Records are kept per service in a capped,
// time-ordered collection (health:{service}) trimmed to the retention
// (7 days by default) on every write; there is no separate sweep job.
//
//	tracker.RecordHealth(ctx, "payments", health.StatusOK, 120)
//	summary, _ := tracker.GetUptime(ctx, "payments", 24)
//	fmt.Printf("%.1f%%\n", summary.UptimePercent)
//
// # Deployment Gating
//
// ValidateCritical fails closed. Every other component of sentinel treats
// an unavailable store as absent analytics; here it fails every listed
// service, because a silent pass would defeat the gate.
//
// # Process Probes
//
// Checker serves /health, /ready and /version for this process. The store
// is an optional readiness check: its failure degrades readiness without
// making the process unready.
package health
