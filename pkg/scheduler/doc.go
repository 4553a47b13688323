// Package scheduler runs budget checks and critical service validation on
// cron schedules inside the status server process.
//
// Deployments with an external scheduler leave it disabled and invoke the
// one-shot commands (sentinel budget check, sentinel validate-critical)
// instead.
package scheduler
