// Package usage records API calls per metered service in the shared
// key-value store and reads them back.
//
// Every call increments two counters:
//
//	usage:{service}:{endpoint}:{YYYY-MM-DD}   90 day TTL, authoritative
//	usage:monthly:{service}:{YYYY-MM}         365 day TTL, read by cost estimation
//
// Dates are UTC. Recording never retries and never fails the caller because
// the store is missing; Transport records outbound HTTP calls off the
// request path.
package usage
