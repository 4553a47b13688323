// Package notify delivers budget alerts. Delivery is best effort: callers
// log failures and flag them for review, they never retry.
package notify
