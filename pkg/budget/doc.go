// Package budget evaluates monthly spend against per-service budgets and
// sends threshold alerts at most once per level and month.
//
// # State Machine
//
//	normal ──(ratio ≥ 0.70)──▶ warned ──(ratio ≥ 0.90)──▶ critical
//
// The level is stored at alert-state:{service}:{YYYY-MM} and only ever
// raised. A new month starts from normal because the key changes. A spend
// that jumps straight past both thresholds raises the level to critical in
// one step and sends a single critical alert.
//
// # Failure Handling
//
// When the cost estimate is unavailable the check is skipped. When the
// alert state cannot be written no alert is sent: a missed alert is
// preferred over an alert storm, and the result is flagged for review
// (budget_review_required_total).
package budget
