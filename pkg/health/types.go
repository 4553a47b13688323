package health

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidStatus is returned for unknown health statuses.
var ErrInvalidStatus = errors.New("invalid health status")

// Status is the observed state of a monitored service.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// ParseStatus parses a status reported by the health runner.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusOK, StatusDegraded, StatusDown:
		return Status(s), nil
	}
	return "", fmt.Errorf("%w: %q (expected ok, degraded or down)", ErrInvalidStatus, s)
}

// severity orders statuses for incident reporting.
func (s Status) severity() int {
	switch s {
	case StatusDown:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}

// Record is one health observation.
type Record struct {
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status"`
	LatencyMs int64     `json:"latency_ms"`
}

// member is the stored form of a record. The timestamp keeps members unique
// so identical observations at different times are all kept.
type member struct {
	At        int64  `json:"t"`
	Status    Status `json:"s"`
	LatencyMs int64  `json:"l"`
}

func encodeMember(r Record) (string, error) {
	b, err := json.Marshal(member{At: r.Timestamp.UnixNano(), Status: r.Status, LatencyMs: r.LatencyMs})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeMember(service string, at time.Time, raw string) (Record, error) {
	var m member
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return Record{}, fmt.Errorf("malformed health record for %s: %w", service, err)
	}
	return Record{Service: service, Timestamp: at.UTC(), Status: m.Status, LatencyMs: m.LatencyMs}, nil
}

// Incident is a contiguous run of non-ok records.
type Incident struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	// Status is the worst status seen during the incident.
	Status Status `json:"status"`

	Records int `json:"records"`
}

// UptimeSummary is derived from the records of a window. It is never
// stored.
type UptimeSummary struct {
	Service     string `json:"service"`
	WindowHours int    `json:"window_hours"`

	Total    int `json:"total"`
	OK       int `json:"ok"`
	Degraded int `json:"degraded"`
	Down     int `json:"down"`

	// UptimePercent is the share of ok records in percent. A window
	// without records reports 0.
	UptimePercent float64 `json:"uptime_percent"`

	AvgLatencyMs float64    `json:"avg_latency_ms"`
	Incidents    []Incident `json:"incidents"`
	Last         *Record    `json:"last,omitempty"`
}

// Failure explains why a critical service failed validation.
type Failure struct {
	Service string `json:"service"`
	Reason  string `json:"reason"`

	// Last is the latest record, when one was found.
	Last *Record `json:"last,omitempty"`
}

// Validation is the outcome of ValidateCritical.
type Validation struct {
	AllHealthy bool      `json:"all_healthy"`
	Failures   []Failure `json:"failures"`
	CheckedAt  time.Time `json:"checked_at"`
}

// Failure reasons.
const (
	ReasonStoreUnavailable = "store unavailable"
	ReasonNoRecord         = "no health record"
	ReasonDown             = "service down"
	ReasonStale            = "latest record is stale"
)
