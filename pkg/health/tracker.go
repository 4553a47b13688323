package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/sentinel/pkg/config"
	"mercator-hq/sentinel/pkg/kvstore"
	"mercator-hq/sentinel/pkg/telemetry/tracing"
)

// KeyPrefix is the logical key prefix of health collections:
// health:{service}.
const KeyPrefix = "health:"

// ErrInvalidService is returned for service names that cannot be used as a
// key segment.
var ErrInvalidService = errors.New("invalid service name")

// Observer receives health tracking outcomes.
type Observer interface {
	ObserveHealthRecord(service, status string)
	ObserveUptime(service string, percent float64)
	ObserveCriticalValidation(healthy bool, failures int)
}

// Options configures a Tracker.
type Options struct {
	// Logger receives validation failures. Default: slog.Default()
	Logger *slog.Logger

	// Observer receives outcomes. Optional.
	Observer Observer

	// Now returns the current time. Default: time.Now
	Now func() time.Time
}

// Tracker records health observations of monitored services and derives
// uptime and deployment gating results from them.
type Tracker struct {
	client     *kvstore.Client
	retention  time.Duration
	maxRecords int
	staleAfter time.Duration
	logger     *slog.Logger
	observer   Observer
	now        func() time.Time
}

// NewTracker creates a Tracker.
func NewTracker(client *kvstore.Client, cfg config.HealthConfig, opts Options) *Tracker {
	if cfg.Retention <= 0 {
		cfg.Retention = config.DefaultHealthRetention
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = config.DefaultHealthMaxRecords
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = config.DefaultHealthStaleAfter
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Tracker{
		client:     client,
		retention:  cfg.Retention,
		maxRecords: cfg.MaxRecords,
		staleAfter: cfg.StaleAfter,
		logger:     opts.Logger.With("component", "health"),
		observer:   opts.Observer,
		now:        opts.Now,
	}
}

// Key returns the logical key of the health collection of service.
func Key(service string) string {
	return KeyPrefix + service
}

// RecordHealth appends an observation of service. Records older than the
// retention and beyond the record cap are trimmed on write.
//
// When no store is configured the call is a no-op returning nil.
func (t *Tracker) RecordHealth(ctx context.Context, service string, status Status, latencyMs int64) error {
	if !config.ValidServiceName(service) {
		return fmt.Errorf("%w: %q", ErrInvalidService, service)
	}
	if _, err := ParseStatus(string(status)); err != nil {
		return err
	}
	if latencyMs < 0 {
		return fmt.Errorf("invalid latency %dms: must not be negative", latencyMs)
	}
	if !t.client.Available() {
		return nil
	}

	rec := Record{Service: service, Timestamp: t.now().UTC(), Status: status, LatencyMs: latencyMs}
	m, err := encodeMember(rec)
	if err != nil {
		return fmt.Errorf("failed to encode health record: %w", err)
	}
	if err := t.client.AppendEvent(ctx, Key(service), rec.Timestamp, m, t.retention, t.maxRecords); err != nil {
		return fmt.Errorf("failed to record health of %s: %w", service, err)
	}

	if t.observer != nil {
		t.observer.ObserveHealthRecord(service, string(status))
	}
	return nil
}

// Records returns the records of service in [from, to], oldest first.
func (t *Tracker) Records(ctx context.Context, service string, from, to time.Time) ([]Record, error) {
	events, err := t.client.RangeEvents(ctx, Key(service), from, to)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(events))
	for _, e := range events {
		r, err := decodeMember(service, e.At, e.Member)
		if err != nil {
			t.logger.Warn("skipping malformed health record", "service", service, "error", err)
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

// GetUptime summarizes the records of service in the last windowHours
// hours. The uptime is the share of ok records.
func (t *Tracker) GetUptime(ctx context.Context, service string, windowHours int) (UptimeSummary, error) {
	if windowHours <= 0 {
		return UptimeSummary{}, fmt.Errorf("invalid window %dh: must be positive", windowHours)
	}

	ctx, span := tracing.StartSpan(ctx, "health.uptime", tracing.ServiceAttributes(service, "")...)
	defer span.End()

	now := t.now()
	records, err := t.Records(ctx, service, now.Add(-time.Duration(windowHours)*time.Hour), now)
	if err != nil {
		tracing.SetStatus(span, err)
		return UptimeSummary{Service: service, WindowHours: windowHours}, fmt.Errorf("failed to read health of %s: %w", service, err)
	}

	summary := Summarize(service, windowHours, records)
	if t.observer != nil && summary.Total > 0 {
		t.observer.ObserveUptime(service, summary.UptimePercent)
	}
	return summary, nil
}

// Summarize derives an uptime summary from records ordered oldest first.
func Summarize(service string, windowHours int, records []Record) UptimeSummary {
	s := UptimeSummary{
		Service:     service,
		WindowHours: windowHours,
		Total:       len(records),
		Incidents:   []Incident{},
	}
	if len(records) == 0 {
		return s
	}

	var (
		latency int64
		open    *Incident
	)
	for _, r := range records {
		latency += r.LatencyMs

		switch r.Status {
		case StatusOK:
			s.OK++
		case StatusDegraded:
			s.Degraded++
		case StatusDown:
			s.Down++
		}

		if r.Status == StatusOK {
			if open != nil {
				open.End = r.Timestamp
				s.Incidents = append(s.Incidents, *open)
				open = nil
			}
			continue
		}
		if open == nil {
			open = &Incident{Start: r.Timestamp, Status: r.Status}
		}
		open.Records++
		open.End = r.Timestamp
		if r.Status.severity() > open.Status.severity() {
			open.Status = r.Status
		}
	}
	if open != nil {
		s.Incidents = append(s.Incidents, *open)
	}

	last := records[len(records)-1]
	s.Last = &last
	s.UptimePercent = float64(s.OK) / float64(s.Total) * 100
	s.AvgLatencyMs = float64(latency) / float64(s.Total)
	return s
}

// Latest returns the most recent record of service within the retention.
func (t *Tracker) Latest(ctx context.Context, service string) (Record, bool, error) {
	now := t.now()
	records, err := t.Records(ctx, service, now.Add(-t.retention), now)
	if err != nil {
		return Record{}, false, err
	}
	if len(records) == 0 {
		return Record{}, false, nil
	}
	return records[len(records)-1], true, nil
}

// ValidateCritical checks that every listed service is healthy and is used
// to gate deployments.
//
// It fails closed: when the store is unavailable every listed service
// fails. A service also fails when it has no record, when its latest record
// is down, or when its latest record is older than the staleness bound.
// Degraded services pass.
func (t *Tracker) ValidateCritical(ctx context.Context, services []string) Validation {
	ctx, span := tracing.StartSpan(ctx, "health.validate_critical")
	defer span.End()

	now := t.now()
	v := Validation{CheckedAt: now.UTC(), Failures: []Failure{}}

	seen := make(map[string]bool, len(services))
	for _, service := range services {
		if seen[service] {
			continue
		}
		seen[service] = true

		if !t.client.Available() {
			v.Failures = append(v.Failures, Failure{Service: service, Reason: ReasonStoreUnavailable})
			continue
		}

		last, found, err := t.Latest(ctx, service)
		switch {
		case err != nil:
			v.Failures = append(v.Failures, Failure{Service: service, Reason: ReasonStoreUnavailable})
		case !found:
			v.Failures = append(v.Failures, Failure{Service: service, Reason: ReasonNoRecord})
		case last.Status == StatusDown:
			v.Failures = append(v.Failures, Failure{Service: service, Reason: ReasonDown, Last: &last})
		case now.Sub(last.Timestamp) > t.staleAfter:
			v.Failures = append(v.Failures, Failure{Service: service, Reason: ReasonStale, Last: &last})
		}
	}
	v.AllHealthy = len(v.Failures) == 0

	for _, f := range v.Failures {
		t.logger.Error("critical service failed validation",
			"service", f.Service,
			"reason", f.Reason)
	}
	if t.observer != nil {
		t.observer.ObserveCriticalValidation(v.AllHealthy, len(v.Failures))
	}
	return v
}
