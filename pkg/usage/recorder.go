package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"mercator-hq/sentinel/pkg/config"
	"mercator-hq/sentinel/pkg/kvstore"
)

// ErrInvalidService is returned for service names that cannot be used as a
// key segment.
var ErrInvalidService = errors.New("invalid service name")

// Outcomes reported to the Observer.
const (
	ResultRecorded      = "recorded"
	ResultMonthlyFailed = "monthly_failed"
	ResultFailed        = "failed"
	ResultSkipped       = "skipped"
	ResultRejected      = "rejected"
)

// Observer receives the outcome of every RecordUsage call.
type Observer interface {
	ObserveUsage(service, result string)
}

// Options configures a Recorder.
type Options struct {
	// Logger receives monthly aggregate failures. Default: slog.Default()
	Logger *slog.Logger

	// Observer receives recording outcomes. Optional.
	Observer Observer

	// Now returns the current time. Default: time.Now
	Now func() time.Time
}

// Recorder counts API calls per service, endpoint and day, and per service
// and month, in the shared store.
//
// The daily counter is authoritative. The monthly aggregate is written
// after it and may lag behind the sum of the daily counters when its
// increment fails; such failures are logged and counted, never returned.
type Recorder struct {
	writer     *kvstore.Client
	reader     *kvstore.Client
	dailyTTL   time.Duration
	monthlyTTL time.Duration
	logger     *slog.Logger
	observer   Observer
	now        func() time.Time
}

// NewRecorder creates a Recorder. Writes go through a non-retrying view of
// client so recording never waits for a second attempt.
func NewRecorder(client *kvstore.Client, cfg config.UsageConfig, opts Options) *Recorder {
	if cfg.DailyTTL <= 0 {
		cfg.DailyTTL = config.DefaultUsageDailyTTL
	}
	if cfg.MonthlyTTL <= 0 {
		cfg.MonthlyTTL = config.DefaultUsageMonthlyTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Recorder{
		writer:     client.NoRetry(),
		reader:     client,
		dailyTTL:   cfg.DailyTTL,
		monthlyTTL: cfg.MonthlyTTL,
		logger:     opts.Logger.With("component", "usage"),
		observer:   opts.Observer,
		now:        opts.Now,
	}
}

// Available reports whether recorded usage reaches a store.
func (r *Recorder) Available() bool {
	return r.reader.Available()
}

// RecordUsage counts one call of endpoint on service.
//
// When no store is configured the call is a no-op returning nil. A failed
// daily increment returns an error wrapping kvstore.ErrUnavailable; a failed
// monthly increment is only logged.
func (r *Recorder) RecordUsage(ctx context.Context, service, endpoint string) error {
	if !config.ValidServiceName(service) {
		r.observe("invalid", ResultRejected)
		return fmt.Errorf("%w: %q", ErrInvalidService, service)
	}
	endpoint = NormalizeEndpoint(endpoint)

	if !r.writer.Available() {
		r.observe(service, ResultSkipped)
		return nil
	}

	now := r.now()
	if _, err := r.writer.Increment(ctx, DailyKey(service, endpoint, Day(now)), 1, r.dailyTTL); err != nil {
		r.observe(service, ResultFailed)
		return fmt.Errorf("failed to record usage for %s: %w", service, err)
	}

	month := Month(now)
	if _, err := r.writer.Increment(ctx, MonthlyKey(service, month), 1, r.monthlyTTL); err != nil {
		r.observe(service, ResultMonthlyFailed)
		r.logger.Warn("monthly usage aggregate not updated",
			"service", service,
			"month", month,
			"error", err)
		return nil
	}

	r.observe(service, ResultRecorded)
	return nil
}

// DailyCount returns the counter of endpoint on service for day (YYYY-MM-DD).
func (r *Recorder) DailyCount(ctx context.Context, service, endpoint, day string) (int64, error) {
	return r.count(ctx, DailyKey(service, NormalizeEndpoint(endpoint), day))
}

// MonthlyCount returns the monthly aggregate of service for month (YYYY-MM).
// A month without usage counts zero.
func (r *Recorder) MonthlyCount(ctx context.Context, service, month string) (int64, error) {
	return r.count(ctx, MonthlyKey(service, month))
}

// MonthlyServices returns the services with a monthly aggregate for month,
// sorted by name.
func (r *Recorder) MonthlyServices(ctx context.Context, month string) ([]string, error) {
	keys, err := r.reader.ScanByPrefix(ctx, MonthlyKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list monthly usage: %w", err)
	}

	var services []string
	for _, key := range keys {
		service, m, ok := parseMonthlyKey(key)
		if ok && m == month {
			services = append(services, service)
		}
	}
	sort.Strings(services)
	return services, nil
}

func (r *Recorder) count(ctx context.Context, key string) (int64, error) {
	raw, err := r.reader.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed counter at %s: %w", key, err)
	}
	return n, nil
}

func (r *Recorder) observe(service, result string) {
	if r.observer != nil {
		r.observer.ObserveUsage(service, result)
	}
}
