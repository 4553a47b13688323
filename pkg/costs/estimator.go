package costs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"mercator-hq/sentinel/pkg/config"
	"mercator-hq/sentinel/pkg/telemetry/tracing"
)

// UsageSource reads monthly aggregates. *usage.Recorder implements it.
type UsageSource interface {
	MonthlyCount(ctx context.Context, service, month string) (int64, error)
	MonthlyServices(ctx context.Context, month string) ([]string, error)
}

// Observer receives every computed estimate.
type Observer interface {
	ObserveCostEstimate(service string, amount float64, priced bool)
}

// Estimate is the estimated spend of one service in one month.
type Estimate struct {
	Service  string  `json:"service"`
	Month    string  `json:"month"`
	Units    int64   `json:"units"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`

	// Priced is false when the service has no pricing table. Amount is then
	// zero regardless of usage.
	Priced bool `json:"priced"`
}

// Report is the estimated spend of every known service in one month.
type Report struct {
	Month    string     `json:"month"`
	Services []Estimate `json:"services"`

	// Total sums the priced estimates. Mixed currencies are not converted.
	Total float64 `json:"total"`
}

// Options configures an Estimator.
type Options struct {
	// Logger receives unknown service warnings. Default: slog.Default()
	Logger *slog.Logger

	// Observer receives estimates. Optional.
	Observer Observer
}

// Estimator converts monthly usage into estimated spend.
type Estimator struct {
	usage    UsageSource
	table    Table
	logger   *slog.Logger
	observer Observer

	// warned holds the services already reported as unpriced.
	warned sync.Map
}

// NewEstimator creates an Estimator over the static pricing configuration.
func NewEstimator(source UsageSource, pricing map[string]config.PricingConfig, opts Options) *Estimator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Estimator{
		usage:    source,
		table:    NewTable(pricing),
		logger:   opts.Logger.With("component", "costs"),
		observer: opts.Observer,
	}
}

// Table returns the pricing table.
func (e *Estimator) Table() Table {
	return e.table
}

// EstimateCost returns the estimated spend of service in month (YYYY-MM).
//
// An unknown service yields a zero, unpriced estimate and a warning logged
// once per service. A store failure is returned wrapping
// kvstore.ErrUnavailable.
func (e *Estimator) EstimateCost(ctx context.Context, service, month string) (Estimate, error) {
	ctx, span := tracing.StartSpan(ctx, "costs.estimate", tracing.ServiceAttributes(service, month)...)
	defer span.End()

	est := Estimate{Service: service, Month: month, Currency: config.DefaultPricingCurrency}

	units, err := e.usage.MonthlyCount(ctx, service, month)
	if err != nil {
		tracing.SetStatus(span, err)
		return est, fmt.Errorf("failed to estimate cost of %s for %s: %w", service, month, err)
	}
	est.Units = units

	pricing, err := e.table.Lookup(service)
	if errors.Is(err, ErrUnknownService) {
		if _, seen := e.warned.LoadOrStore(service, struct{}{}); !seen {
			e.logger.Warn("no pricing configured, estimating zero cost",
				"service", service,
				"units", units)
		}
		e.observe(est)
		return est, nil
	}

	est.Priced = true
	est.Currency = pricing.Currency
	est.Amount = pricing.Cost(units)
	e.observe(est)
	return est, nil
}

// Report estimates every priced service and every service with usage in
// month, sorted by name.
func (e *Estimator) Report(ctx context.Context, month string) (Report, error) {
	seen, err := e.usage.MonthlyServices(ctx, month)
	if err != nil {
		return Report{Month: month}, fmt.Errorf("failed to build cost report for %s: %w", month, err)
	}

	names := make(map[string]struct{}, len(seen)+len(e.table))
	for _, s := range seen {
		names[s] = struct{}{}
	}
	for s := range e.table {
		names[s] = struct{}{}
	}
	services := make([]string, 0, len(names))
	for s := range names {
		services = append(services, s)
	}
	sort.Strings(services)

	report := Report{Month: month, Services: make([]Estimate, 0, len(services))}
	for _, service := range services {
		est, err := e.EstimateCost(ctx, service, month)
		if err != nil {
			return report, err
		}
		report.Services = append(report.Services, est)
		if est.Priced {
			report.Total += est.Amount
		}
	}
	return report, nil
}

func (e *Estimator) observe(est Estimate) {
	if e.observer != nil {
		e.observer.ObserveCostEstimate(est.Service, est.Amount, est.Priced)
	}
}
