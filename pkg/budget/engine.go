package budget

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
	"mercator-hq/sentinel/pkg/costs"
	"mercator-hq/sentinel/pkg/kvstore"
	"mercator-hq/sentinel/pkg/notify"
	"mercator-hq/sentinel/pkg/telemetry/tracing"
	"mercator-hq/sentinel/pkg/usage"

	"go.opentelemetry.io/otel/attribute"
)

// epsilon absorbs float noise in spend ratios, so a spend of exactly 70%
// of the limit counts as crossing the warning threshold.
const epsilon = 1e-9

// AlertStateKeyPrefix is the logical key prefix of alert states:
// alert-state:{service}:{YYYY-MM}.
const AlertStateKeyPrefix = "alert-state:"

// CostSource estimates monthly spend. *costs.Estimator implements it.
type CostSource interface {
	EstimateCost(ctx context.Context, service, month string) (costs.Estimate, error)
}

// Observer receives budget check outcomes.
type Observer interface {
	ObserveBudgetCheck(service string, ratio float64, action string)
	ObserveAlert(service, level string)
	ObserveReviewRequired(service string)
}

// Options configures an Engine.
type Options struct {
	// Logger receives state and delivery failures. Default: slog.Default()
	Logger *slog.Logger

	// Observer receives check outcomes. Optional.
	Observer Observer

	// Now returns the current time. Default: time.Now
	Now func() time.Time
}

// Engine evaluates monthly budgets and sends deduplicated threshold alerts.
//
// Per (service, month) the level moves normal -> warned -> critical and
// never back. The level is persisted as the alert state and raised with an
// atomic compare-and-raise, so of several concurrent or repeated checks only
// the one that raised the level notifies.
type Engine struct {
	client   *kvstore.Client
	state    *kvstore.Client
	costs    CostSource
	notifier notify.Notifier
	budgets  map[string]float64
	services []string
	warning  float64
	critical float64
	stateTTL time.Duration
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

// NewEngine creates an Engine for the budgets in cfg.
func NewEngine(client *kvstore.Client, source CostSource, notifier notify.Notifier, cfg config.BudgetsConfig, opts Options) *Engine {
	if cfg.WarningThreshold <= 0 {
		cfg.WarningThreshold = config.DefaultBudgetWarningThreshold
	}
	if cfg.CriticalThreshold <= 0 {
		cfg.CriticalThreshold = config.DefaultBudgetCriticalThreshold
	}
	if cfg.AlertStateTTL <= 0 {
		cfg.AlertStateTTL = config.DefaultBudgetAlertStateTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	budgets := make(map[string]float64, len(cfg.Limits))
	services := make([]string, 0, len(cfg.Limits))
	for _, b := range cfg.Limits {
		budgets[b.Service] = b.MonthlyLimit
		services = append(services, b.Service)
	}
	sort.Strings(services)

	return &Engine{
		client:   client,
		state:    client.NoRetry(),
		costs:    source,
		notifier: notifier,
		budgets:  budgets,
		services: services,
		warning:  cfg.WarningThreshold,
		critical: cfg.CriticalThreshold,
		stateTTL: cfg.AlertStateTTL,
		logger:   opts.Logger.With("component", "budget"),
		observer: opts.Observer,
		now:      opts.Now,
	}
}

// Services returns the services with a budget, sorted by name.
func (e *Engine) Services() []string {
	return append([]string(nil), e.services...)
}

// StateKey returns the logical alert state key of service in month.
func StateKey(service, month string) string {
	return AlertStateKeyPrefix + service + ":" + month
}

// TargetLevel returns the level a spend ratio corresponds to.
func (e *Engine) TargetLevel(ratio float64) Level {
	switch {
	case ratio+epsilon >= e.critical:
		return LevelCritical
	case ratio+epsilon >= e.warning:
		return LevelWarned
	default:
		return LevelNormal
	}
}

// CheckBudget evaluates the current month's budget of service and notifies
// when this check raised the alert level.
//
// A missing budget or an unavailable estimate skip the check without
// error. A failed alert state operation or notification returns an error
// and a result flagged NeedsReview; in the former case nothing is sent.
func (e *Engine) CheckBudget(ctx context.Context, service string) (Result, error) {
	month := usage.Month(e.now())
	result := Result{Service: service, Month: month}

	ctx, span := tracing.StartSpan(ctx, "budget.check", tracing.ServiceAttributes(service, month)...)
	defer span.End()

	limit, ok := e.budgets[service]
	if !ok {
		e.logger.Warn("no budget configured, skipping check", "service", service)
		return e.finish(result, ActionSkipped, "no budget configured"), nil
	}
	result.Limit = limit

	est, err := e.costs.EstimateCost(ctx, service, month)
	if err != nil {
		e.logger.Warn("cost estimate unavailable, skipping check",
			"service", service,
			"month", month,
			"error", err)
		return e.finish(result, ActionSkipped, "cost estimate unavailable"), nil
	}

	result.Amount = est.Amount
	result.Ratio = est.Amount / limit
	result.Target = e.TargetLevel(result.Ratio)
	span.SetAttributes(attribute.String(tracing.AttrAlertLevel, result.Target.String()))

	if result.Target == LevelNormal {
		return e.finish(result, ActionNone, ""), nil
	}

	raised, err := e.state.RaiseTo(ctx, StateKey(service, month), int64(result.Target), e.stateTTL)
	if err != nil {
		e.logger.Error("alert state not persisted, alert withheld for review",
			"service", service,
			"month", month,
			"alert_level", result.Target.String(),
			"error", err)
		result.NeedsReview = true
		tracing.SetStatus(span, err)
		return e.finish(result, ActionReview, "alert state unavailable"), fmt.Errorf("%w: %s %s: %w", ErrStateWrite, service, month, err)
	}
	if !raised {
		return e.finish(result, ActionNone, ""), nil
	}

	alert := notify.NewAlert(service, month, result.Target.String(), int(result.Target), e.now())
	alert.Ratio = result.Ratio
	alert.Amount = est.Amount
	alert.Limit = limit
	alert.Currency = est.Currency
	alert.Environment = string(e.client.Environment().Kind)
	result.Alert = &alert

	if e.observer != nil {
		e.observer.ObserveAlert(service, alert.Level)
	}

	if err := e.notifier.Notify(ctx, alert); err != nil {
		e.logger.Error("alert delivery failed, state already raised",
			"service", service,
			"month", month,
			"alert_id", alert.ID,
			"alert_level", alert.Level,
			"error", err)
		result.NeedsReview = true
		tracing.SetStatus(span, err)
		return e.finish(result, ActionReview, "notification failed"), fmt.Errorf("failed to deliver %s alert for %s: %w", alert.Level, service, err)
	}

	return e.finish(result, ActionAlerted, ""), nil
}

// CheckAll checks every configured budget in service name order. Errors of
// individual checks are joined; every budget is checked.
func (e *Engine) CheckAll(ctx context.Context) ([]Result, error) {
	results := make([]Result, 0, len(e.services))
	var errs []error
	for _, service := range e.services {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		r, err := e.CheckBudget(ctx, service)
		results = append(results, r)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return results, errors.Join(errs...)
}

// Level returns the persisted alert level of service in month.
func (e *Engine) Level(ctx context.Context, service, month string) (Level, error) {
	raw, err := e.client.Get(ctx, StateKey(service, month))
	if errors.Is(err, kvstore.ErrNotFound) {
		return LevelNormal, nil
	}
	if err != nil {
		return LevelNormal, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return LevelNormal, fmt.Errorf("malformed alert state for %s %s: %w", service, month, err)
	}
	return Level(n), nil
}

// Status returns the current month's spend and persisted level of every
// configured budget without changing any state. Services whose estimate or
// state cannot be read are marked unavailable.
func (e *Engine) Status(ctx context.Context) []Status {
	month := usage.Month(e.now())
	out := make([]Status, 0, len(e.services))
	for _, service := range e.services {
		st := Status{Service: service, Month: month, Limit: e.budgets[service], Level: LevelNormal.String()}

		est, err := e.costs.EstimateCost(ctx, service, month)
		if err == nil {
			var level Level
			level, err = e.Level(ctx, service, month)
			st.Amount = est.Amount
			st.Ratio = est.Amount / st.Limit
			st.Level = level.String()
		}
		st.Available = err == nil
		out = append(out, st)
	}
	return out
}

func (e *Engine) finish(r Result, action Action, reason string) Result {
	r.Action = action
	r.Reason = reason
	if e.observer != nil {
		e.observer.ObserveBudgetCheck(r.Service, r.Ratio, string(action))
		if r.NeedsReview {
			e.observer.ObserveReviewRequired(r.Service)
		}
	}
	return r
}
