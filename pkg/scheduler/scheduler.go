package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/sentinel/pkg/budget"
	"mercator-hq/sentinel/pkg/config"
	"mercator-hq/sentinel/pkg/health"
	"mercator-hq/sentinel/pkg/telemetry/logging"

	"github.com/robfig/cron/v3"
)

// Job names.
const (
	JobBudgetCheck        = "budget_check"
	JobCriticalValidation = "critical_validation"
)

// runTimeout bounds a single job run.
const runTimeout = 2 * time.Minute

// BudgetChecker evaluates every configured budget. budget.Engine satisfies it.
type BudgetChecker interface {
	CheckAll(ctx context.Context) ([]budget.Result, error)
}

// CriticalValidator validates critical services. health.Tracker satisfies it.
type CriticalValidator interface {
	ValidateCritical(ctx context.Context, services []string) health.Validation
}

// Scheduler triggers budget checks and critical service validation on cron
// schedules, for deployments without an external scheduler.
//
// Runs may overlap when a run outlasts its interval; both complete, and
// budget alert state keeps the effects idempotent.
type Scheduler struct {
	config    config.SchedulerConfig
	budgets   BudgetChecker
	validator CriticalValidator
	critical  []string

	cron    *cron.Cron
	parse   func(spec string) (cron.Schedule, error)
	entries map[string]cron.EntryID
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// NewScheduler creates a scheduler. critical lists the services validated
// by the critical validation job.
func NewScheduler(cfg config.SchedulerConfig, budgets BudgetChecker, validator CriticalValidator, critical []string, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		config:    cfg,
		budgets:   budgets,
		validator: validator,
		critical:  critical,
		cron:      cron.New(),
		parse:     cron.ParseStandard,
		entries:   make(map[string]cron.EntryID),
		logger:    logging.Component(logger, "scheduler"),
	}
}

// Start schedules the configured jobs and starts the cron runner. It stops
// when ctx is cancelled. Runs in progress at that point are not cancelled;
// Stop waits for them. A disabled scheduler does nothing.
//
// Schedules use standard five-field cron syntax:
//   - "*/15 * * * *" - Every 15 minutes
//   - "0 * * * *"    - Hourly
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.config.Enabled {
		s.logger.Info("scheduler disabled")
		return nil
	}
	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	jobCtx := context.WithoutCancel(ctx)

	if err := s.add(JobBudgetCheck, s.config.BudgetCheckSchedule, func() { s.runBudgetChecks(jobCtx) }); err != nil {
		return err
	}

	switch {
	case s.config.CriticalValidationSchedule == "":
		s.logger.Info("critical validation schedule not configured, skipping job")
	case len(s.critical) == 0:
		s.logger.Info("no critical services configured, skipping job")
	default:
		if err := s.add(JobCriticalValidation, s.config.CriticalValidationSchedule, func() { s.runCriticalValidation(jobCtx) }); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("scheduler started",
		"budget_check_schedule", s.config.BudgetCheckSchedule,
		"critical_validation_schedule", s.config.CriticalValidationSchedule,
		"critical_services", len(s.critical),
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Scheduler) add(name, spec string, fn func()) error {
	schedule, err := s.parse(spec)
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q for %s: %w", spec, name, err)
	}
	s.entries[name] = s.cron.Schedule(schedule, cron.FuncJob(fn))
	return nil
}

// runBudgetChecks executes one budget check cycle.
func (s *Scheduler) runBudgetChecks(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	s.logger.Debug("starting scheduled budget checks")

	results, err := s.budgets.CheckAll(ctx)

	var alerted, review int
	for _, r := range results {
		switch r.Action {
		case budget.ActionAlerted:
			alerted++
		case budget.ActionReview:
			review++
		}
	}

	if err != nil {
		s.logger.Error("scheduled budget checks failed",
			"error", err,
			"checked", len(results),
			"needs_review", review,
		)
		return
	}

	if alerted > 0 || review > 0 {
		s.logger.Info("scheduled budget checks completed",
			"checked", len(results),
			"alerted", alerted,
			"needs_review", review,
		)
	} else {
		s.logger.Debug("scheduled budget checks completed, no alerts", "checked", len(results))
	}
}

// runCriticalValidation executes one critical validation.
func (s *Scheduler) runCriticalValidation(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	v := s.validator.ValidateCritical(ctx, s.critical)
	if !v.AllHealthy {
		// Each failure is logged by the validator
		s.logger.Warn("critical services unhealthy",
			"failed", len(v.Failures),
			"checked", len(s.critical),
		)
		return
	}
	s.logger.Debug("critical services healthy", "checked", len(s.critical))
}

// Stop stops the scheduler and waits for any running jobs to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done() // Wait for running jobs to finish
		s.running = false
		s.logger.Info("scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled time of job, or nil when the job is
// not scheduled.
func (s *Scheduler) NextRun(job string) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.entries[job]
	if !ok || !s.running {
		return nil
	}
	next := s.cron.Entry(id).Next
	return &next
}
