package scheduler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"mercator-hq/sentinel/pkg/budget"
	"mercator-hq/sentinel/pkg/config"
	"mercator-hq/sentinel/pkg/health"

	"github.com/robfig/cron/v3"
)

type fakeBudgets struct {
	mu      sync.Mutex
	calls   int
	results []budget.Result
	err     error
}

func (f *fakeBudgets) CheckAll(context.Context) ([]budget.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.results, f.err
}

type fakeValidator struct {
	mu       sync.Mutex
	services []string
	result   health.Validation
}

func (f *fakeValidator) ValidateCritical(_ context.Context, services []string) health.Validation {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.services = services
	return f.result
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduler_Start(t *testing.T) {
	tests := []struct {
		name         string
		config       config.SchedulerConfig
		critical     []string
		wantRunning  bool
		wantError    bool
		wantCritical bool
	}{
		{
			name:         "both jobs",
			config:       config.SchedulerConfig{Enabled: true, BudgetCheckSchedule: "*/15 * * * *", CriticalValidationSchedule: "*/5 * * * *"},
			critical:     []string{"maps"},
			wantRunning:  true,
			wantCritical: true,
		},
		{
			name:        "no critical services",
			config:      config.SchedulerConfig{Enabled: true, BudgetCheckSchedule: "0 * * * *", CriticalValidationSchedule: "*/5 * * * *"},
			wantRunning: true,
		},
		{
			name:        "critical schedule empty",
			config:      config.SchedulerConfig{Enabled: true, BudgetCheckSchedule: "0 * * * *"},
			critical:    []string{"maps"},
			wantRunning: true,
		},
		{
			name:        "disabled - no error, not running",
			config:      config.SchedulerConfig{Enabled: false, BudgetCheckSchedule: "invalid cron"},
			wantRunning: false,
		},
		{
			name:      "invalid budget schedule",
			config:    config.SchedulerConfig{Enabled: true, BudgetCheckSchedule: "invalid cron"},
			wantError: true,
		},
		{
			name:      "invalid critical schedule",
			config:    config.SchedulerConfig{Enabled: true, BudgetCheckSchedule: "0 * * * *", CriticalValidationSchedule: "61 * * * *"},
			critical:  []string{"maps"},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScheduler(tt.config, &fakeBudgets{}, &fakeValidator{}, tt.critical, discard())

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			err := s.Start(ctx)
			if (err != nil) != tt.wantError {
				t.Fatalf("Start() error = %v, wantError %v", err, tt.wantError)
			}
			defer s.Stop()

			if s.IsRunning() != tt.wantRunning {
				t.Errorf("IsRunning() = %v, want %v", s.IsRunning(), tt.wantRunning)
			}

			if tt.wantRunning {
				next := s.NextRun(JobBudgetCheck)
				if next == nil {
					t.Fatal("NextRun() returned nil for running scheduler")
				}
				if !next.After(time.Now()) {
					t.Errorf("NextRun() = %v, should be in the future", next)
				}
			}
			if got := s.NextRun(JobCriticalValidation) != nil; got != tt.wantCritical {
				t.Errorf("critical job scheduled = %v, want %v", got, tt.wantCritical)
			}
		})
	}
}

func TestScheduler_StopOnContextCancel(t *testing.T) {
	s := NewScheduler(config.SchedulerConfig{Enabled: true, BudgetCheckSchedule: "* * * * *"},
		&fakeBudgets{}, &fakeValidator{}, nil, discard())

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for s.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("Scheduler still running after context cancellation")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// blockingBudgets holds CheckAll until released or its context ends.
type blockingBudgets struct {
	started chan struct{}
	release chan struct{}

	mu     sync.Mutex
	ctxErr error
	done   bool
}

func (b *blockingBudgets) CheckAll(ctx context.Context) ([]budget.Result, error) {
	close(b.started)
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ctxErr = ctx.Err()
	b.done = true
	return nil, ctx.Err()
}

func TestScheduler_CancelLetsRunningCheckFinish(t *testing.T) {
	budgets := &blockingBudgets{started: make(chan struct{}), release: make(chan struct{})}
	s := NewScheduler(config.SchedulerConfig{Enabled: true, BudgetCheckSchedule: "* * * * *"},
		budgets, &fakeValidator{}, nil, discard())
	s.parse = func(string) (cron.Schedule, error) { return &onceSchedule{}, nil }

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case <-budgets.started:
	case <-time.After(2 * time.Second):
		t.Fatal("budget check never started")
	}

	cancel()
	time.Sleep(50 * time.Millisecond)
	close(budgets.release)

	deadline := time.Now().Add(2 * time.Second)
	for s.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("Scheduler still running after context cancellation")
		}
		time.Sleep(10 * time.Millisecond)
	}

	budgets.mu.Lock()
	defer budgets.mu.Unlock()
	if !budgets.done {
		t.Fatal("Expected the running check to finish before the scheduler stopped")
	}
	if budgets.ctxErr != nil {
		t.Errorf("Expected the running check to keep its context, got %v", budgets.ctxErr)
	}
}

func TestScheduler_DoubleStart(t *testing.T) {
	s := NewScheduler(config.SchedulerConfig{Enabled: true, BudgetCheckSchedule: "* * * * *"},
		&fakeBudgets{}, &fakeValidator{}, nil, discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	if err := s.Start(ctx); err == nil {
		t.Error("Expected error on second Start")
	}
}

func TestRunBudgetChecks_Logging(t *testing.T) {
	tests := []struct {
		name    string
		budgets *fakeBudgets
		want    string
	}{
		{
			name: "alerts",
			budgets: &fakeBudgets{results: []budget.Result{
				{Service: "maps", Action: budget.ActionAlerted},
				{Service: "geo", Action: budget.ActionNone},
			}},
			want: `msg="scheduled budget checks completed" component=scheduler checked=2 alerted=1 needs_review=0`,
		},
		{
			name: "failure",
			budgets: &fakeBudgets{
				results: []budget.Result{{Service: "maps", Action: budget.ActionReview}},
				err:     errors.New("state write failed"),
			},
			want: `level=ERROR msg="scheduled budget checks failed"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))
			s := NewScheduler(config.SchedulerConfig{}, tt.budgets, &fakeValidator{}, nil, logger)

			s.runBudgetChecks(context.Background())

			if tt.budgets.calls != 1 {
				t.Errorf("Expected 1 CheckAll call, got %d", tt.budgets.calls)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("Expected log containing %q, got %q", tt.want, buf.String())
			}
		})
	}
}

func TestRunCriticalValidation(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	validator := &fakeValidator{result: health.Validation{
		Failures: []health.Failure{{Service: "billing", Reason: health.ReasonDown}},
	}}
	s := NewScheduler(config.SchedulerConfig{}, &fakeBudgets{}, validator, []string{"maps", "billing"}, logger)

	s.runCriticalValidation(context.Background())

	if len(validator.services) != 2 {
		t.Errorf("Expected 2 validated services, got %v", validator.services)
	}
	if !strings.Contains(buf.String(), `msg="critical services unhealthy"`) {
		t.Errorf("Expected unhealthy warning, got %q", buf.String())
	}
}

func TestStop_WaitsForRunningJob(t *testing.T) {
	s := NewScheduler(config.SchedulerConfig{}, &fakeBudgets{}, &fakeValidator{}, nil, discard())

	started := make(chan struct{})
	finished := make(chan struct{})
	s.cron.Schedule(&onceSchedule{}, cronFunc(func() {
		close(started)
		time.Sleep(100 * time.Millisecond)
		close(finished)
	}))
	s.cron.Start()
	s.running = true

	<-started
	s.Stop()

	select {
	case <-finished:
	default:
		t.Error("Stop returned before the running job finished")
	}
}

// onceSchedule fires once, shortly after the scheduler starts.
type onceSchedule struct {
	mu   sync.Mutex
	used bool
}

func (o *onceSchedule) Next(t time.Time) time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.used {
		return time.Time{}
	}
	o.used = true
	return t.Add(10 * time.Millisecond)
}

type cronFunc func()

func (f cronFunc) Run() { f() }
