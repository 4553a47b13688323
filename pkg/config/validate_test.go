package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		cfg       *Config
		wantField string
	}{
		{
			name: "valid test config",
			cfg:  NewTestConfig().Build(),
		},
		{
			name:      "non-positive operation timeout",
			cfg:       NewTestConfig().WithOperationTimeout(-time.Second).Build(),
			wantField: "store.operation_timeout",
		},
		{
			name:      "too many retries",
			cfg:       NewTestConfig().WithMaxRetries(3).Build(),
			wantField: "store.max_retries",
		},
		{
			name:      "warning threshold above critical",
			cfg:       NewTestConfig().WithThresholds(0.95, 0.9).Build(),
			wantField: "budgets.critical_threshold",
		},
		{
			name:      "warning threshold out of range",
			cfg:       NewTestConfig().WithThresholds(1.5, 2).Build(),
			wantField: "budgets.warning_threshold",
		},
		{
			name:      "duplicate budget",
			cfg:       NewTestConfig().WithBudget("geocoding", 50).Build(),
			wantField: "budgets.limits[1].service",
		},
		{
			name:      "reserved service name",
			cfg:       NewTestConfig().WithBudget("monthly", 50).Build(),
			wantField: "budgets.limits[1].service",
		},
		{
			name:      "zero budget",
			cfg:       NewTestConfig().WithBudget("email", 0).Build(),
			wantField: "budgets.limits[1].monthly_limit",
		},
		{
			name: "unbounded tier before last",
			cfg: NewTestConfig().WithPricing("email", PricingConfig{Tiers: []PricingTierConfig{
				{UnitCost: 0.1},
				{UpTo: 100, UnitCost: 0.2},
			}}).Build(),
			wantField: "pricing.email.tiers[0].up_to",
		},
		{
			name: "descending tiers",
			cfg: NewTestConfig().WithPricing("email", PricingConfig{Tiers: []PricingTierConfig{
				{UpTo: 100, UnitCost: 0.1},
				{UpTo: 50, UnitCost: 0.2},
			}}).Build(),
			wantField: "pricing.email.tiers[1].up_to",
		},
		{
			name: "negative unit cost",
			cfg: NewTestConfig().WithPricing("email", PricingConfig{Tiers: []PricingTierConfig{
				{UnitCost: -1},
			}}).Build(),
			wantField: "pricing.email.tiers[0].unit_cost",
		},
		{
			name:      "invalid critical service",
			cfg:       NewTestConfig().WithCriticalServices("Payments:EU").Build(),
			wantField: "health.critical_services[0]",
		},
		{
			name:      "webhook without scheme",
			cfg:       NewTestConfig().WithWebhook("hooks.example.com/x").Build(),
			wantField: "notify.webhook.url",
		},
		{
			name:      "invalid listen address",
			cfg:       NewTestConfig().WithListenAddress("localhost").Build(),
			wantField: "status.listen_address",
		},
		{
			name:      "invalid cron schedule",
			cfg:       NewTestConfig().WithScheduler("every minute").Build(),
			wantField: "scheduler.budget_check_schedule",
		},
		{
			name:      "invalid log level",
			cfg:       NewTestConfig().WithLogLevel("verbose").Build(),
			wantField: "telemetry.logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cfg)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error for field %q, got nil", tt.wantField)
			}

			var valErr ValidationError
			if !errors.As(err, &valErr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			found := false
			for _, fe := range valErr.Errors {
				if fe.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error for field %q, got %v", tt.wantField, valErr.Errors)
			}
		})
	}
}

func TestValidate_AlertStateOutlivesMonthButNotUsage(t *testing.T) {
	cfg := NewTestConfig().Build()
	cfg.Budgets.AlertStateTTL = 20 * 24 * time.Hour
	if err := Validate(cfg); err == nil || !strings.Contains(err.Error(), "budgets.alert_state_ttl") {
		t.Errorf("expected alert_state_ttl error for a TTL shorter than a month, got %v", err)
	}

	cfg = NewTestConfig().Build()
	cfg.Budgets.AlertStateTTL = cfg.Usage.DailyTTL
	if err := Validate(cfg); err == nil || !strings.Contains(err.Error(), "budgets.alert_state_ttl") {
		t.Errorf("expected alert_state_ttl error for a TTL equal to the usage TTL, got %v", err)
	}

	cfg = NewTestConfig().Build()
	cfg.Usage.DailyTTL = 7 * 24 * time.Hour
	if err := Validate(cfg); err == nil || !strings.Contains(err.Error(), "usage.daily_ttl") {
		t.Errorf("expected daily_ttl error for a TTL shorter than a month, got %v", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := NewTestConfig().
		WithOperationTimeout(0).
		WithListenAddress("").
		WithLogLevel("loud").
		Build()

	err := Validate(cfg)
	var valErr ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(valErr.Errors) != 3 {
		t.Errorf("expected 3 errors, got %d: %v", len(valErr.Errors), valErr.Errors)
	}
	if !strings.Contains(err.Error(), "with 3 errors") {
		t.Errorf("expected aggregated message, got %q", err.Error())
	}
}

func TestValidServiceName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"geocoding", true},
		{"maps.v2", true},
		{"email_out-eu", true},
		{"0auth", true},
		{"", false},
		{"monthly", false},
		{"Geocoding", false},
		{"geo:coding", false},
		{"geo*", false},
		{"-leading", false},
		{strings.Repeat("a", 65), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidServiceName(tt.name); got != tt.want {
				t.Errorf("ValidServiceName(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestFieldError_Error(t *testing.T) {
	err := FieldError{Field: "status.listen_address", Message: "listen address is required"}
	want := "status.listen_address: listen address is required"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}
