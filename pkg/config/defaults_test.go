package config

import (
	"reflect"
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	tests := []struct {
		name  string
		input Config
		check func(*testing.T, *Config)
	}{
		{
			name:  "empty config gets all defaults",
			input: Config{},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Store.OperationTimeout != DefaultStoreOperationTimeout {
					t.Errorf("expected operation timeout %v, got %v", DefaultStoreOperationTimeout, cfg.Store.OperationTimeout)
				}
				if cfg.Store.RetryCount() != DefaultStoreMaxRetries {
					t.Errorf("expected retries %d, got %d", DefaultStoreMaxRetries, cfg.Store.RetryCount())
				}
				if cfg.Usage.DailyTTL != 90*24*time.Hour {
					t.Errorf("expected daily TTL 90d, got %v", cfg.Usage.DailyTTL)
				}
				if cfg.Usage.MonthlyTTL != 365*24*time.Hour {
					t.Errorf("expected monthly TTL 365d, got %v", cfg.Usage.MonthlyTTL)
				}
				if cfg.Budgets.WarningThreshold != 0.70 {
					t.Errorf("expected warning threshold 0.70, got %v", cfg.Budgets.WarningThreshold)
				}
				if cfg.Budgets.CriticalThreshold != 0.90 {
					t.Errorf("expected critical threshold 0.90, got %v", cfg.Budgets.CriticalThreshold)
				}
				if cfg.Budgets.AlertStateTTL != 62*24*time.Hour {
					t.Errorf("expected alert state TTL 62d, got %v", cfg.Budgets.AlertStateTTL)
				}
				if cfg.Health.Retention != 7*24*time.Hour {
					t.Errorf("expected health retention 7d, got %v", cfg.Health.Retention)
				}
				if cfg.Health.StaleAfter != DefaultHealthStaleAfter {
					t.Errorf("expected stale after %v, got %v", DefaultHealthStaleAfter, cfg.Health.StaleAfter)
				}
				if !cfg.Notify.LogEnabled() {
					t.Error("expected log notifier to be enabled")
				}
				if cfg.Status.ListenAddress != DefaultStatusListenAddress {
					t.Errorf("expected listen address %q, got %q", DefaultStatusListenAddress, cfg.Status.ListenAddress)
				}
				if cfg.Scheduler.Enabled {
					t.Error("expected scheduler to be disabled by default")
				}
				if cfg.Telemetry.Logging.Level != DefaultLoggingLevel {
					t.Errorf("expected logging level %q, got %q", DefaultLoggingLevel, cfg.Telemetry.Logging.Level)
				}
				if !cfg.Telemetry.Metrics.IsEnabled() {
					t.Error("expected metrics to be enabled")
				}
			},
		},
		{
			name: "explicit values are kept",
			input: Config{
				Store:  StoreConfig{OperationTimeout: 3 * time.Second, MaxRetries: intPtr(0)},
				Status: StatusConfig{ListenAddress: "0.0.0.0:9000"},
				Notify: NotifyConfig{Log: boolPtr(false)},
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Store.OperationTimeout != 3*time.Second {
					t.Errorf("expected operation timeout 3s, got %v", cfg.Store.OperationTimeout)
				}
				if cfg.Store.RetryCount() != 0 {
					t.Errorf("expected explicit zero retries to be kept, got %d", cfg.Store.RetryCount())
				}
				if cfg.Status.ListenAddress != "0.0.0.0:9000" {
					t.Errorf("expected listen address 0.0.0.0:9000, got %q", cfg.Status.ListenAddress)
				}
				if cfg.Notify.LogEnabled() {
					t.Error("expected log notifier to stay disabled")
				}
			},
		},
		{
			name: "pricing currency defaulted per service",
			input: Config{Pricing: map[string]PricingConfig{
				"maps":  {},
				"email": {Currency: "EUR"},
			}},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Pricing["maps"].Currency != DefaultPricingCurrency {
					t.Errorf("expected currency %q, got %q", DefaultPricingCurrency, cfg.Pricing["maps"].Currency)
				}
				if cfg.Pricing["email"].Currency != "EUR" {
					t.Errorf("expected currency EUR, got %q", cfg.Pricing["email"].Currency)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.input
			ApplyDefaults(&cfg)
			tt.check(t, &cfg)
		})
	}
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	cfg := Config{}
	ApplyDefaults(&cfg)
	first := cfg.Status
	ApplyDefaults(&cfg)
	if !reflect.DeepEqual(cfg.Status, first) {
		t.Errorf("expected ApplyDefaults to be idempotent, got %+v then %+v", first, cfg.Status)
	}
}

func TestDefault_IsValid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("expected default configuration to be valid, got %v", err)
	}
}

func intPtr(i int) *int {
	return &i
}

func boolPtr(b bool) *bool {
	return &b
}
