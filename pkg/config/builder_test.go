package config

import "time"

// ConfigBuilder provides a fluent API for building Config instances in tests.
// It starts with default values and allows selective overrides.
type ConfigBuilder struct {
	cfg Config
}

// NewTestConfig creates a new ConfigBuilder with sensible defaults for testing.
// The resulting configuration is valid and can be used immediately.
func NewTestConfig() *ConfigBuilder {
	cfg := Config{
		Pricing: map[string]PricingConfig{
			"geocoding": {
				FreeUnits: 1000,
				Tiers: []PricingTierConfig{
					{UpTo: 9000, UnitCost: 0.01},
					{UnitCost: 0.005},
				},
			},
		},
		Budgets: BudgetsConfig{
			Limits: []BudgetConfig{{Service: "geocoding", MonthlyLimit: 100}},
		},
	}
	ApplyDefaults(&cfg)

	return &ConfigBuilder{cfg: cfg}
}

// Build returns the built Config instance.
func (b *ConfigBuilder) Build() *Config {
	return &b.cfg
}

// WithListenAddress sets the status listen address.
func (b *ConfigBuilder) WithListenAddress(addr string) *ConfigBuilder {
	b.cfg.Status.ListenAddress = addr
	return b
}

// WithOperationTimeout sets the store operation timeout.
func (b *ConfigBuilder) WithOperationTimeout(d time.Duration) *ConfigBuilder {
	b.cfg.Store.OperationTimeout = d
	return b
}

// WithMaxRetries sets the store retry count.
func (b *ConfigBuilder) WithMaxRetries(n int) *ConfigBuilder {
	b.cfg.Store.MaxRetries = &n
	return b
}

// WithPricing adds or updates a pricing table.
func (b *ConfigBuilder) WithPricing(service string, pricing PricingConfig) *ConfigBuilder {
	if b.cfg.Pricing == nil {
		b.cfg.Pricing = make(map[string]PricingConfig)
	}
	b.cfg.Pricing[service] = pricing
	return b
}

// WithBudget appends a budget limit.
func (b *ConfigBuilder) WithBudget(service string, limit float64) *ConfigBuilder {
	b.cfg.Budgets.Limits = append(b.cfg.Budgets.Limits, BudgetConfig{Service: service, MonthlyLimit: limit})
	return b
}

// WithThresholds sets the warning and critical thresholds.
func (b *ConfigBuilder) WithThresholds(warning, critical float64) *ConfigBuilder {
	b.cfg.Budgets.WarningThreshold = warning
	b.cfg.Budgets.CriticalThreshold = critical
	return b
}

// WithCriticalServices sets the critical services.
func (b *ConfigBuilder) WithCriticalServices(services ...string) *ConfigBuilder {
	b.cfg.Health.CriticalServices = services
	return b
}

// WithWebhook sets the webhook URL.
func (b *ConfigBuilder) WithWebhook(url string) *ConfigBuilder {
	b.cfg.Notify.Webhook.URL = url
	return b
}

// WithScheduler enables the scheduler with the given budget schedule.
func (b *ConfigBuilder) WithScheduler(schedule string) *ConfigBuilder {
	b.cfg.Scheduler.Enabled = true
	b.cfg.Scheduler.BudgetCheckSchedule = schedule
	return b
}

// WithLogLevel sets the logging level.
func (b *ConfigBuilder) WithLogLevel(level string) *ConfigBuilder {
	b.cfg.Telemetry.Logging.Level = level
	return b
}

// MinimalConfig returns a minimal valid configuration.
func MinimalConfig() *Config {
	return Default()
}
