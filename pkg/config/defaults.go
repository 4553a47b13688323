package config

import "time"

// Default values for configuration fields.
const (
	// Store defaults
	DefaultStoreOperationTimeout  = time.Second
	DefaultStoreMaxRetries        = 1
	DefaultStoreErrorLogInterval  = time.Minute
	DefaultStorePoolSize          = 10
	DefaultStoreSQLiteBusyTimeout = 5 * time.Second

	// Usage defaults
	DefaultUsageDailyTTL               = 90 * 24 * time.Hour
	DefaultUsageMonthlyTTL             = 365 * 24 * time.Hour
	DefaultUsageTransportRecordTimeout = 500 * time.Millisecond

	// Pricing defaults
	DefaultPricingCurrency = "USD"

	// Budget defaults
	DefaultBudgetWarningThreshold  = 0.70
	DefaultBudgetCriticalThreshold = 0.90
	DefaultBudgetAlertStateTTL     = 62 * 24 * time.Hour

	// Health defaults
	DefaultHealthRetention    = 7 * 24 * time.Hour
	DefaultHealthMaxRecords   = 20000
	DefaultHealthStaleAfter   = 15 * time.Minute
	DefaultHealthCheckTimeout = 5 * time.Second

	// Notify defaults
	DefaultWebhookTimeout = 5 * time.Second

	// Status server defaults
	DefaultStatusListenAddress   = "127.0.0.1:8090"
	DefaultStatusReadTimeout     = 10 * time.Second
	DefaultStatusWriteTimeout    = 10 * time.Second
	DefaultStatusIdleTimeout     = 60 * time.Second
	DefaultStatusShutdownTimeout = 15 * time.Second

	// Scheduler defaults
	DefaultBudgetCheckSchedule        = "*/15 * * * *"
	DefaultCriticalValidationSchedule = "*/5 * * * *"

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "json"
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "sentinel"
	DefaultTracingEndpoint  = "localhost:4317"
	DefaultTracingTimeout   = 10 * time.Second
	DefaultTracingSampler   = "ratio"
	DefaultTracingRatio     = 0.1
	DefaultTracingService   = "sentinel"
)

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Store defaults
	if cfg.Store.OperationTimeout == 0 {
		cfg.Store.OperationTimeout = DefaultStoreOperationTimeout
	}
	if cfg.Store.MaxRetries == nil {
		retries := DefaultStoreMaxRetries
		cfg.Store.MaxRetries = &retries
	}
	if cfg.Store.ErrorLogInterval == 0 {
		cfg.Store.ErrorLogInterval = DefaultStoreErrorLogInterval
	}
	if cfg.Store.PoolSize == 0 {
		cfg.Store.PoolSize = DefaultStorePoolSize
	}
	if cfg.Store.SQLiteBusyTimeout == 0 {
		cfg.Store.SQLiteBusyTimeout = DefaultStoreSQLiteBusyTimeout
	}

	// Usage defaults
	if cfg.Usage.DailyTTL == 0 {
		cfg.Usage.DailyTTL = DefaultUsageDailyTTL
	}
	if cfg.Usage.MonthlyTTL == 0 {
		cfg.Usage.MonthlyTTL = DefaultUsageMonthlyTTL
	}
	if cfg.Usage.TransportRecordTimeout == 0 {
		cfg.Usage.TransportRecordTimeout = DefaultUsageTransportRecordTimeout
	}

	// Pricing defaults - applied to each service
	for name, pricing := range cfg.Pricing {
		if pricing.Currency == "" {
			pricing.Currency = DefaultPricingCurrency
		}
		cfg.Pricing[name] = pricing
	}

	// Budget defaults
	if cfg.Budgets.WarningThreshold == 0 {
		cfg.Budgets.WarningThreshold = DefaultBudgetWarningThreshold
	}
	if cfg.Budgets.CriticalThreshold == 0 {
		cfg.Budgets.CriticalThreshold = DefaultBudgetCriticalThreshold
	}
	if cfg.Budgets.AlertStateTTL == 0 {
		cfg.Budgets.AlertStateTTL = DefaultBudgetAlertStateTTL
	}

	// Health defaults
	if cfg.Health.Retention == 0 {
		cfg.Health.Retention = DefaultHealthRetention
	}
	if cfg.Health.MaxRecords == 0 {
		cfg.Health.MaxRecords = DefaultHealthMaxRecords
	}
	if cfg.Health.StaleAfter == 0 {
		cfg.Health.StaleAfter = DefaultHealthStaleAfter
	}
	if cfg.Health.CheckTimeout == 0 {
		cfg.Health.CheckTimeout = DefaultHealthCheckTimeout
	}

	// Notify defaults
	if cfg.Notify.Log == nil {
		enabled := true
		cfg.Notify.Log = &enabled
	}
	if cfg.Notify.Webhook.Timeout == 0 {
		cfg.Notify.Webhook.Timeout = DefaultWebhookTimeout
	}

	// Status server defaults
	if cfg.Status.ListenAddress == "" {
		cfg.Status.ListenAddress = DefaultStatusListenAddress
	}
	if cfg.Status.ReadTimeout == 0 {
		cfg.Status.ReadTimeout = DefaultStatusReadTimeout
	}
	if cfg.Status.WriteTimeout == 0 {
		cfg.Status.WriteTimeout = DefaultStatusWriteTimeout
	}
	if cfg.Status.IdleTimeout == 0 {
		cfg.Status.IdleTimeout = DefaultStatusIdleTimeout
	}
	if cfg.Status.ShutdownTimeout == 0 {
		cfg.Status.ShutdownTimeout = DefaultStatusShutdownTimeout
	}

	// Scheduler defaults
	if cfg.Scheduler.BudgetCheckSchedule == "" {
		cfg.Scheduler.BudgetCheckSchedule = DefaultBudgetCheckSchedule
	}
	if cfg.Scheduler.CriticalValidationSchedule == "" {
		cfg.Scheduler.CriticalValidationSchedule = DefaultCriticalValidationSchedule
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Enabled == nil {
		enabled := true
		cfg.Telemetry.Metrics.Enabled = &enabled
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingRatio
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingService
	}
}

// Default returns a configuration with every default applied and no
// pricing, budgets or monitored services.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
