package config

import "time"

// Config is the root configuration structure for Sentinel.
// It contains the store tuning, the static pricing and budget tables, the
// health tracking settings, notification targets, the status server, the
// in-process scheduler, and telemetry settings.
//
// A Config is loaded once at startup and passed to the components that need
// it. Components copy what they use; nothing mutates a Config after Validate.
type Config struct {
	// Store contains key-value store client tuning. Credentials are not part
	// of the file configuration; they are resolved per environment.
	Store StoreConfig `yaml:"store"`

	// Usage contains usage counter retention settings.
	Usage UsageConfig `yaml:"usage"`

	// Pricing maps a metered service name to its pricing table.
	Pricing map[string]PricingConfig `yaml:"pricing"`

	// Budgets contains monthly budget limits and alert thresholds.
	Budgets BudgetsConfig `yaml:"budgets"`

	// Health contains health record retention and validation settings.
	Health HealthConfig `yaml:"health"`

	// Notify contains the alert notification targets.
	Notify NotifyConfig `yaml:"notify"`

	// Status contains the read-only status HTTP server configuration.
	Status StatusConfig `yaml:"status"`

	// Scheduler contains the in-process cron schedules.
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// StoreConfig contains key-value store client configuration.
type StoreConfig struct {
	// OperationTimeout bounds every store operation.
	// Default: 1s
	OperationTimeout time.Duration `yaml:"operation_timeout"`

	// MaxRetries is the number of retries after a failed store operation.
	// Only 0 or 1 are accepted. The usage recorder never retries.
	// Default: 1
	MaxRetries *int `yaml:"max_retries"`

	// ErrorLogInterval is the minimum interval between two logged store
	// failures. Failures in between are counted but not logged.
	// Default: 1m
	ErrorLogInterval time.Duration `yaml:"error_log_interval"`

	// PoolSize is the connection pool size for network backends.
	// Default: 10
	PoolSize int `yaml:"pool_size"`

	// SQLiteBusyTimeout is how long the SQLite backend waits on locks.
	// Default: 5s
	SQLiteBusyTimeout time.Duration `yaml:"sqlite_busy_timeout"`
}

// UsageConfig contains usage counter configuration.
type UsageConfig struct {
	// DailyTTL is the retention of per-endpoint daily counters.
	// Must exceed the alerting window of one month.
	// Default: 2160h (90 days)
	DailyTTL time.Duration `yaml:"daily_ttl"`

	// MonthlyTTL is the retention of per-service monthly aggregates.
	// Default: 8760h (365 days)
	MonthlyTTL time.Duration `yaml:"monthly_ttl"`

	// TransportRecordTimeout bounds the detached recording performed by the
	// outbound HTTP transport after each request.
	// Default: 500ms
	TransportRecordTimeout time.Duration `yaml:"transport_record_timeout"`
}

// PricingConfig contains the pricing of one metered service.
// Units below FreeUnits cost nothing; the remaining units are priced by
// graduated tiers.
type PricingConfig struct {
	// FreeUnits is the monthly free allotment.
	FreeUnits int64 `yaml:"free_units"`

	// Tiers are the graduated price tiers, in ascending UpTo order.
	// The last tier should have UpTo 0 (unbounded).
	Tiers []PricingTierConfig `yaml:"tiers"`

	// Currency is informational.
	// Default: "USD"
	Currency string `yaml:"currency"`
}

// PricingTierConfig is a single graduated price tier.
type PricingTierConfig struct {
	// UpTo is the inclusive upper bound of billable units covered by this
	// tier, counted after the free allotment. 0 means unbounded.
	UpTo int64 `yaml:"up_to"`

	// UnitCost is the cost of one unit in this tier.
	UnitCost float64 `yaml:"unit_cost"`
}

// BudgetsConfig contains budget alerting configuration.
type BudgetsConfig struct {
	// WarningThreshold is the spend ratio that raises a warning.
	// Default: 0.70
	WarningThreshold float64 `yaml:"warning_threshold"`

	// CriticalThreshold is the spend ratio that raises a critical alert.
	// Default: 0.90
	CriticalThreshold float64 `yaml:"critical_threshold"`

	// AlertStateTTL is the retention of the per-month alert state.
	// Must be longer than a month and shorter than Usage.DailyTTL.
	// Default: 1488h (62 days)
	AlertStateTTL time.Duration `yaml:"alert_state_ttl"`

	// Limits are the monthly budgets per service.
	Limits []BudgetConfig `yaml:"limits"`
}

// BudgetConfig is the monthly budget of a single service.
type BudgetConfig struct {
	// Service is the metered service name.
	Service string `yaml:"service"`

	// MonthlyLimit is the monthly budget in the pricing currency.
	MonthlyLimit float64 `yaml:"monthly_limit"`
}

// HealthConfig contains health tracking configuration.
type HealthConfig struct {
	// Retention is how long health records are kept.
	// Default: 168h (7 days)
	Retention time.Duration `yaml:"retention"`

	// MaxRecords caps the number of records kept per service.
	// Default: 20000
	MaxRecords int `yaml:"max_records"`

	// StaleAfter is the age after which the latest record no longer counts
	// as evidence of health during critical validation.
	// Default: 15m
	StaleAfter time.Duration `yaml:"stale_after"`

	// CheckTimeout is the timeout of each readiness check of this process.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`

	// Services lists the monitored services shown on the status surface.
	Services []string `yaml:"services"`

	// CriticalServices lists the services that gate deployments.
	CriticalServices []string `yaml:"critical_services"`
}

// NotifyConfig contains alert notification configuration.
type NotifyConfig struct {
	// Log writes alerts to the structured log.
	// Default: true
	Log *bool `yaml:"log"`

	// Webhook posts alerts as JSON to an HTTP endpoint.
	Webhook WebhookConfig `yaml:"webhook"`
}

// WebhookConfig contains webhook notifier configuration.
type WebhookConfig struct {
	// URL is the endpoint receiving alerts. Empty disables the webhook.
	URL string `yaml:"url"`

	// Timeout bounds each delivery attempt.
	// Default: 5s
	Timeout time.Duration `yaml:"timeout"`

	// Headers are added to every request (e.g. authorization).
	Headers map[string]string `yaml:"headers"`
}

// StatusConfig contains the status HTTP server configuration.
type StatusConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8090"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 60s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// IngestTokens are the API keys accepted by POST /v1/health-reports,
	// sent as "Authorization: Bearer <token>" or "X-API-Key: <token>".
	// Several keys allow rotation. With none, ingestion is refused.
	// Default: none
	IngestTokens []string `yaml:"ingest_tokens"`
}

// SchedulerConfig contains the in-process scheduler configuration.
type SchedulerConfig struct {
	// Enabled starts the scheduler together with the status server.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// BudgetCheckSchedule is a cron expression for budget checks.
	// Default: "*/15 * * * *"
	BudgetCheckSchedule string `yaml:"budget_check_schedule"`

	// CriticalValidationSchedule is a cron expression for critical service
	// validation. Empty disables the job.
	// Default: "*/5 * * * *"
	CriticalValidationSchedule string `yaml:"critical_validation_schedule"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactKeys lists additional attribute keys whose values are masked.
	// Credential attributes (token, password, store_url) are always masked.
	RedactKeys []string `yaml:"redact_keys"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is exposed.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "sentinel"
	Namespace string `yaml:"namespace"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS towards the collector.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// Sampler is the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the sampling ratio for the "ratio" strategy.
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// ServiceName is the service.name resource attribute.
	// Default: "sentinel"
	ServiceName string `yaml:"service_name"`
}

// BudgetFor returns the budget configured for service.
func (c *Config) BudgetFor(service string) (BudgetConfig, bool) {
	for _, b := range c.Budgets.Limits {
		if b.Service == service {
			return b, true
		}
	}
	return BudgetConfig{}, false
}

// RetryCount returns the configured store retry count.
func (s StoreConfig) RetryCount() int {
	if s.MaxRetries == nil {
		return DefaultStoreMaxRetries
	}
	return *s.MaxRetries
}

// LogEnabled reports whether the log notifier is enabled.
func (n NotifyConfig) LogEnabled() bool {
	return n.Log == nil || *n.Log
}

// IsEnabled reports whether the metrics endpoint is enabled.
func (m MetricsConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}
