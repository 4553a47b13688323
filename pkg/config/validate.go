package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "status.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// alertWindow is the longest alerting period: one calendar month.
const alertWindow = 31 * 24 * time.Hour

// reservedServiceNames collide with fixed key segments.
var reservedServiceNames = map[string]bool{"monthly": true}

var serviceNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// ValidServiceName reports whether name can be used as a service name in
// store keys. Names are lowercase and may not contain ':'.
func ValidServiceName(name string) bool {
	return len(name) <= 64 && serviceNamePattern.MatchString(name) && !reservedServiceNames[name]
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateStore(&cfg.Store)...)
	errs = append(errs, validateUsage(&cfg.Usage)...)
	errs = append(errs, validatePricing(cfg.Pricing)...)
	errs = append(errs, validateBudgets(&cfg.Budgets, &cfg.Usage)...)
	errs = append(errs, validateHealth(&cfg.Health)...)
	errs = append(errs, validateNotify(&cfg.Notify)...)
	errs = append(errs, validateStatus(&cfg.Status)...)
	errs = append(errs, validateScheduler(&cfg.Scheduler)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateStore(cfg *StoreConfig) []FieldError {
	var errs []FieldError

	if cfg.OperationTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "store.operation_timeout",
			Message: "operation timeout must be positive",
		})
	}
	if retries := cfg.RetryCount(); retries < 0 || retries > 1 {
		errs = append(errs, FieldError{
			Field:   "store.max_retries",
			Message: fmt.Sprintf("max retries must be 0 or 1, got %d", retries),
		})
	}
	if cfg.ErrorLogInterval < 0 {
		errs = append(errs, FieldError{
			Field:   "store.error_log_interval",
			Message: "error log interval cannot be negative",
		})
	}
	if cfg.PoolSize < 0 {
		errs = append(errs, FieldError{
			Field:   "store.pool_size",
			Message: "pool size cannot be negative",
		})
	}

	return errs
}

func validateUsage(cfg *UsageConfig) []FieldError {
	var errs []FieldError

	if cfg.DailyTTL <= alertWindow {
		errs = append(errs, FieldError{
			Field:   "usage.daily_ttl",
			Message: fmt.Sprintf("daily counter TTL must exceed the alerting window of %s", alertWindow),
		})
	}
	if cfg.MonthlyTTL <= alertWindow {
		errs = append(errs, FieldError{
			Field:   "usage.monthly_ttl",
			Message: fmt.Sprintf("monthly aggregate TTL must exceed the alerting window of %s", alertWindow),
		})
	}
	if cfg.TransportRecordTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "usage.transport_record_timeout",
			Message: "transport record timeout cannot be negative",
		})
	}

	return errs
}

func validatePricing(pricing map[string]PricingConfig) []FieldError {
	var errs []FieldError

	// Sorted for stable error output
	names := make([]string, 0, len(pricing))
	for name := range pricing {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := pricing[name]
		prefix := fmt.Sprintf("pricing.%s", name)

		if !ValidServiceName(name) {
			errs = append(errs, FieldError{
				Field:   prefix,
				Message: fmt.Sprintf("invalid service name %q", name),
			})
		}
		if p.FreeUnits < 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".free_units",
				Message: "free units cannot be negative",
			})
		}

		var last int64
		for i, tier := range p.Tiers {
			tierField := fmt.Sprintf("%s.tiers[%d]", prefix, i)
			if tier.UnitCost < 0 {
				errs = append(errs, FieldError{
					Field:   tierField + ".unit_cost",
					Message: "unit cost cannot be negative",
				})
			}
			if tier.UpTo < 0 {
				errs = append(errs, FieldError{
					Field:   tierField + ".up_to",
					Message: "tier bound cannot be negative",
				})
				continue
			}
			if tier.UpTo == 0 && i != len(p.Tiers)-1 {
				errs = append(errs, FieldError{
					Field:   tierField + ".up_to",
					Message: "only the last tier may be unbounded",
				})
			}
			if tier.UpTo != 0 && tier.UpTo <= last {
				errs = append(errs, FieldError{
					Field:   tierField + ".up_to",
					Message: "tier bounds must be strictly ascending",
				})
			}
			last = tier.UpTo
		}
	}

	return errs
}

func validateBudgets(cfg *BudgetsConfig, usage *UsageConfig) []FieldError {
	var errs []FieldError

	if cfg.WarningThreshold <= 0 || cfg.WarningThreshold >= 1 {
		errs = append(errs, FieldError{
			Field:   "budgets.warning_threshold",
			Message: "warning threshold must be between 0.0 and 1.0 (exclusive)",
		})
	}
	if cfg.CriticalThreshold <= cfg.WarningThreshold || cfg.CriticalThreshold > 1 {
		errs = append(errs, FieldError{
			Field:   "budgets.critical_threshold",
			Message: "critical threshold must be above the warning threshold and at most 1.0",
		})
	}
	if cfg.AlertStateTTL <= alertWindow {
		errs = append(errs, FieldError{
			Field:   "budgets.alert_state_ttl",
			Message: fmt.Sprintf("alert state TTL must exceed the alerting window of %s", alertWindow),
		})
	}
	if usage.DailyTTL > 0 && cfg.AlertStateTTL >= usage.DailyTTL {
		errs = append(errs, FieldError{
			Field:   "budgets.alert_state_ttl",
			Message: "alert state TTL must be shorter than usage.daily_ttl",
		})
	}

	seen := make(map[string]bool)
	for i, limit := range cfg.Limits {
		field := fmt.Sprintf("budgets.limits[%d]", i)
		if !ValidServiceName(limit.Service) {
			errs = append(errs, FieldError{
				Field:   field + ".service",
				Message: fmt.Sprintf("invalid service name %q", limit.Service),
			})
		}
		if seen[limit.Service] {
			errs = append(errs, FieldError{
				Field:   field + ".service",
				Message: fmt.Sprintf("duplicate budget for service %q", limit.Service),
			})
		}
		seen[limit.Service] = true
		if limit.MonthlyLimit <= 0 {
			errs = append(errs, FieldError{
				Field:   field + ".monthly_limit",
				Message: "monthly limit must be positive",
			})
		}
	}

	return errs
}

func validateHealth(cfg *HealthConfig) []FieldError {
	var errs []FieldError

	if cfg.Retention <= 0 {
		errs = append(errs, FieldError{
			Field:   "health.retention",
			Message: "retention must be positive",
		})
	}
	if cfg.MaxRecords <= 0 {
		errs = append(errs, FieldError{
			Field:   "health.max_records",
			Message: "max records must be positive",
		})
	}
	if cfg.StaleAfter <= 0 {
		errs = append(errs, FieldError{
			Field:   "health.stale_after",
			Message: "stale after must be positive",
		})
	}
	for i, name := range cfg.Services {
		if !ValidServiceName(name) {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("health.services[%d]", i),
				Message: fmt.Sprintf("invalid service name %q", name),
			})
		}
	}
	for i, name := range cfg.CriticalServices {
		if !ValidServiceName(name) {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("health.critical_services[%d]", i),
				Message: fmt.Sprintf("invalid service name %q", name),
			})
		}
	}

	return errs
}

func validateNotify(cfg *NotifyConfig) []FieldError {
	var errs []FieldError

	if cfg.Webhook.URL != "" {
		u, err := url.Parse(cfg.Webhook.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   "notify.webhook.url",
				Message: "webhook URL must be an absolute http(s) URL",
			})
		}
	}
	if cfg.Webhook.Timeout < 0 {
		errs = append(errs, FieldError{
			Field:   "notify.webhook.timeout",
			Message: "webhook timeout cannot be negative",
		})
	}

	return errs
}

func validateStatus(cfg *StatusConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "status.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "status.listen_address",
			Message: fmt.Sprintf("invalid listen address %q: %v", cfg.ListenAddress, err),
		})
	}
	if cfg.ReadTimeout < 0 || cfg.WriteTimeout < 0 || cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "status",
			Message: "timeouts cannot be negative",
		})
	}

	return errs
}

func validateScheduler(cfg *SchedulerConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return errs
	}

	if _, err := cron.ParseStandard(cfg.BudgetCheckSchedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "scheduler.budget_check_schedule",
			Message: fmt.Sprintf("invalid cron schedule %q: %v", cfg.BudgetCheckSchedule, err),
		})
	}
	if cfg.CriticalValidationSchedule != "" {
		if _, err := cron.ParseStandard(cfg.CriticalValidationSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "scheduler.critical_validation_schedule",
				Message: fmt.Sprintf("invalid cron schedule %q: %v", cfg.CriticalValidationSchedule, err),
			})
		}
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q: must be 'json', 'text', or 'console'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.IsEnabled() && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with '/'",
		})
	}

	tracing := cfg.Tracing
	switch tracing.Sampler {
	case "always", "never", "ratio":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", tracing.Sampler),
		})
	}
	if tracing.SampleRatio < 0 || tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}
	if tracing.Enabled && tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "endpoint is required when tracing is enabled",
		})
	}

	return errs
}
