// Package logging builds the structured logger of Sentinel.
//
// # Overview
//
// The logging package configures Go's standard log/slog package:
//   - JSON, text and console output formats
//   - Credential masking through slog.HandlerOptions.ReplaceAttr
//   - Request, service and trace identifiers taken from the context
//
// # Usage
//
//	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging, os.Stderr))
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
//	// Components scope their lines
//	log := logging.Component(opts.Logger, "budget")
//	log.WarnContext(ctx, "alert delivery failed", "service", service, "error", err)
//
// # Redaction
//
// Attributes named token, password, secret, authorization or api_key (and
// keys ending in _token, _password and so on) are replaced with "***".
// Connection URLs logged as store_url, url or endpoint keep their host but
// lose their password:
//
//	redis://:hunter2@cache:6379/0 → redis://:***@cache:6379/0
package logging
