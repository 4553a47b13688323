// Package config provides configuration management for Sentinel.
//
// This package handles loading and validating configuration from YAML files
// with environment variable overrides. Store credentials are deliberately not
// part of this configuration: they are resolved per deployment environment by
// package environment.
//
// # Configuration Loading
//
// Configuration can be loaded in three ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("sentinel.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("sentinel.yaml")
//
//  3. From a YAML file if it exists, defaults otherwise:
//     cfg, err := config.LoadOrDefault("sentinel.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention SENTINEL_SECTION_FIELD.
// For example:
//
//   - SENTINEL_STATUS_LISTEN_ADDRESS overrides status.listen_address
//   - SENTINEL_STATUS_INGEST_TOKENS overrides status.ingest_tokens (comma separated)
//   - SENTINEL_HEALTH_CRITICAL_SERVICES overrides health.critical_services
//   - SENTINEL_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// The loaded *Config is passed explicitly to the components that need it and
// is never modified afterwards.
//
// # Example Configuration
//
//	pricing:
//	  geocoding:
//	    free_units: 10000
//	    tiers:
//	      - up_to: 90000
//	        unit_cost: 0.005
//	      - unit_cost: 0.004
//
//	budgets:
//	  limits:
//	    - service: geocoding
//	      monthly_limit: 100
//
//	health:
//	  services: [geocoding, payments]
//	  critical_services: [payments]
//
//	notify:
//	  webhook:
//	    url: "https://hooks.example.com/budget"
package config
