package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"mercator-hq/sentinel/pkg/budget"
	"mercator-hq/sentinel/pkg/cli"
	"mercator-hq/sentinel/pkg/config"
	"mercator-hq/sentinel/pkg/costs"
	"mercator-hq/sentinel/pkg/environment"
	"mercator-hq/sentinel/pkg/health"
	"mercator-hq/sentinel/pkg/kvstore"
	"mercator-hq/sentinel/pkg/notify"
	"mercator-hq/sentinel/pkg/telemetry/logging"
	"mercator-hq/sentinel/pkg/telemetry/metrics"
	"mercator-hq/sentinel/pkg/telemetry/tracing"
	"mercator-hq/sentinel/pkg/usage"
)

// closeTimeout bounds the flush of spans and store connections on exit.
const closeTimeout = 5 * time.Second

// clock is the time source of every component. Tests replace it.
var clock = time.Now

// app holds the components shared by every command.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	env     environment.Context
	metrics *metrics.Collector
	tracer  *tracing.Tracer
	store   *kvstore.Client
	usage   *usage.Recorder
	costs   *costs.Estimator
	budgets *budget.Engine
	health  *health.Tracker
}

// loadConfig reads the configuration file. A missing file is only an error
// when --config was given explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cmd.Flags().Changed("config") {
		cfg, err = config.LoadConfigWithEnvOverrides(cfgFile)
	} else {
		cfg, err = config.LoadOrDefault(cfgFile)
	}
	if err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	return cfg, nil
}

// newApp resolves the environment and wires the store, the domain
// components and their telemetry. Logs go to stderr so command output on
// stdout stays machine readable.
func newApp(cmd *cobra.Command, cfg *config.Config) (*app, error) {
	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging, cmd.ErrOrStderr()))
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.tracing", err.Error())
	}

	env := environment.FromOS(logger)
	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	storeOpts := kvstore.OptionsFromConfig(cfg.Store)
	storeOpts.Logger = logger
	storeOpts.Observer = collector
	store, err := kvstore.Connect(env, cfg.Store, storeOpts)
	if err != nil {
		_ = tracer.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	recorder := usage.NewRecorder(store, cfg.Usage, usage.Options{Logger: logger, Observer: collector, Now: clock})
	estimator := costs.NewEstimator(recorder, cfg.Pricing, costs.Options{Logger: logger, Observer: collector})
	notifier := notify.FromConfig(cfg.Notify, logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		env:     env,
		metrics: collector,
		tracer:  tracer,
		store:   store,
		usage:   recorder,
		costs:   estimator,
		budgets: budget.NewEngine(store, estimator, notifier, cfg.Budgets, budget.Options{Logger: logger, Observer: collector, Now: clock}),
		health:  health.NewTracker(store, cfg.Health, health.Options{Logger: logger, Observer: collector, Now: clock}),
	}, nil
}

// setup loads the configuration and wires the application.
func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return newApp(cmd, cfg)
}

// Close flushes pending spans and closes the store.
func (a *app) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	return errors.Join(a.tracer.Shutdown(ctx), a.store.Close())
}

func (a *app) now() time.Time {
	return clock()
}

// commandContext returns the command context, or a background context when
// the command runs outside Execute (tests).
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
