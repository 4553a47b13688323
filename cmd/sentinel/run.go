package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"mercator-hq/sentinel/pkg/cli"
	"mercator-hq/sentinel/pkg/health"
	"mercator-hq/sentinel/pkg/scheduler"
	"mercator-hq/sentinel/pkg/status"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
	scheduler     bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the status server and the scheduled checks",
	Long: `Start the read-only status server and, when enabled, the in-process
scheduler running budget checks and critical service validation.

The status server exposes usage, cost, budget and health state as JSON, the
liveness and readiness probes, Prometheus metrics, and the health report
ingestion endpoint used by probes.

Examples:
  # Start with default config
  sentinel run

  # Start with custom config
  sentinel run --config /etc/sentinel/config.yaml

  # Override listen address
  sentinel run --listen 0.0.0.0:8090

  # Validate config without starting the server
  sentinel run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
	runCmd.Flags().BoolVar(&runFlags.scheduler, "scheduler", false, "enable the scheduler regardless of configuration")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Status.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if runFlags.scheduler {
		cfg.Scheduler.Enabled = true
	}

	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	a, err := newApp(cmd, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Warn("shutdown incomplete", "error", err)
		}
	}()

	a.logger.Info("starting sentinel",
		"version", Version,
		"environment", string(a.env.Kind),
		"prefix", a.env.KeyPrefix,
		"store_available", a.store.Available(),
		"tracing", a.tracer.Enabled(),
	)

	checker := health.NewChecker(cfg.Health.CheckTimeout)
	// An unreachable store degrades the process; recording is best effort.
	checker.RegisterCheck("store", false, func(ctx context.Context) error {
		if !a.store.Available() {
			return errors.New("no store configured for this environment")
		}
		return a.store.Ping(ctx)
	})

	collector := a.metrics
	if !cfg.Telemetry.Metrics.IsEnabled() {
		collector = nil
	}

	if len(cfg.Status.IngestTokens) == 0 {
		a.logger.Warn("health report ingestion disabled, no status.ingest_tokens configured")
	}

	srv := status.NewServer(&cfg.Status, status.Deps{
		Store:            a.store,
		Usage:            a.usage,
		Costs:            a.costs,
		Budgets:          a.budgets,
		Health:           a.health,
		Checker:          checker,
		Metrics:          collector,
		MetricsPath:      cfg.Telemetry.Metrics.Path,
		HealthServices:   cfg.Health.Services,
		CriticalServices: cfg.Health.CriticalServices,
		MaxWindowHours:   int(cfg.Health.Retention.Hours()),
		Version:          Version,
		Commit:           GitCommit,
		BuildTime:        BuildDate,
		Logger:           a.logger,
		Now:              clock,
	})
	sched := scheduler.NewScheduler(cfg.Scheduler, a.budgets, a.health, cfg.Health.CriticalServices, a.logger)

	ctx, cancel := cli.SetupSignalHandler()
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx)
	})
	g.Go(func() error {
		if err := sched.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		// Wait for a running check before the store is closed
		sched.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		return cli.NewCommandError("run", err)
	}
	a.logger.Info("sentinel stopped")
	return nil
}
