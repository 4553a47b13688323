package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"mercator-hq/sentinel/pkg/cli"
	"mercator-hq/sentinel/pkg/config"
	"mercator-hq/sentinel/pkg/health"
	"mercator-hq/sentinel/pkg/telemetry/logging"
)

var healthFlags struct {
	window int
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Record and inspect service health",
}

var healthRecordCmd = &cobra.Command{
	Use:   "record <service> <ok|degraded|down> <latency-ms>",
	Short: "Record one health observation",
	Long: `Record the outcome of one probe of a monitored service.

When no store is configured for the environment the observation is dropped
and the command still succeeds, so probes never fail because of tracking.

Examples:
  sentinel health record maps ok 120
  sentinel health record geocoder down 0`,
	Args: usageArgs(cobra.ExactArgs(3)),
	RunE: runHealthRecord,
}

var healthUptimeCmd = &cobra.Command{
	Use:   "uptime <service>",
	Short: "Show the uptime of a service over a window",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE:  runHealthUptime,
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.AddCommand(healthRecordCmd)
	healthCmd.AddCommand(healthUptimeCmd)

	healthUptimeCmd.Flags().IntVar(&healthFlags.window, "window", 24, "window in hours")
}

// uptimeSummary renders an uptime summary as a single row.
type uptimeSummary health.UptimeSummary

func (u uptimeSummary) Table() cli.Table {
	return cli.Table{
		Headers: []string{"SERVICE", "WINDOW", "TOTAL", "OK", "DEGRADED", "DOWN", "UPTIME", "AVG LATENCY", "INCIDENTS"},
		Rows: [][]string{{
			u.Service,
			strconv.Itoa(u.WindowHours) + "h",
			strconv.Itoa(u.Total),
			strconv.Itoa(u.OK),
			strconv.Itoa(u.Degraded),
			strconv.Itoa(u.Down),
			strconv.FormatFloat(u.UptimePercent, 'f', 2, 64) + "%",
			strconv.FormatFloat(u.AvgLatencyMs, 'f', 1, 64) + "ms",
			strconv.Itoa(len(u.Incidents)),
		}},
	}
}

func runHealthRecord(cmd *cobra.Command, args []string) error {
	service := args[0]
	if !config.ValidServiceName(service) {
		return cli.NewConfigError("service", fmt.Sprintf("invalid service name %q", service))
	}
	status, err := health.ParseStatus(args[1])
	if err != nil {
		return cli.NewConfigError("status", err.Error())
	}
	latency, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil || latency < 0 {
		return cli.NewConfigError("latency", fmt.Sprintf("invalid latency %q: expected milliseconds >= 0", args[2]))
	}

	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := logging.WithService(commandContext(cmd), service)
	if err := a.health.RecordHealth(ctx, service, status, latency); err != nil {
		return cli.NewCommandError("health record", err)
	}

	if !a.store.Available() {
		fmt.Fprintf(cmd.ErrOrStderr(), "no store configured for %s, observation not recorded\n", a.env.Kind)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Recorded %s %s (%dms)\n", service, status, latency)
	return nil
}

func runHealthUptime(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	maxWindow := int(a.cfg.Health.Retention.Hours())
	if healthFlags.window <= 0 || healthFlags.window > maxWindow {
		return cli.NewConfigError("window", fmt.Sprintf("expected hours between 1 and %d", maxWindow))
	}

	summary, err := a.health.GetUptime(commandContext(cmd), args[0], healthFlags.window)
	if err != nil {
		return cli.NewCommandError("health uptime", err)
	}
	if outputFormat == string(cli.FormatJSON) {
		return printResult(cmd, summary)
	}
	return printResult(cmd, uptimeSummary(summary))
}
