package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"mercator-hq/sentinel/pkg/cli"
	"mercator-hq/sentinel/pkg/health"
)

var validateCmd = &cobra.Command{
	Use:   "validate-critical [service...]",
	Short: "Gate a deployment on the health of critical services",
	Long: `Validate that every critical service has a recent healthy record.

A service fails when its latest record is down or stale, when it has no
record at all, or when the store cannot be read. The command exits with
status 1 when any service fails, so it can gate a deployment pipeline.

Without arguments, the critical services of the configuration are checked.

Examples:
  # Validate the configured critical services
  sentinel validate-critical

  # Validate explicit services
  sentinel validate-critical maps geocoder`,
	RunE: runValidateCritical,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// validationResult renders a validation as a table of failures.
type validationResult health.Validation

func (v validationResult) Table() cli.Table {
	t := cli.Table{Headers: []string{"SERVICE", "REASON", "LAST STATUS", "LAST SEEN"}}
	for _, f := range v.Failures {
		status, seen := "-", "-"
		if f.Last != nil {
			status = string(f.Last.Status)
			seen = f.Last.Timestamp.Format("2006-01-02T15:04:05Z07:00")
		}
		t.Rows = append(t.Rows, []string{f.Service, f.Reason, status, seen})
	}
	return t
}

func runValidateCritical(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	services := args
	if len(services) == 0 {
		services = a.cfg.Health.CriticalServices
	}
	if len(services) == 0 {
		return cli.NewConfigError("health.critical_services", "no critical services configured or given")
	}

	v := a.health.ValidateCritical(commandContext(cmd), services)
	if v.AllHealthy {
		if outputFormat == string(cli.FormatJSON) {
			return printResult(cmd, v)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %d critical service(s) healthy\n", len(services))
		return nil
	}

	if err := printResult(cmd, validationResult(v)); err != nil {
		return err
	}

	failed := make([]string, 0, len(v.Failures))
	for _, f := range v.Failures {
		failed = append(failed, f.Service)
	}
	return &cli.ExitError{Code: 1, Message: "critical services unhealthy: " + strings.Join(failed, ", ")}
}
