package main

import (
	"strconv"

	"github.com/spf13/cobra"
	"mercator-hq/sentinel/pkg/cli"
	"mercator-hq/sentinel/pkg/costs"
	"mercator-hq/sentinel/pkg/usage"
)

var usageFlags struct {
	month string
	day   string
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Inspect recorded usage and estimated cost",
}

var usageReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show monthly usage and estimated cost per service",
	Long: `Show the monthly call count and the estimated cost of every service that
recorded usage in the month.

Examples:
  # Current month
  sentinel usage report

  # A past month as CSV
  sentinel usage report --month 2025-01 --output csv`,
	Args: usageArgs(cobra.NoArgs),
	RunE: runUsageReport,
}

var usageDailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Show the call count of every endpoint for one day",
	Args:  usageArgs(cobra.NoArgs),
	RunE:  runUsageDaily,
}

func init() {
	rootCmd.AddCommand(usageCmd)
	usageCmd.AddCommand(usageReportCmd)
	usageCmd.AddCommand(usageDailyCmd)

	usageReportCmd.Flags().StringVar(&usageFlags.month, "month", "", "month to report (YYYY-MM, default: current month)")
	usageDailyCmd.Flags().StringVar(&usageFlags.day, "day", "", "day to report (YYYY-MM-DD, default: today)")
}

// costReport renders a cost report as a table with a total row.
type costReport costs.Report

func (r costReport) Table() cli.Table {
	t := cli.Table{Headers: []string{"SERVICE", "MONTH", "UNITS", "AMOUNT", "CURRENCY", "PRICED"}}
	for _, est := range r.Services {
		t.Rows = append(t.Rows, []string{
			est.Service,
			est.Month,
			strconv.FormatInt(est.Units, 10),
			formatAmount(est.Amount),
			est.Currency,
			strconv.FormatBool(est.Priced),
		})
	}
	t.Rows = append(t.Rows, []string{"TOTAL", r.Month, "", formatAmount(r.Total), "", ""})
	return t
}

// dailyUsage renders a usage snapshot as one row per endpoint.
type dailyUsage usage.Snapshot

func (d dailyUsage) Table() cli.Table {
	t := cli.Table{Headers: []string{"SERVICE", "ENDPOINT", "DAY", "CALLS"}}
	for _, service := range sortedKeys(d.Daily) {
		endpoints := d.Daily[service]
		for _, endpoint := range sortedKeys(endpoints) {
			t.Rows = append(t.Rows, []string{service, endpoint, d.Day, strconv.FormatInt(endpoints[endpoint], 10)})
		}
	}
	return t
}

func runUsageReport(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	month := usageFlags.month
	if month == "" {
		month = usage.Month(a.now())
	} else if _, err := usage.ParseMonth(month); err != nil {
		return cli.NewConfigError("month", "expected YYYY-MM")
	}

	report, err := a.costs.Report(commandContext(cmd), month)
	if err != nil {
		return cli.NewCommandError("usage report", err)
	}
	return printResult(cmd, costReport(report))
}

func runUsageDaily(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	now := a.now()
	day := usageFlags.day
	if day == "" {
		day = usage.Day(now)
	} else if _, err := usage.ParseDay(day); err != nil {
		return cli.NewConfigError("day", "expected YYYY-MM-DD")
	}

	snap, err := a.usage.Snapshot(commandContext(cmd), day, usage.Month(now))
	if err != nil {
		return cli.NewCommandError("usage daily", err)
	}
	return printResult(cmd, dailyUsage(snap))
}
