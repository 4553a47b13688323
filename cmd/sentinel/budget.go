package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"mercator-hq/sentinel/pkg/budget"
	"mercator-hq/sentinel/pkg/cli"
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Check and inspect monthly budgets",
	Long: `Check the estimated monthly spend of each service against its budget.

A check raises a warning alert when spend reaches the warning threshold
(70% by default) and a critical alert at the critical threshold (90%). Each
alert is sent at most once per service and month, no matter how often or
from how many processes the check runs.`,
}

var budgetCheckCmd = &cobra.Command{
	Use:   "check [service]",
	Short: "Run budget checks once",
	Long: `Run the budget check of one service, or of every service with a budget.

Intended for external schedulers. The command exits with status 1 when a
check needs manual review because its alert state or notification failed.

Examples:
  # Check every budget
  sentinel budget check

  # Check one service, JSON output
  sentinel budget check maps --output json`,
	Args: usageArgs(cobra.MaximumNArgs(1)),
	RunE: runBudgetCheck,
}

var budgetStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current budget state without alerting",
	Args:  usageArgs(cobra.NoArgs),
	RunE:  runBudgetStatus,
}

func init() {
	rootCmd.AddCommand(budgetCmd)
	budgetCmd.AddCommand(budgetCheckCmd)
	budgetCmd.AddCommand(budgetStatusCmd)
}

// budgetResults renders check results as a table.
type budgetResults []budget.Result

func (r budgetResults) Table() cli.Table {
	t := cli.Table{Headers: []string{"SERVICE", "MONTH", "AMOUNT", "LIMIT", "RATIO", "LEVEL", "ACTION", "REASON"}}
	for _, res := range r {
		t.Rows = append(t.Rows, []string{
			res.Service,
			res.Month,
			formatAmount(res.Amount),
			formatAmount(res.Limit),
			formatPercent(res.Ratio),
			res.Target.String(),
			string(res.Action),
			res.Reason,
		})
	}
	return t
}

// budgetStatuses renders the budget state as a table.
type budgetStatuses []budget.Status

func (s budgetStatuses) Table() cli.Table {
	t := cli.Table{Headers: []string{"SERVICE", "MONTH", "AMOUNT", "LIMIT", "RATIO", "LEVEL", "AVAILABLE"}}
	for _, st := range s {
		t.Rows = append(t.Rows, []string{
			st.Service,
			st.Month,
			formatAmount(st.Amount),
			formatAmount(st.Limit),
			formatPercent(st.Ratio),
			st.Level,
			strconv.FormatBool(st.Available),
		})
	}
	return t
}

func runBudgetCheck(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := commandContext(cmd)

	var (
		results  []budget.Result
		checkErr error
	)
	if len(args) == 1 {
		var res budget.Result
		res, checkErr = a.budgets.CheckBudget(ctx, args[0])
		results = []budget.Result{res}
	} else {
		results, checkErr = a.budgets.CheckAll(ctx)
	}

	if err := printResult(cmd, budgetResults(results)); err != nil {
		return err
	}

	review := 0
	for _, res := range results {
		if res.NeedsReview {
			review++
		}
	}
	if review > 0 {
		return &cli.ExitError{Code: 1, Message: fmt.Sprintf("%d budget check(s) need manual review", review)}
	}
	if checkErr != nil {
		return cli.NewCommandError("budget check", checkErr)
	}
	return nil
}

func runBudgetStatus(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	return printResult(cmd, budgetStatuses(a.budgets.Status(commandContext(cmd))))
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatPercent(ratio float64) string {
	return strconv.FormatFloat(ratio*100, 'f', 1, 64) + "%"
}
