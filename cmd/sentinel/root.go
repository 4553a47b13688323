package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"mercator-hq/sentinel/pkg/cli"
)

var (
	// Global flags
	cfgFile      string
	verbose      bool
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Sentinel - usage, cost, budget and health tracking for metered services",
	Long: `Sentinel records per-service usage counters and health observations in a
shared key-value store, estimates monthly spend from static pricing tables,
raises deduplicated budget alerts at 70% and 90% of each monthly budget, and
gates deployments on the health of critical services.

Every environment (production, preview, development, test) writes under its
own key prefix. When no store is configured for an environment, recording
becomes a no-op and deployment gates fail closed.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit status.
func Execute() int {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return cli.ExitCode(err)
}

func init() {
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &cli.UsageError{Err: err}
	})

	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format: text, json, csv")
}

// usageArgs makes positional argument errors exit like other usage errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return &cli.UsageError{Err: err}
		}
		return nil
	}
}

// printResult writes data to the command output in the --output format.
func printResult(cmd *cobra.Command, data any) error {
	format, err := cli.ParseOutputFormat(outputFormat)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), data)
}
