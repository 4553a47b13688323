/*
Package cli provides command-line interface utilities for Sentinel.

The cli package includes output formatters, exit status mapping and signal
handling used by the sentinel command.

Output Formatting:

Command results render as text, JSON or CSV. Results implementing Tabular
are aligned in columns in text output and become rows in CSV output:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, report); err != nil {
		return err
	}

Exit Status:

Commands return errors; main maps them with ExitCode. A deployment gate
that finds unhealthy services returns an ExitError with code 1 so the
pipeline stops without printing a stack of wrapped errors.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()
*/
package cli
