package main

import (
	"strconv"

	"github.com/spf13/cobra"
	"mercator-hq/sentinel/pkg/cli"
	"mercator-hq/sentinel/pkg/environment"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Show the resolved environment and store",
	Long: `Show the environment this process resolves to, its key prefix, and
whether a store is configured and reachable. Credentials are never printed;
the store URL is shown with its password masked.`,
	Args: usageArgs(cobra.NoArgs),
	RunE: runEnv,
}

func init() {
	rootCmd.AddCommand(envCmd)
}

// envInfo is the output of the env command.
type envInfo struct {
	Kind        string `json:"kind"`
	Identifier  string `json:"identifier"`
	Prefix      string `json:"prefix"`
	Available   bool   `json:"available"`
	SharedStore bool   `json:"shared_store"`
	Store       string `json:"store,omitempty"`
	Reachable   bool   `json:"reachable"`
	Error       string `json:"error,omitempty"`
}

func (e envInfo) Table() cli.Table {
	return cli.Table{
		Headers: []string{"KIND", "IDENTIFIER", "PREFIX", "AVAILABLE", "SHARED", "STORE", "REACHABLE"},
		Rows: [][]string{{
			e.Kind,
			e.Identifier,
			e.Prefix,
			strconv.FormatBool(e.Available),
			strconv.FormatBool(e.SharedStore),
			e.Store,
			strconv.FormatBool(e.Reachable),
		}},
	}
}

func runEnv(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	info := envInfo{
		Kind:        string(a.env.Kind),
		Identifier:  a.env.Identifier,
		Prefix:      a.env.KeyPrefix,
		Available:   a.store.Available(),
		SharedStore: a.env.Credentials.Shared,
		Store:       environment.RedactURL(a.env.Credentials.URL),
	}
	if a.store.Available() {
		if err := a.store.Ping(commandContext(cmd)); err != nil {
			info.Error = err.Error()
		} else {
			info.Reachable = true
		}
	}
	return printResult(cmd, info)
}
