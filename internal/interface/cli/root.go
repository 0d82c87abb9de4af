// Package cli implements the vespa command line: the HTTP API server, one-off
// fetches rendered as a RAG table, CSV export and the audit database tools.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/vespa-hub/vespa-results/config"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	envFile  string
	logLevel string
}

// NewRootCmd builds the vespa command tree.
func NewRootCmd(version string) *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "vespa",
		Short: "VESPA student results viewer",
		Long: `vespa serves and renders VESPA questionnaire results from Knack.

A viewer is identified by email; the records they may see are resolved
from their roles before anything is fetched.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			optional := !cmd.Flags().Changed("env-file")
			if _, err := config.LoadEnvFile(g.envFile, optional); err != nil {
				return err
			}
			if g.logLevel != "" {
				return os.Setenv("LOG_LEVEL", g.logLevel)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	root.AddCommand(ServeCmd(version))
	root.AddCommand(FetchCmd())
	root.AddCommand(ExportCmd())
	root.AddCommand(MigrateCmd())
	root.AddCommand(AuditCmd())

	return root
}
