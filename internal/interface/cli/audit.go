package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vespa-hub/vespa-results/internal/domain/results"
	"github.com/vespa-hub/vespa-results/internal/infrastructure/persistence/postgres"
)

// AuditCmd lists recent CSV exports.
func AuditCmd() *cobra.Command {
	var (
		establishment string
		limit         int
		output        string
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List recent CSV exports from the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}
			conn, _, err := connectAuditDB(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			entries, err := postgres.NewExportAuditRepository(conn).Recent(cmd.Context(), establishment, limit)
			if err != nil {
				return err
			}
			if output == "json" {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			renderAudit(cmd.OutOrStdout(), entries)
			return nil
		},
	}

	cmd.Flags().StringVar(&establishment, "establishment", "", "only exports for this establishment id")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table or json")

	return cmd
}

func renderAudit(w io.Writer, entries []results.ExportAudit) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "no exports recorded")
		return
	}
	for _, e := range entries {
		viewer := e.ViewerHash
		if len(viewer) > 16 {
			viewer = viewer[:16]
		}
		fmt.Fprintf(w, "%s  %-16s  %-24s %6d rows\n",
			e.ExportedAt.Format("2006-01-02 15:04"), viewer, e.EstablishmentID, e.RowCount)
	}
}
