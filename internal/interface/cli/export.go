package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vespa-hub/vespa-results/internal/application/command"
	"github.com/vespa-hub/vespa-results/internal/infrastructure/export"
)

// ExportCmd writes every student matching the filters to a CSV file.
func ExportCmd() *cobra.Command {
	var (
		who  viewerFlags
		view viewFlags
		out  string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a viewer's filtered results as CSV",
		Long: `export loads the viewer's results and writes every student matching the
filters, ignoring pagination, in the chosen sort order.

The default file name is vespa-results-<date>.csv; use --out - for stdout.`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			st, err := view.state()
			if err != nil {
				return err
			}

			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			app, err := Bootstrap(ctx, cfg, log, bootstrapOptions{cache: true, audit: true})
			if err != nil {
				return err
			}
			defer app.Close()

			v := who.viewer()
			if _, err := app.LoadHandler().Handle(ctx, command.LoadResultsCommand{Viewer: v}); err != nil {
				return err
			}

			path := out
			if path == "" {
				path = export.Filename(time.Now().Format("2006-01-02"))
			}

			var w io.Writer = cmd.OutOrStdout()
			if path != "-" {
				f, ferr := os.Create(path)
				if ferr != nil {
					return fmt.Errorf("create %s: %w", path, ferr)
				}
				defer func() {
					if cerr := f.Close(); cerr != nil && err == nil {
						err = fmt.Errorf("close %s: %w", path, cerr)
					}
				}()
				w = f
			}

			res, err := app.ExportHandler().Handle(ctx, command.ExportResultsCommand{
				ViewerEmail: v.Email,
				State:       &st,
			}, w)
			if err != nil {
				return err
			}
			if path != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d students to %s\n", res.Rows, path)
			}
			return nil
		},
	}

	who.register(cmd)
	view.register(cmd, false)
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, - for stdout")

	return cmd
}
