package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vespa-hub/vespa-results/internal/application/command"
	"github.com/vespa-hub/vespa-results/internal/application/query"
	"github.com/vespa-hub/vespa-results/pkg/logger"
)

// FetchCmd loads a viewer's results and prints one page.
func FetchCmd() *cobra.Command {
	var (
		who     viewerFlags
		view    viewFlags
		output  string
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Load a viewer's results and print a page as a RAG table",
		Example: `  vespa fetch --email head@school.org --roles "Staff Admin"
  vespa fetch --email tutor@school.org --filter vision:1:<:4 --sort vision_1 --dir desc`,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := view.state()
			if err != nil {
				return err
			}
			if output != "table" && output != "json" {
				return fmt.Errorf("--output: must be table or json, got %q", output)
			}

			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			app, err := Bootstrap(ctx, cfg, log, bootstrapOptions{cache: true})
			if err != nil {
				return err
			}
			defer app.Close()

			v := who.viewer()
			loaded, err := app.LoadHandler().Handle(ctx, command.LoadResultsCommand{Viewer: v})
			if err != nil {
				return err
			}
			log.Debug("results loaded",
				logger.Viewer(v.Email),
				logger.StudentCount(loaded.Students),
				logger.Truncated(loaded.Truncated),
			)

			res, err := query.NewGetResultsPageHandler(app.Sessions).Handle(ctx, query.GetResultsPageQuery{
				ViewerEmail: v.Email,
				State:       &st,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if output == "json" {
				return writeJSON(out, res)
			}
			if err := RenderTable(out, res.Page, noColor); err != nil {
				return err
			}
			if res.Truncated {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: the record limit was reached; some students were not loaded")
			}
			return nil
		},
	}

	who.register(cmd)
	view.register(cmd, true)
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table or json")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable RAG colours")

	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
