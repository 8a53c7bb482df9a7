package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/segment-assigner/internal/export"
	"github.com/sells-group/segment-assigner/internal/model"
	"github.com/sells-group/segment-assigner/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stored assignment runs",
	Long:  "Commands for listing and viewing assignment runs saved in the run store.",
}

// openRunStore opens the store for the runs subcommands, which need one.
func openRunStore(cmd *cobra.Command) (store.Store, error) {
	if err := cfg.Validate("runs"); err != nil {
		return nil, err
	}
	return initStore(cmd.Context())
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List assignment runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openRunStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := st.ListRuns(cmd.Context(), limit)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openRunStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(cmd.Context(), args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs best --

var runsBestCmd = &cobra.Command{
	Use:   "best <run-id>",
	Short: "Print the best matches of a run as CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openRunStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(cmd.Context(), args[0])
		if err != nil {
			return eris.Wrap(err, "runs best")
		}
		best, err := st.BestMatches(cmd.Context(), run.ID)
		if err != nil {
			return eris.Wrap(err, "runs best")
		}

		ids := export.IDColumns{Point: run.Params.PointIDColumn, Line: run.Params.LineIDColumn}
		return export.WriteBestMatchesCSV(os.Stdout, ids, best)
	},
}

func init() {
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsBestCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a table of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tEPSG\tPOINTS\tLINES\tCANDIDATES\tBEST\tCREATED\tERROR")
	_, _ = fmt.Fprintln(w, "--\t------\t----\t------\t-----\t----------\t----\t-------\t-----")

	for _, r := range runs {
		msg := r.Error
		if len(msg) > 40 {
			msg = msg[:37] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
			truncateID(r.ID),
			r.Status,
			r.EPSG,
			r.PointCount,
			r.LineCount,
			r.CandidateCount,
			r.BestCount,
			r.CreatedAt.Format("2006-01-02 15:04"),
			msg,
		)
	}
	_ = w.Flush()
}

// truncateID shortens a UUID to its first 8 characters.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
