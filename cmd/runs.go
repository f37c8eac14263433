package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/edstats/itemgrid/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded processing runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := resolveDBPath(cmd)
		if err != nil {
			return fmt.Errorf("resolve DB path: %w", err)
		}
		st, err := store.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := st.ListRuns(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "STARTED\tCOURSE\tACCEPTED\tMISSING\tIGNORED\tUNDEPLOYED\tLEARNERS\tITEMS\tNEGATIVE\tDROPPED\tSTATUS")
		for _, r := range runs {
			status := "ok"
			if !r.Success {
				status = "failed"
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
				r.StartedAt.Local().Format("2006-01-02 15:04"),
				r.Course,
				r.Accepted, r.Missing, r.Ignored, r.Undeployed,
				r.Learners, r.Items, r.Negative, r.Dropped,
				status,
			)
		}
		return tw.Flush()
	},
}

func init() {
	runsCmd.Flags().Int("limit", 20, "Maximum number of runs to list")
}
