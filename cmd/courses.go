package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var coursesCmd = &cobra.Command{
	Use:   "courses",
	Short: "Show the resolved course list and expected input files",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		courses, err := cfg.ResolveCourses()
		if err != nil {
			return err
		}
		if len(courses) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No courses configured.")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "COURSE\tSOURCE\tPATH\tSTATUS")
		for _, course := range courses {
			sources := []struct{ name, path string }{
				{"submissions", cfg.SubmissionsPath(course)},
				{"browse", cfg.BrowsePath(course)},
				{"definitions", cfg.DefinitionsPath(course)},
			}
			for _, s := range sources {
				status := "ok"
				if _, err := os.Stat(s.path); err != nil {
					status = "missing"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", course, s.name, s.path, status)
			}
		}
		return tw.Flush()
	},
}
