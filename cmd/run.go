package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/edstats/itemgrid/internal/config"
	"github.com/edstats/itemgrid/internal/export"
	"github.com/edstats/itemgrid/internal/ingest"
	"github.com/edstats/itemgrid/internal/pipeline"
	"github.com/edstats/itemgrid/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run [course ...]",
	Short: "Process courses into statistic matrices",
	Long: "Process each course's event exports into per-statistic learner-by-item\n" +
		"CSV matrices. With no arguments, every course in the configured course\n" +
		"list is processed.",
	RunE: runCourses,
}

func runCourses(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	log, flush, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer flush()

	courses, err := resolveCourseArgs(cfg, args)
	if err != nil {
		return err
	}
	if len(courses) == 0 {
		return fmt.Errorf("no courses configured; pass course IDs or set them in the config")
	}

	dbPath, err := resolveDBPath(cmd)
	if err != nil {
		return fmt.Errorf("resolve DB path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	failed := 0
	for _, course := range courses {
		started := time.Now()
		audit, err := pipeline.Run(cfg, course, log)
		if err != nil {
			// One bad course must not abort the batch.
			failed++
			log.Errorw("course failed", "course", course, "error", err)
			rec := store.RunRecord{
				ID:         store.NewRunID(),
				Course:     course,
				StartedAt:  started,
				FinishedAt: time.Now(),
			}
			if serr := st.RecordRun(ctx, rec, nil); serr != nil {
				log.Errorw("record failed run", "course", course, "error", serr)
			}
			continue
		}

		if err := export.Report(cmd.OutOrStdout(), audit); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout())

		if err := st.RecordRun(ctx, auditRecord(audit, started), anomalies(audit)); err != nil {
			log.Errorw("record run", "course", course, "error", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d courses failed", failed, len(courses))
	}
	return nil
}

// resolveCourseArgs prefers explicit arguments over the configured list.
func resolveCourseArgs(cfg config.Config, args []string) ([]string, error) {
	if len(args) == 0 {
		return cfg.ResolveCourses()
	}
	out := make([]string, 0, len(args))
	for _, a := range args {
		if c := config.SanitizeCourse(a); c != "" {
			out = append(out, c)
		}
	}
	return out, nil
}

func auditRecord(a *export.Audit, started time.Time) store.RunRecord {
	return store.RunRecord{
		ID:         store.NewRunID(),
		Course:     a.Course,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Accepted:   ingest.Sum(a.Tally.Accepted),
		Missing:    ingest.Sum(a.Tally.Missing),
		Ignored:    ingest.Sum(a.Tally.Ignored),
		Undeployed: ingest.Sum(a.Tally.Undeployed),
		Learners:   a.Learners,
		Items:      a.Items,
		Negative:   len(a.Negative),
		Dropped:    len(a.Dropped),
		Success:    true,
	}
}

func anomalies(a *export.Audit) []store.Anomaly {
	out := make([]store.Anomaly, 0, len(a.Negative)+len(a.Dropped))
	for _, p := range a.Negative {
		out = append(out, store.Anomaly{Learner: p.Learner, Item: p.Item, Kind: "negative"})
	}
	for _, p := range a.Dropped {
		out = append(out, store.Anomaly{Learner: p.Learner, Item: p.Item, Kind: "dropped"})
	}
	return out
}
