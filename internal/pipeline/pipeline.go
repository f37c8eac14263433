// Package pipeline orchestrates one course's processing run end to end:
// definitions to visibility, events to attempt and timing statistics, then
// atomic materialization of the export directory.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/edstats/itemgrid/internal/attempts"
	"github.com/edstats/itemgrid/internal/calc"
	"github.com/edstats/itemgrid/internal/config"
	"github.com/edstats/itemgrid/internal/export"
	"github.com/edstats/itemgrid/internal/ingest"
	"github.com/edstats/itemgrid/internal/timing"
	"github.com/edstats/itemgrid/internal/visibility"
)

// metaFile is the item-metadata table's name inside the export directory.
const metaFile = "problem_meta.csv"

// reportFile is the audit report's name inside the export directory.
const reportFile = "report.txt"

// Run processes one course from raw CSV sources to a fully materialized
// export directory and returns the run's audit. Any error leaves the final
// export directory untouched.
func Run(cfg config.Config, course string, log *zap.SugaredLogger) (*export.Audit, error) {
	vis, err := visibility.LoadCSV(cfg.DefinitionsPath(course),
		cfg.Visibility.AttemptSuffixLen, cfg.Visibility.TimingSuffixLen)
	if err != nil {
		return nil, err
	}
	log.Infow("loaded item definitions", "course", course, "deployed", vis.Len())

	sub, err := ingest.ReadSubmissions(cfg.SubmissionsPath(course), vis,
		cfg.Visibility.AttemptSuffixLen, log)
	if err != nil {
		return nil, err
	}

	att, meta := attempts.Aggregate(sub.Buckets)
	log.Infow("aggregated attempts", "course", course, "pairs", att.Len())

	browse, browseTally, err := ingest.ReadBrowse(cfg.BrowsePath(course), log)
	if err != nil {
		return nil, err
	}
	sub.Tally.Merge(browseTally)

	res := timing.Correlate(browse, att, vis, timing.Config{
		Segment:   cfg.Timing.BrowseSegment,
		SuffixLen: cfg.Visibility.TimingSuffixLen,
	}, log)
	log.Infow("correlated timing", "course", course,
		"pairs", res.Len(), "negative", len(res.Negative), "dropped", len(res.Dropped))

	table := calc.NewTable(append(attempts.AttemptFields(), timing.TimingFields()...)...)
	if err := attempts.Fill(table, att); err != nil {
		return nil, fmt.Errorf("fill attempt statistics: %w", err)
	}
	if err := timing.Fill(table, res); err != nil {
		return nil, fmt.Errorf("fill timing statistics: %w", err)
	}

	columns := export.Columns(sub.Problems)
	audit := &export.Audit{
		Course:   course,
		Tally:    sub.Tally,
		Negative: res.Negative,
		Dropped:  res.Dropped,
		Learners: len(table.Learners()),
		Items:    len(columns),
	}

	if err := materialize(cfg.ExportPath(course), table, columns, meta, audit); err != nil {
		return nil, err
	}
	return audit, nil
}

// materialize writes every output into a sibling staging directory and
// renames it into place only when all writes succeed, so a failed run never
// leaves a half-written export behind.
func materialize(dir string, table *calc.Table, columns []string, meta map[string]attempts.Meta, audit *export.Audit) error {
	staging := dir + ".partial"
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("clear staging dir: %w", err)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := export.WriteMatrices(staging, table, columns); err != nil {
		return err
	}
	if err := writeTo(filepath.Join(staging, metaFile), func(f *os.File) error {
		return export.ItemMeta(f, meta, columns)
	}); err != nil {
		return err
	}
	if err := writeTo(filepath.Join(staging, reportFile), func(f *os.File) error {
		return export.Report(f, audit)
	}); err != nil {
		return err
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear export dir: %w", err)
	}
	if err := os.Rename(staging, dir); err != nil {
		return fmt.Errorf("move export into place: %w", err)
	}
	return nil
}

func writeTo(path string, fn func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	err = fn(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
