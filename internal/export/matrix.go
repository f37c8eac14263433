// Package export renders the aggregated statistics as dense per-statistic
// matrices, an item-metadata table, and a run audit report.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/edstats/itemgrid/internal/calc"
)

// Sentinel marks a cell with no value: the learner never produced this
// statistic for this item.
const Sentinel = "NA"

// Columns freezes the ProblemSet into the sorted column universe shared by
// every exported matrix.
func Columns(problems map[string]struct{}) []string {
	out := make([]string, 0, len(problems))
	for p := range problems {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Matrix writes one dense table for a single statistic: first column the
// learner ID, one column per item, missing cells the sentinel. Learners with
// zero remaining items are omitted (the table never holds them).
func Matrix(w io.Writer, table *calc.Table, field string, columns []string) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, len(columns)+1)
	header = append(header, "learner")
	header = append(header, columns...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write matrix header: %w", err)
	}

	row := make([]string, len(header))
	for _, learner := range table.Learners() {
		row[0] = learner
		for i, item := range columns {
			v, ok := table.Get(learner, item, field)
			if !ok {
				v = Sentinel
			}
			row[i+1] = v
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write matrix row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteMatrices writes one <field>.csv per declared statistic into dir.
func WriteMatrices(dir string, table *calc.Table, columns []string) error {
	for _, field := range table.Fields() {
		path := filepath.Join(dir, field+".csv")
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		err = Matrix(f, table, field, columns)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("export %s: %w", field, err)
		}
	}
	return nil
}
