package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"github.com/edstats/itemgrid/internal/attempts"
)

// ItemMeta writes the item-metadata table: item ID, containing page and
// display name, sorted by item for stable output. Only items in columns are
// emitted, so quarantine-driven shrinkage of the ProblemSet carries through.
func ItemMeta(w io.Writer, meta map[string]attempts.Meta, columns []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"problem", "page", "resource_display_name"}); err != nil {
		return fmt.Errorf("write item-meta header: %w", err)
	}
	sorted := append([]string(nil), columns...)
	sort.Strings(sorted)
	for _, item := range sorted {
		m := attempts.MetaFor(meta, item)
		if err := cw.Write([]string{item, m.Page, m.DisplayName}); err != nil {
			return fmt.Errorf("write item-meta row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
