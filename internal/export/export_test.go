package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/edstats/itemgrid/internal/attempts"
	"github.com/edstats/itemgrid/internal/calc"
	"github.com/edstats/itemgrid/internal/event"
	"github.com/edstats/itemgrid/internal/ingest"
	"github.com/edstats/itemgrid/internal/timing"
)

func TestMatrix_DenseShape(t *testing.T) {
	table := calc.NewTable("n_attempts")
	mustSet(t, table, "lA", "item-1", "n_attempts", "2")
	mustSet(t, table, "lB", "item-2", "n_attempts", "1")

	columns := Columns(map[string]struct{}{"item-1": {}, "item-2": {}})
	var buf bytes.Buffer
	if err := Matrix(&buf, table, "n_attempts", columns); err != nil {
		t.Fatalf("Matrix: %v", err)
	}

	want := "learner,item-1,item-2\nlA,2,NA\nlB,NA,1\n"
	if buf.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestMatrix_Idempotent(t *testing.T) {
	table := calc.NewTable("first_attempt")
	for _, l := range []string{"zeta", "alpha"} {
		for _, i := range []string{"item-b", "item-a"} {
			mustSet(t, table, l, i, "first_attempt", "1462224600.25")
		}
	}
	columns := Columns(map[string]struct{}{"item-b": {}, "item-a": {}})

	var first, second bytes.Buffer
	if err := Matrix(&first, table, "first_attempt", columns); err != nil {
		t.Fatal(err)
	}
	if err := Matrix(&second, table, "first_attempt", columns); err != nil {
		t.Fatal(err)
	}
	if first.String() != second.String() {
		t.Error("re-rendering the same table produced different bytes")
	}
	if !strings.HasPrefix(first.String(), "learner,item-a,item-b\nalpha,") {
		t.Errorf("columns/rows not sorted:\n%s", first.String())
	}
}

func TestItemMeta(t *testing.T) {
	meta := map[string]attempts.Meta{
		"item-1": {Page: "page-1", DisplayName: "Problem One"},
	}
	var buf bytes.Buffer
	if err := ItemMeta(&buf, meta, []string{"item-2", "item-1"}); err != nil {
		t.Fatalf("ItemMeta: %v", err)
	}
	want := "problem,page,resource_display_name\nitem-1,page-1,Problem One\nitem-2,NA,NA\n"
	if buf.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestReport_EnumeratesAllBuckets(t *testing.T) {
	a := &Audit{
		Course: "Engineering_QMSE-02",
		Tally:  ingest.NewTally(),
		Negative: []timing.Pair{
			{Learner: "lQ", Item: "item-bad"},
		},
		Dropped:  []timing.Pair{{Learner: "lM", Item: "item-z"}},
		Learners: 3,
		Items:    7,
	}
	a.Tally.Accepted[event.TypeCheck] = 12

	var buf bytes.Buffer
	if err := Report(&buf, a); err != nil {
		t.Fatalf("Report: %v", err)
	}
	out := buf.String()

	// Zero-count buckets still appear.
	for _, typ := range event.KnownTypes() {
		if !strings.Contains(out, string(typ)) {
			t.Errorf("report missing bucket %q:\n%s", typ, out)
		}
	}
	for _, needle := range []string{"lQ", "item-bad", "lM", "item-z", "3 learners x 7 items"} {
		if !strings.Contains(out, needle) {
			t.Errorf("report missing %q:\n%s", needle, out)
		}
	}
}

func mustSet(t *testing.T, table *calc.Table, learner, item, field, value string) {
	t.Helper()
	if err := table.Set(learner, item, field, value); err != nil {
		t.Fatal(err)
	}
}
