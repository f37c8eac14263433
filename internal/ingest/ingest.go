// Package ingest reads the submission and browse event sources into typed
// records, tracking accept/drop counters and bucketing submissions per
// learner-item pair.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/edstats/itemgrid/internal/event"
	"github.com/edstats/itemgrid/internal/visibility"
)

// Tally accumulates per-event-type counters for one source. Every known
// bucket is pre-seeded to zero so the audit report can always enumerate the
// full set.
type Tally struct {
	Accepted   map[event.Type]int
	Missing    map[event.Type]int
	Ignored    map[event.Type]int
	Undeployed map[event.Type]int
}

// NewTally returns a Tally with every known event-type bucket at zero.
func NewTally() *Tally {
	t := &Tally{
		Accepted:   make(map[event.Type]int),
		Missing:    make(map[event.Type]int),
		Ignored:    make(map[event.Type]int),
		Undeployed: make(map[event.Type]int),
	}
	for _, typ := range event.KnownTypes() {
		t.Accepted[typ] = 0
		t.Missing[typ] = 0
		t.Ignored[typ] = 0
		t.Undeployed[typ] = 0
	}
	return t
}

// Merge folds another tally's counts into t.
func (t *Tally) Merge(other *Tally) {
	if other == nil {
		return
	}
	for typ, n := range other.Accepted {
		t.Accepted[typ] += n
	}
	for typ, n := range other.Missing {
		t.Missing[typ] += n
	}
	for typ, n := range other.Ignored {
		t.Ignored[typ] += n
	}
	for typ, n := range other.Undeployed {
		t.Undeployed[typ] += n
	}
}

// Sum totals one counter map.
func Sum(m map[event.Type]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

// Buckets partitions accepted submission events per (learner, item) by
// origin. Browser-origin events contribute only item metadata; server-origin
// events carry the grade and attempt history.
type Buckets struct {
	Browser map[string]map[string][]event.Event
	Server  map[string]map[string][]event.Event
}

func newBuckets() Buckets {
	return Buckets{
		Browser: make(map[string]map[string][]event.Event),
		Server:  make(map[string]map[string][]event.Event),
	}
}

func add(m map[string]map[string][]event.Event, ev event.Event) {
	items, ok := m[ev.Learner]
	if !ok {
		items = make(map[string][]event.Event)
		m[ev.Learner] = items
	}
	items[ev.Item] = append(items[ev.Item], ev)
}

// SubmissionResult is the output of one pass over a submission-event source.
type SubmissionResult struct {
	Buckets  Buckets
	Problems map[string]struct{} // ProblemSet: all accepted item IDs
	Tally    *Tally
}

// ignoredType reports whether an event type is explicitly excluded from
// attempt computation. Resets, saves and failed checks are not
// submission-bearing; they are tracked for audit only.
func ignoredType(typ event.Type) bool {
	switch typ {
	case event.TypeReset, event.TypeSave, event.TypeCheckFail:
		return true
	}
	return false
}

// ReadSubmissions opens and fully consumes a submission-event CSV. When vis
// is non-nil, events whose normalized item ID does not match a deployed item
// by suffixLen-character suffix are dropped before bucketing, so undeployed
// items never reach the ProblemSet.
func ReadSubmissions(path string, vis *visibility.Set, suffixLen int, log *zap.SugaredLogger) (*SubmissionResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open submission events: %w", err)
	}
	defer f.Close()
	return ReadSubmissionRows(f, vis, suffixLen, log)
}

// ReadSubmissionRows parses submission-event rows from r. Row-level faults
// are counted and skipped, never fatal; only an unusable header is.
func ReadSubmissionRows(r io.Reader, vis *visibility.Set, suffixLen int, log *zap.SugaredLogger) (*SubmissionResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	col, err := headerIndex(cr, "submission events",
		"anon_screen_name", "problem_id", "event_type", "event_source", "time")
	if err != nil {
		return nil, err
	}

	res := &SubmissionResult{
		Buckets:  newBuckets(),
		Problems: make(map[string]struct{}),
		Tally:    NewTally(),
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.Tally.Missing[event.TypeOther]++
			continue
		}

		typ := event.ClassifyType(field(row, col, "event_type"))

		learner := field(row, col, "anon_screen_name")
		rawID := field(row, col, "problem_id")
		ts, terr := event.ParseTime(field(row, col, "time"))
		if learner == "" || terr != nil {
			res.Tally.Missing[typ]++
			continue
		}

		// The raw ID might be '\N' or empty; keep track of what we lose.
		if len(rawID) < 3 {
			res.Tally.Missing[typ]++
			continue
		}
		item, ok := event.NormalizeSubmissionID(rawID)
		if !ok {
			res.Tally.Missing[typ]++
			log.Debugw("unresolvable item identifier", "learner", learner, "raw_id", rawID)
			continue
		}

		if ignoredType(typ) {
			res.Tally.Ignored[typ]++
			continue
		}

		if vis != nil && !vis.Contains(item, suffixLen) {
			res.Tally.Undeployed[typ]++
			log.Debugw("event for undeployed item", "learner", learner, "item", item)
			continue
		}

		res.Tally.Accepted[typ]++
		res.Problems[item] = struct{}{}

		ev := event.Event{
			Learner:     learner,
			Item:        item,
			Type:        typ,
			Origin:      event.ClassifyOrigin(field(row, col, "event_source")),
			Grade:       field(row, col, "success"),
			Page:        field(row, col, "page"),
			DisplayName: field(row, col, "resource_display_name"),
			Time:        ts,
		}
		if ev.Origin == event.OriginBrowser {
			add(res.Buckets.Browser, ev)
		} else {
			add(res.Buckets.Server, ev)
		}
	}
	return res, nil
}

// ReadBrowse opens and fully consumes a browse-event CSV. Events come back
// as a flat slice; the timing correlator sorts them once by timestamp.
func ReadBrowse(path string, log *zap.SugaredLogger) ([]event.BrowseEvent, *Tally, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open browse events: %w", err)
	}
	defer f.Close()
	return ReadBrowseRows(f, log)
}

// ReadBrowseRows parses browse-event rows from r.
func ReadBrowseRows(r io.Reader, log *zap.SugaredLogger) ([]event.BrowseEvent, *Tally, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	col, err := headerIndex(cr, "browse events", "anon_screen_name", "event_type", "time")
	if err != nil {
		return nil, nil, err
	}

	tally := NewTally()
	var events []event.BrowseEvent
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			tally.Missing[event.TypePageView]++
			continue
		}
		learner := field(row, col, "anon_screen_name")
		path := field(row, col, "event_type")
		ts, terr := event.ParseTime(field(row, col, "time"))
		if learner == "" || path == "" || terr != nil {
			tally.Missing[event.TypePageView]++
			continue
		}
		tally.Accepted[event.TypePageView]++
		events = append(events, event.BrowseEvent{Learner: learner, EventPath: path, Time: ts})
	}
	return events, tally, nil
}

// headerIndex reads the CSV header and maps column names to positions,
// requiring the named columns to be present.
func headerIndex(cr *csv.Reader, source string, required ...string) (map[string]int, error) {
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", source, err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, name := range required {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("%s source missing %s column", source, name)
		}
	}
	return col, nil
}

func field(row []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
