// Package attempts aggregates each learner-item pair's server-confirmed
// submission history into a fixed-shape attempt record.
package attempts

import (
	"sort"

	"github.com/edstats/itemgrid/internal/calc"
	"github.com/edstats/itemgrid/internal/event"
	"github.com/edstats/itemgrid/internal/ingest"
)

// Slots is the number of tracked attempt positions in the extended variant.
const Slots = 5

// metaPlaceholder stands in for page/display metadata when a pair has no
// browser-origin events to capture it from.
const metaPlaceholder = "NA"

// Record is the fixed-shape attempt summary for one (learner, item) pair.
// Times and Grades are sorted ascending by timestamp and always the same
// length. Invariants: len(Times) >= 1 and Times[0] <= Times[len-1].
type Record struct {
	Learner string
	Item    string
	Times   []float64
	Grades  []string
}

// First returns the first attempt timestamp.
func (r *Record) First() float64 { return r.Times[0] }

// Last returns the last attempt timestamp.
func (r *Record) Last() float64 { return r.Times[len(r.Times)-1] }

// Count returns the number of retained server-side submissions.
func (r *Record) Count() int { return len(r.Times) }

// FirstGrade returns the grade paired with the first attempt.
func (r *Record) FirstGrade() string { return r.Grades[0] }

// LastGrade returns the grade paired with the last attempt.
func (r *Record) LastGrade() string { return r.Grades[len(r.Grades)-1] }

// Elapsed returns the time spent attempting, last minus first.
func (r *Record) Elapsed() float64 { return r.Last() - r.First() }

// SlotTime returns the 1-based slot's attempt timestamp. A learner with
// fewer attempts than slots still reports a defined value for every slot:
// missing positions saturate to the last attempt, not the previous slot.
func (r *Record) SlotTime(slot int) float64 {
	if slot < 1 {
		slot = 1
	}
	if slot > len(r.Times) {
		return r.Last()
	}
	return r.Times[slot-1]
}

// SlotGrade returns the 1-based slot's grade under the same saturation rule.
func (r *Record) SlotGrade(slot int) string {
	if slot < 1 {
		slot = 1
	}
	if slot > len(r.Grades) {
		return r.LastGrade()
	}
	return r.Grades[slot-1]
}

// Meta is the human-readable item metadata captured at the first
// browser-origin event, used for export only.
type Meta struct {
	Page        string
	DisplayName string
}

// Records indexes attempt records by learner then item.
type Records struct {
	byLearner map[string]map[string]*Record
}

// NewRecords returns an empty record set.
func NewRecords() *Records {
	return &Records{byLearner: make(map[string]map[string]*Record)}
}

// Get looks up one pair's record.
func (rs *Records) Get(learner, item string) (*Record, bool) {
	r, ok := rs.byLearner[learner][item]
	return r, ok
}

func (rs *Records) put(r *Record) {
	items, ok := rs.byLearner[r.Learner]
	if !ok {
		items = make(map[string]*Record)
		rs.byLearner[r.Learner] = items
	}
	items[r.Item] = r
}

// DeletePair removes one pair; learners left empty disappear entirely.
func (rs *Records) DeletePair(learner, item string) {
	items, ok := rs.byLearner[learner]
	if !ok {
		return
	}
	delete(items, item)
	if len(items) == 0 {
		delete(rs.byLearner, learner)
	}
}

// DeleteLearner removes a learner and all their pairs.
func (rs *Records) DeleteLearner(learner string) {
	delete(rs.byLearner, learner)
}

// Learners returns all learner IDs, sorted.
func (rs *Records) Learners() []string {
	out := make([]string, 0, len(rs.byLearner))
	for l := range rs.byLearner {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Items returns one learner's item IDs, sorted.
func (rs *Records) Items(learner string) []string {
	items := rs.byLearner[learner]
	out := make([]string, 0, len(items))
	for i := range items {
		out = append(out, i)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of pairs held.
func (rs *Records) Len() int {
	n := 0
	for _, items := range rs.byLearner {
		n += len(items)
	}
	return n
}

// Aggregate builds one Record per (learner, item) pair holding at least one
// server-origin submission; pairs with none produce nothing, silently.
// Browser-origin events contribute only item metadata, captured once per item
// at its earliest browser event.
func Aggregate(buckets ingest.Buckets) (*Records, map[string]Meta) {
	records := NewRecords()

	for learner, items := range buckets.Server {
		for item, events := range items {
			sorted := sortByTime(events)
			rec := &Record{
				Learner: learner,
				Item:    item,
				Times:   make([]float64, len(sorted)),
				Grades:  make([]string, len(sorted)),
			}
			for i, ev := range sorted {
				rec.Times[i] = ev.Time
				rec.Grades[i] = ev.Grade
			}
			records.put(rec)
		}
	}

	meta := make(map[string]Meta)
	seenAt := make(map[string]float64)
	for _, items := range buckets.Browser {
		for item, events := range items {
			first := sortByTime(events)[0]
			if at, ok := seenAt[item]; ok && at <= first.Time {
				continue
			}
			seenAt[item] = first.Time
			meta[item] = Meta{Page: first.Page, DisplayName: first.DisplayName}
		}
	}
	return records, meta
}

// sortByTime returns a stable time-ascending copy; ties keep source order.
func sortByTime(events []event.Event) []event.Event {
	sorted := append([]event.Event(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })
	return sorted
}

// MetaFor returns the metadata for an item, with placeholders when no
// browser-origin event supplied any.
func MetaFor(meta map[string]Meta, item string) Meta {
	m, ok := meta[item]
	if !ok {
		return Meta{Page: metaPlaceholder, DisplayName: metaPlaceholder}
	}
	if m.Page == "" {
		m.Page = metaPlaceholder
	}
	if m.DisplayName == "" {
		m.DisplayName = metaPlaceholder
	}
	return m
}

// AttemptFields is the closed statistic name set attempt records export.
func AttemptFields() []string {
	return []string{
		"first_attempt",
		"second_attempt",
		"third_attempt",
		"fourth_attempt",
		"fifth_attempt",
		"last_attempt",
		"n_attempts",
		"first_grade",
		"second_grade",
		"third_grade",
		"fourth_grade",
		"fifth_grade",
		"last_grade",
		"time_spent_attempting",
	}
}

var slotTimeFields = []string{"first_attempt", "second_attempt", "third_attempt", "fourth_attempt", "fifth_attempt"}
var slotGradeFields = []string{"first_grade", "second_grade", "third_grade", "fourth_grade", "fifth_grade"}

// Fill writes every surviving record's statistics into the aggregation table.
// Called after timing correlation so quarantined pairs never export.
func Fill(table *calc.Table, records *Records) error {
	for _, learner := range records.Learners() {
		for _, item := range records.Items(learner) {
			rec, _ := records.Get(learner, item)
			for slot := 1; slot <= Slots; slot++ {
				if err := table.Set(learner, item, slotTimeFields[slot-1], calc.Seconds(rec.SlotTime(slot))); err != nil {
					return err
				}
				if err := table.Set(learner, item, slotGradeFields[slot-1], rec.SlotGrade(slot)); err != nil {
					return err
				}
			}
			if err := table.Set(learner, item, "last_attempt", calc.Seconds(rec.Last())); err != nil {
				return err
			}
			if err := table.Set(learner, item, "n_attempts", calc.Count(rec.Count())); err != nil {
				return err
			}
			if err := table.Set(learner, item, "last_grade", rec.LastGrade()); err != nil {
				return err
			}
			if err := table.Set(learner, item, "time_spent_attempting", calc.Seconds(rec.Elapsed())); err != nil {
				return err
			}
		}
	}
	return nil
}
