// Package calc provides the constrained learner/item aggregation table that
// attempt and timing statistics accumulate into before matrix export.
package calc

import (
	"fmt"
	"sort"
	"strconv"
)

// ErrUnknownField reports a write to a statistic name outside the table's
// declared field set. This is a schema fault: it signals drift between the
// computation and export stages and must propagate, never be swallowed.
type ErrUnknownField struct {
	Field string
}

func (e *ErrUnknownField) Error() string {
	return fmt.Sprintf("calc: field %q not in declared field set", e.Field)
}

// Table is a two-level autovivifying mapping learner -> item -> statistic,
// with a closed field set fixed at construction. Leaves are export-ready
// strings; the Seconds and Count helpers centralize numeric formatting so
// repeated runs produce byte-identical output.
type Table struct {
	fields map[string]struct{}
	order  []string
	data   map[string]map[string]map[string]string
}

// NewTable declares a table restricted to the given statistic names.
func NewTable(fields ...string) *Table {
	t := &Table{
		fields: make(map[string]struct{}, len(fields)),
		order:  make([]string, 0, len(fields)),
		data:   make(map[string]map[string]map[string]string),
	}
	for _, f := range fields {
		if _, dup := t.fields[f]; dup {
			continue
		}
		t.fields[f] = struct{}{}
		t.order = append(t.order, f)
	}
	return t
}

// Fields returns the declared statistic names in declaration order.
func (t *Table) Fields() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Set records a statistic for a (learner, item) pair, creating the pair if
// needed. Returns an ErrUnknownField for undeclared statistic names.
func (t *Table) Set(learner, item, field, value string) error {
	if _, ok := t.fields[field]; !ok {
		return &ErrUnknownField{Field: field}
	}
	items, ok := t.data[learner]
	if !ok {
		items = make(map[string]map[string]string)
		t.data[learner] = items
	}
	stats, ok := items[item]
	if !ok {
		stats = make(map[string]string, len(t.order))
		items[item] = stats
	}
	stats[field] = value
	return nil
}

// Get reads a statistic. A declared but unset field on an existing pair
// yields ("", false) rather than an error, so later passes can populate
// pairs incrementally.
func (t *Table) Get(learner, item, field string) (string, bool) {
	stats, ok := t.data[learner][item]
	if !ok {
		return "", false
	}
	v, ok := stats[field]
	return v, ok
}

// Has reports whether the (learner, item) pair exists.
func (t *Table) Has(learner, item string) bool {
	_, ok := t.data[learner][item]
	return ok
}

// DeletePair removes one (learner, item) pair wholesale. Learners left with
// zero items are removed too, so export never emits empty rows.
func (t *Table) DeletePair(learner, item string) {
	items, ok := t.data[learner]
	if !ok {
		return
	}
	delete(items, item)
	if len(items) == 0 {
		delete(t.data, learner)
	}
}

// DeleteLearner removes a learner and all their pairs.
func (t *Table) DeleteLearner(learner string) {
	delete(t.data, learner)
}

// Learners returns all learner IDs, sorted for deterministic export.
func (t *Table) Learners() []string {
	out := make([]string, 0, len(t.data))
	for l := range t.data {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Items returns a learner's item IDs, sorted.
func (t *Table) Items(learner string) []string {
	items := t.data[learner]
	out := make([]string, 0, len(items))
	for i := range items {
		out = append(out, i)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of (learner, item) pairs held.
func (t *Table) Len() int {
	n := 0
	for _, items := range t.data {
		n += len(items)
	}
	return n
}

// Seconds formats an epoch-seconds or delta value for export. The shortest
// exact representation keeps re-runs byte-identical.
func Seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Count formats an integer statistic for export.
func Count(n int) string {
	return strconv.Itoa(n)
}
