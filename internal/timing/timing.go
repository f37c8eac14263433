// Package timing correlates each learner's first page view of an item with
// their submission times, quarantining pairs whose deltas prove the match
// untrustworthy.
package timing

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/edstats/itemgrid/internal/attempts"
	"github.com/edstats/itemgrid/internal/calc"
	"github.com/edstats/itemgrid/internal/event"
	"github.com/edstats/itemgrid/internal/visibility"
)

// Pair names one (learner, item) unit in the audit lists.
type Pair struct {
	Learner string
	Item    string
}

// Record holds the first-view timestamp and the view-to-attempt deltas for
// one pair. All deltas in surviving records are >= 0.
type Record struct {
	FirstView float64
	ToFirst   float64
	ToLast    float64
}

// Config controls family-token extraction and visibility matching for the
// browse scan.
type Config struct {
	// Segment is the slash-split fragment of the event-type string that
	// carries the item-family token.
	Segment int
	// SuffixLen is the visibility suffix length for the timing pass. The
	// definition source encodes browse-token IDs at a different width than
	// submission IDs, so this differs from the attempt pass.
	SuffixLen int
}

// DefaultConfig matches the current platform export variant.
func DefaultConfig() Config {
	return Config{Segment: 6, SuffixLen: 36}
}

// Result is the output of one correlation pass. Negative lists pairs
// quarantined for negative deltas; Dropped lists pairs removed because their
// learner had attempts but no view correlation at all.
type Result struct {
	Records  map[string]map[string]Record
	Negative []Pair
	Dropped  []Pair
}

// Len returns the number of timing records held.
func (r *Result) Len() int {
	n := 0
	for _, items := range r.Records {
		n += len(items)
	}
	return n
}

func (r *Result) put(learner, item string, rec Record) {
	items, ok := r.Records[learner]
	if !ok {
		items = make(map[string]Record)
		r.Records[learner] = items
	}
	items[item] = rec
}

// Correlate scans browse events in global time order and stamps each
// learner's first sighting of an item family onto every attempt-record item
// of theirs containing the family token. Quarantined pairs are removed from
// att as well, and learners left with attempts but zero timing records are
// purged wholesale.
func Correlate(browse []event.BrowseEvent, att *attempts.Records, vis *visibility.Set, cfg Config, log *zap.SugaredLogger) *Result {
	res := &Result{Records: make(map[string]map[string]Record)}

	// One global sort enables first-seen-wins below.
	sorted := append([]event.BrowseEvent(nil), browse...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	seen := make(map[string]map[string]struct{})
	for _, ev := range sorted {
		token, ok := event.NormalizeBrowseToken(ev.EventPath, cfg.Segment)
		if !ok {
			log.Debugw("unresolvable browse token", "learner", ev.Learner, "event_path", ev.EventPath)
			continue
		}
		if vis != nil && !vis.Contains(token, cfg.SuffixLen) {
			continue
		}
		tokens, ok := seen[ev.Learner]
		if !ok {
			tokens = make(map[string]struct{})
			seen[ev.Learner] = tokens
		}
		if _, done := tokens[token]; done {
			continue
		}
		tokens[token] = struct{}{}

		// A family token may match several item-variant IDs (sub-parts of one
		// problem); all get the same first-view time. The one-to-many mapping
		// is materialized here, at the only sighting that can use it.
		for _, item := range matches(att, ev.Learner, token) {
			rec, _ := att.Get(ev.Learner, item)
			tr := Record{
				FirstView: ev.Time,
				ToFirst:   rec.First() - ev.Time,
				ToLast:    rec.Last() - ev.Time,
			}
			if tr.ToFirst < 0 || tr.ToLast < 0 {
				// The matched "first view" is not actually prior to the
				// attempt; the whole pair is untrustworthy.
				att.DeletePair(ev.Learner, item)
				res.deletePair(ev.Learner, item)
				res.Negative = append(res.Negative, Pair{Learner: ev.Learner, Item: item})
				log.Warnw("negative view-to-attempt delta, pair quarantined",
					"learner", ev.Learner, "item", item, "delta", tr.ToFirst)
				continue
			}
			res.put(ev.Learner, item, tr)
		}
	}

	// A learner with attempts but literally no view correlation is a
	// data-quality failure for the whole learner, not a partial result.
	for _, learner := range att.Learners() {
		if len(res.Records[learner]) > 0 {
			continue
		}
		for _, item := range att.Items(learner) {
			res.Dropped = append(res.Dropped, Pair{Learner: learner, Item: item})
		}
		att.DeleteLearner(learner)
		log.Infow("learner had attempts but no view correlation, dropped", "learner", learner)
	}

	return res
}

func (r *Result) deletePair(learner, item string) {
	items, ok := r.Records[learner]
	if !ok {
		return
	}
	delete(items, item)
	if len(items) == 0 {
		delete(r.Records, learner)
	}
}

func matches(att *attempts.Records, learner, token string) []string {
	var out []string
	for _, item := range att.Items(learner) {
		if strings.Contains(item, token) {
			out = append(out, item)
		}
	}
	return out
}

// TimingFields is the closed statistic name set timing records export.
func TimingFields() []string {
	return []string{
		"first_view",
		"time_to_first_attempt",
		"time_to_last_attempt",
	}
}

// Fill writes every surviving timing record into the aggregation table.
func Fill(table *calc.Table, res *Result) error {
	learners := make([]string, 0, len(res.Records))
	for l := range res.Records {
		learners = append(learners, l)
	}
	sort.Strings(learners)
	for _, learner := range learners {
		items := make([]string, 0, len(res.Records[learner]))
		for i := range res.Records[learner] {
			items = append(items, i)
		}
		sort.Strings(items)
		for _, item := range items {
			rec := res.Records[learner][item]
			if err := table.Set(learner, item, "first_view", calc.Seconds(rec.FirstView)); err != nil {
				return err
			}
			if err := table.Set(learner, item, "time_to_first_attempt", calc.Seconds(rec.ToFirst)); err != nil {
				return err
			}
			if err := table.Set(learner, item, "time_to_last_attempt", calc.Seconds(rec.ToLast)); err != nil {
				return err
			}
		}
	}
	return nil
}
