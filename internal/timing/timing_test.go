package timing

import (
	"math/rand"
	"testing"

	"go.uber.org/zap"

	"github.com/edstats/itemgrid/internal/attempts"
	"github.com/edstats/itemgrid/internal/calc"
	"github.com/edstats/itemgrid/internal/event"
	"github.com/edstats/itemgrid/internal/ingest"
)

func nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func browsePath(token string) string {
	return "/courses/Org/C1/2016/xblock/" + token + "/handler/xmodule_handler"
}

// rawToken builds the platform-escaped form of a family token.
func rawToken(hash string) string {
	return "i4x:;_;_Org;_C1;_problem;_" + hash
}

func attemptRecords(t *testing.T, events ...event.Event) *attempts.Records {
	t.Helper()
	b := ingest.Buckets{
		Browser: make(map[string]map[string][]event.Event),
		Server:  make(map[string]map[string][]event.Event),
	}
	for _, ev := range events {
		if b.Server[ev.Learner] == nil {
			b.Server[ev.Learner] = make(map[string][]event.Event)
		}
		b.Server[ev.Learner][ev.Item] = append(b.Server[ev.Learner][ev.Item], ev)
	}
	recs, _ := attempts.Aggregate(b)
	return recs
}

func submission(learner, item string, t float64) event.Event {
	return event.Event{Learner: learner, Item: item, Origin: event.OriginServer, Grade: "correct", Time: t}
}

func TestCorrelate_ViewBeforeAttempt(t *testing.T) {
	// Example: view at t=50, submit at t=100 -> time_to_first_attempt=50.
	att := attemptRecords(t, submission("L", "i4x-Org-C1-problem-abc123", 100))
	browse := []event.BrowseEvent{
		{Learner: "L", EventPath: browsePath(rawToken("abc123")), Time: 50},
	}

	res := Correlate(browse, att, nil, DefaultConfig(), nop())

	rec, ok := res.Records["L"]["i4x-Org-C1-problem-abc123"]
	if !ok {
		t.Fatal("no timing record")
	}
	if rec.FirstView != 50 || rec.ToFirst != 50 || rec.ToLast != 50 {
		t.Errorf("record = %+v, want view=50 deltas=50", rec)
	}
	if len(res.Negative)+len(res.Dropped) != 0 {
		t.Errorf("unexpected audit entries: %+v %+v", res.Negative, res.Dropped)
	}
}

func TestCorrelate_NegativeDeltaQuarantined(t *testing.T) {
	// Recorded "first view" at t=150 but earliest submission at t=100:
	// the pair is excluded wholesale, not kept with one bad field.
	att := attemptRecords(t, submission("L", "i4x-Org-C1-problem-abc123", 100))
	browse := []event.BrowseEvent{
		{Learner: "L", EventPath: browsePath(rawToken("abc123")), Time: 150},
	}

	res := Correlate(browse, att, nil, DefaultConfig(), nop())

	if len(res.Negative) != 1 {
		t.Fatalf("negative list = %+v, want 1 entry", res.Negative)
	}
	if res.Negative[0] != (Pair{Learner: "L", Item: "i4x-Org-C1-problem-abc123"}) {
		t.Errorf("negative pair = %+v", res.Negative[0])
	}
	if res.Len() != 0 {
		t.Error("quarantined pair left a timing record behind")
	}
	if att.Len() != 0 {
		t.Error("quarantined pair left an attempt record behind")
	}
}

func TestCorrelate_FirstSeenWins(t *testing.T) {
	// The learner views the item at t=40 and again at t=60; only the first
	// sighting counts, even when events arrive out of order.
	att := attemptRecords(t, submission("L", "i4x-Org-C1-problem-abc123", 100))
	browse := []event.BrowseEvent{
		{Learner: "L", EventPath: browsePath(rawToken("abc123")), Time: 60},
		{Learner: "L", EventPath: browsePath(rawToken("abc123")), Time: 40},
	}

	res := Correlate(browse, att, nil, DefaultConfig(), nop())

	rec := res.Records["L"]["i4x-Org-C1-problem-abc123"]
	if rec.FirstView != 40 {
		t.Errorf("first view = %f, want 40 (global time-sorted scan)", rec.FirstView)
	}
}

func TestCorrelate_FamilyTokenMatchesVariants(t *testing.T) {
	// One family token matches both sub-parts of the problem; both get the
	// same first-view time.
	att := attemptRecords(t,
		submission("L", "i4x-Org-C1-problem-abc123_2_1", 100),
		submission("L", "i4x-Org-C1-problem-abc123_3_1", 200),
	)
	browse := []event.BrowseEvent{
		{Learner: "L", EventPath: browsePath(rawToken("abc123")), Time: 50},
	}

	res := Correlate(browse, att, nil, DefaultConfig(), nop())

	if res.Len() != 2 {
		t.Fatalf("got %d timing records, want 2", res.Len())
	}
	for item, rec := range res.Records["L"] {
		if rec.FirstView != 50 {
			t.Errorf("item %s first view = %f, want 50", item, rec.FirstView)
		}
	}
}

func TestCorrelate_OrphanedLearnerDropped(t *testing.T) {
	// Learner M has submissions but no matching browse event at all: the
	// whole learner is dropped from the attempt set and audited.
	att := attemptRecords(t,
		submission("L", "i4x-Org-C1-problem-abc123", 100),
		submission("M", "i4x-Org-C1-problem-zzz999", 100),
	)
	browse := []event.BrowseEvent{
		{Learner: "L", EventPath: browsePath(rawToken("abc123")), Time: 50},
	}

	res := Correlate(browse, att, nil, DefaultConfig(), nop())

	if len(res.Dropped) != 1 || res.Dropped[0].Learner != "M" {
		t.Fatalf("dropped = %+v, want M's pair", res.Dropped)
	}
	if _, ok := att.Get("M", "i4x-Org-C1-problem-zzz999"); ok {
		t.Error("orphaned learner still has attempt records")
	}
	if _, ok := att.Get("L", "i4x-Org-C1-problem-abc123"); !ok {
		t.Error("correlated learner was dropped")
	}
}

func TestCorrelate_NoNegativeDeltaSurvives(t *testing.T) {
	// Property: under random event orderings and timings, no surviving
	// record carries a negative delta.
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 50; trial++ {
		var subs []event.Event
		var browse []event.BrowseEvent
		hashes := []string{"aaa111", "bbb222", "ccc333"}
		for _, h := range hashes {
			item := "i4x-Org-C1-problem-" + h
			n := 1 + rng.Intn(3)
			for k := 0; k < n; k++ {
				subs = append(subs, submission("L", item, float64(rng.Intn(1000))))
			}
			if rng.Intn(4) > 0 {
				browse = append(browse, event.BrowseEvent{
					Learner:   "L",
					EventPath: browsePath(rawToken(h)),
					Time:      float64(rng.Intn(1000)),
				})
			}
		}
		rng.Shuffle(len(browse), func(i, j int) { browse[i], browse[j] = browse[j], browse[i] })

		att := attemptRecords(t, subs...)
		res := Correlate(browse, att, nil, DefaultConfig(), nop())

		for learner, items := range res.Records {
			for item, rec := range items {
				if rec.ToFirst < 0 || rec.ToLast < 0 {
					t.Fatalf("trial %d: negative delta survived for %s/%s: %+v", trial, learner, item, rec)
				}
				if _, ok := att.Get(learner, item); !ok {
					t.Fatalf("trial %d: timing record without attempt record", trial)
				}
			}
		}
	}
}

func TestFill(t *testing.T) {
	res := &Result{Records: map[string]map[string]Record{
		"L": {"item-x": {FirstView: 50, ToFirst: 50, ToLast: 150}},
	}}
	table := calc.NewTable(TimingFields()...)
	if err := Fill(table, res); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if v, _ := table.Get("L", "item-x", "time_to_first_attempt"); v != "50" {
		t.Errorf("time_to_first_attempt = %q, want 50", v)
	}
	if v, _ := table.Get("L", "item-x", "first_view"); v != "50" {
		t.Errorf("first_view = %q, want 50", v)
	}
	if v, _ := table.Get("L", "item-x", "time_to_last_attempt"); v != "150" {
		t.Errorf("time_to_last_attempt = %q, want 150", v)
	}
}
