package export

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/edstats/itemgrid/internal/event"
	"github.com/edstats/itemgrid/internal/ingest"
	"github.com/edstats/itemgrid/internal/timing"
)

// Audit summarizes one course's processing run for the report, the run
// history store, and the CLI.
type Audit struct {
	Course   string
	Tally    *ingest.Tally
	Negative []timing.Pair // pairs quarantined for negative deltas
	Dropped  []timing.Pair // pairs removed with their orphaned learner
	Learners int           // learners in final output
	Items    int           // items in final column universe
}

// Report writes the human-readable audit summary. Every known event-type
// bucket is enumerated, zeros included, so absence is always distinguishable
// from non-tracking.
func Report(w io.Writer, a *Audit) error {
	if _, err := fmt.Fprintf(w, "Course: %s\n", a.Course); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Final output: %d learners x %d items\n\n", a.Learners, a.Items); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "event type\taccepted\tmissing\tignored\tundeployed")
	for _, typ := range event.KnownTypes() {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n",
			typ,
			a.Tally.Accepted[typ],
			a.Tally.Missing[typ],
			a.Tally.Ignored[typ],
			a.Tally.Undeployed[typ],
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "\nQuarantined pairs (negative view-to-attempt delta): %d\n", len(a.Negative)); err != nil {
		return err
	}
	for _, p := range a.Negative {
		if _, err := fmt.Fprintf(w, "  %s\t%s\n", p.Learner, p.Item); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(w, "Dropped pairs (learner without view correlation): %d\n", len(a.Dropped)); err != nil {
		return err
	}
	for _, p := range a.Dropped {
		if _, err := fmt.Fprintf(w, "  %s\t%s\n", p.Learner, p.Item); err != nil {
			return err
		}
	}
	return nil
}
