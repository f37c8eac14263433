// Package event defines the parsed interaction-event model shared by every
// pipeline stage, plus the identifier normalization rules that reconcile the
// platform's inconsistent ID encodings.
package event

import (
	"fmt"
	"time"
)

// Type identifies the kind of platform event a row describes.
type Type string

const (
	TypeCheck     Type = "problem_check"
	TypeShow      Type = "problem_show"
	TypeReset     Type = "problem_reset"
	TypeSave      Type = "problem_save"
	TypeCheckFail Type = "problem_check_fail"
	TypePageView  Type = "page_view"
	TypeOther     Type = "other"
)

// KnownTypes returns every tallied event-type bucket, in report order.
// Audit output enumerates all of them (zeros included) so that absence is
// always distinguishable from non-tracking.
func KnownTypes() []Type {
	return []Type{
		TypeCheck,
		TypeShow,
		TypeReset,
		TypeSave,
		TypeCheckFail,
		TypePageView,
		TypeOther,
	}
}

// ClassifyType maps a raw event_type field from the submission source to a
// typed bucket. Unrecognized values classify as TypeOther rather than erroring;
// the ingestor decides what to do with them.
func ClassifyType(raw string) Type {
	switch raw {
	case "problem_check":
		return TypeCheck
	case "problem_show":
		return TypeShow
	case "problem_reset":
		return TypeReset
	case "problem_save":
		return TypeSave
	case "problem_check_fail":
		return TypeCheckFail
	default:
		return TypeOther
	}
}

// Origin distinguishes client-emitted events from server-confirmed ones.
type Origin string

const (
	OriginBrowser Origin = "browser"
	OriginServer  Origin = "server"
)

// ClassifyOrigin maps a raw event_source field to an Origin. The platform
// labels client events "browser"; everything else is a server-side record.
func ClassifyOrigin(raw string) Origin {
	if raw == string(OriginBrowser) {
		return OriginBrowser
	}
	return OriginServer
}

// Event is one observed submission interaction. Immutable once parsed.
type Event struct {
	Learner     string
	Item        string
	Type        Type
	Origin      Origin
	Grade       string
	Page        string
	DisplayName string
	Time        float64 // epoch seconds
}

// BrowseEvent is one observed page-view interaction. The item-family token is
// not extracted at parse time; the timing correlator derives it during its
// time-sorted scan.
type BrowseEvent struct {
	Learner   string
	EventPath string // raw slash-delimited event_type string
	Time      float64 // epoch seconds
}

// timeLayout matches the export timestamp format YYYY-MM-DD HH:MM:SS.ffffff.
// The fractional part is optional in practice; some extracts truncate zeros.
const timeLayout = "2006-01-02 15:04:05.999999"

// ParseTime converts a source timestamp (local time) to epoch seconds,
// preserving the microsecond fraction.
func ParseTime(s string) (float64, error) {
	t, err := time.ParseInLocation(timeLayout, s, time.Local)
	if err != nil {
		return 0, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return float64(t.UnixMicro()) / 1e6, nil
}
