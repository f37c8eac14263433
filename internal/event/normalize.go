package event

import "strings"

// minIDLen is the shortest normalized identifier considered resolvable.
// Anything shorter is export noise ('\N', empty string, stray separators).
const minIDLen = 3

// NormalizeSubmissionID canonicalizes a raw problem identifier from a
// submission event. The platform emits these as URIs
// (e.g. i4x://Engineering/QMSE-02/problem/0764cd7b...), with the client
// additionally wrapping input-field names and array markers around the ID.
// Returns the canonical ID and whether it is resolvable. Unresolvable IDs
// must be dropped, never guessed.
func NormalizeSubmissionID(raw string) (string, bool) {
	id := strings.Replace(raw, "://", "/", 1)
	id = strings.ReplaceAll(id, "/", "-")
	id = strings.ReplaceAll(id, "input_", "")
	id = strings.ReplaceAll(id, "%5B%5D", "")
	return id, resolvable(id)
}

// NormalizeBrowseToken extracts the coarse item-family token from a browse
// event's slash-delimited event_type string: the segment-th fragment, with the
// platform's run-length/escape tokens collapsed to the canonical separator.
// A family token may match multiple full item-variant IDs.
func NormalizeBrowseToken(eventPath string, segment int) (string, bool) {
	parts := strings.Split(eventPath, "/")
	if segment < 0 || segment >= len(parts) {
		return "", false
	}
	token := strings.ReplaceAll(parts[segment], ";_", "-")
	token = strings.ReplaceAll(token, ":--", "-")
	return token, resolvable(token)
}

// resolvable rejects identifiers that are too short to be real or that still
// carry a scheme marker, meaning normalization never touched them (e.g. a
// new-style block-v1: key the legacy rules don't apply to). A canonical ID
// contains no colon, so any remaining one is such a marker.
func resolvable(id string) bool {
	if len(id) < minIDLen {
		return false
	}
	if strings.Contains(id, ":") {
		return false
	}
	return true
}
