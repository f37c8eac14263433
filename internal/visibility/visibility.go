// Package visibility restricts processing to items that were actually
// deployed to learners in the course structure.
package visibility

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Set holds the deployed-item identifiers, indexed by fixed-length suffix.
// Definition-source IDs and event-source IDs use different encodings and
// lengths, so membership is tested on a trailing slice of the normalized ID.
// One suffix index is precomputed per configured length.
type Set struct {
	lengths  []int
	suffixes map[int]map[string]struct{}
	count    int
}

// New creates an empty set indexing the given suffix lengths.
func New(lengths ...int) *Set {
	s := &Set{
		lengths:  append([]int(nil), lengths...),
		suffixes: make(map[int]map[string]struct{}, len(lengths)),
	}
	for _, n := range s.lengths {
		s.suffixes[n] = make(map[string]struct{})
	}
	return s
}

// Add indexes one deployed item ID under every configured suffix length.
func (s *Set) Add(id string) {
	for _, n := range s.lengths {
		s.suffixes[n][suffix(id, n)] = struct{}{}
	}
	s.count++
}

// Contains reports whether id's trailing length characters match a deployed
// item. The length must be one of the configured suffix lengths.
func (s *Set) Contains(id string, length int) bool {
	idx, ok := s.suffixes[length]
	if !ok {
		return false
	}
	_, ok = idx[suffix(id, length)]
	return ok
}

// Len returns the number of deployed items added.
func (s *Set) Len() int {
	return s.count
}

func suffix(id string, n int) string {
	if len(id) <= n {
		return id
	}
	return id[len(id)-n:]
}

// Deployed decides whether an item-definition row describes an item learners
// could actually see: not staff-only, and positioned under a real course-tree
// path rather than orphaned.
func Deployed(trajectory, staffOnly string) bool {
	switch strings.ToLower(strings.TrimSpace(staffOnly)) {
	case "true", "1", "yes":
		return false
	}
	trajectory = strings.TrimSpace(trajectory)
	return trajectory != "" && trajectory != `\N`
}

// LoadCSV builds a Set from an item-definition source with problem_id,
// trajectory and staff_only columns, indexing the given suffix lengths.
func LoadCSV(path string, lengths ...int) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open item definitions: %w", err)
	}
	defer f.Close()
	return Read(f, lengths...)
}

// Read parses item-definition rows from r. Rows with a malformed shape or a
// missing ID are skipped; only the header being unusable is fatal.
func Read(r io.Reader, lengths ...int) (*Set, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read item-definition header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	idCol, ok := col["problem_id"]
	if !ok {
		return nil, fmt.Errorf("item-definition source missing problem_id column")
	}
	trajCol, hasTraj := col["trajectory"]
	staffCol, hasStaff := col["staff_only"]

	set := New(lengths...)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed row, not a malformed source.
			continue
		}
		if idCol >= len(row) {
			continue
		}
		id := strings.TrimSpace(row[idCol])
		if id == "" || id == `\N` {
			continue
		}
		// A source without the structural columns cannot express visibility;
		// its rows pass through as deployed.
		trajectory := "-"
		if hasTraj && trajCol < len(row) {
			trajectory = row[trajCol]
		}
		staffOnly := ""
		if hasStaff && staffCol < len(row) {
			staffOnly = row[staffCol]
		}
		if !Deployed(trajectory, staffOnly) {
			continue
		}
		set.Add(id)
	}
	return set, nil
}
