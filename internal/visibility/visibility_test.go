package visibility

import (
	"strings"
	"testing"
)

func TestSet_SuffixMatchAcrossEncodings(t *testing.T) {
	s := New(32)
	// Definition-source ID (module path encoding).
	s.Add("i4x://Org/C1/problem/0764cd7b11ce41f9982c4d0699fd6bd4")
	// Event-source ID (normalized dash encoding) shares the trailing 32 chars.
	eventID := "i4x-Org-C1-problem-0764cd7b11ce41f9982c4d0699fd6bd4"
	if !s.Contains(eventID, 32) {
		t.Error("event-source ID should match by 32-char suffix")
	}
}

func TestSet_ShortIDUsesWholeString(t *testing.T) {
	s := New(32)
	s.Add("tiny-item")
	if !s.Contains("tiny-item", 32) {
		t.Error("IDs shorter than the suffix length should match whole")
	}
}

func TestSet_UnconfiguredLength(t *testing.T) {
	s := New(32)
	s.Add("i4x-Org-C1-problem-0764cd7b11ce41f9982c4d0699fd6bd4")
	if s.Contains("i4x-Org-C1-problem-0764cd7b11ce41f9982c4d0699fd6bd4", 36) {
		t.Error("length 36 was never indexed; Contains must not match")
	}
}

func TestDeployed(t *testing.T) {
	cases := []struct {
		trajectory, staffOnly string
		want                  bool
	}{
		{"chapter1/unit2", "False", true},
		{"chapter1/unit2", "", true},
		{"chapter1/unit2", "True", false},
		{"chapter1/unit2", "true", false},
		{"", "False", false},
		{`\N`, "False", false},
	}
	for _, c := range cases {
		if got := Deployed(c.trajectory, c.staffOnly); got != c.want {
			t.Errorf("Deployed(%q, %q) = %v, want %v", c.trajectory, c.staffOnly, got, c.want)
		}
	}
}

func TestRead(t *testing.T) {
	src := strings.Join([]string{
		"problem_id,trajectory,staff_only",
		"i4x://Org/C1/problem/aaaa1111bbbb2222cccc3333dddd4444,chapter1/seq1/unit1,False",
		"i4x://Org/C1/problem/eeee5555ffff6666aaaa7777bbbb8888,,False",
		"i4x://Org/C1/problem/9999aaaa0000bbbb1111cccc2222dddd,chapter2/seq1/unit3,True",
		`\N,chapter1/seq1/unit1,False`,
	}, "\n")

	set, err := Read(strings.NewReader(src), 32)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if set.Len() != 1 {
		t.Fatalf("got %d deployed items, want 1", set.Len())
	}
	if !set.Contains("i4x-Org-C1-problem-aaaa1111bbbb2222cccc3333dddd4444", 32) {
		t.Error("deployed item should match")
	}
	// Orphaned and staff-only items are pure restrictions: never visible.
	if set.Contains("i4x-Org-C1-problem-eeee5555ffff6666aaaa7777bbbb8888", 32) {
		t.Error("orphaned item must be excluded")
	}
	if set.Contains("i4x-Org-C1-problem-9999aaaa0000bbbb1111cccc2222dddd", 32) {
		t.Error("staff-only item must be excluded")
	}
}

func TestRead_MissingIDColumn(t *testing.T) {
	if _, err := Read(strings.NewReader("foo,bar\n1,2\n"), 32); err == nil {
		t.Fatal("expected error for missing problem_id column")
	}
}
