package parser

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLineParserHoldsIncompleteLine(t *testing.T) {
	var p LineParser

	if got := p.Feed("1. fo"); len(got) != 0 {
		t.Fatalf("Feed without separator returned %q", got)
	}
	if p.Pending() != "1. fo" {
		t.Errorf("Pending = %q, want %q", p.Pending(), "1. fo")
	}

	got := p.Feed("o\n2. bar\n3. b")
	if diff := cmp.Diff([]string{"1. foo", "2. bar"}, got); diff != "" {
		t.Errorf("Feed lines mismatch (-want +got):\n%s", diff)
	}

	if rest := p.Flush(); rest != "3. b" {
		t.Errorf("Flush = %q, want %q", rest, "3. b")
	}
	if rest := p.Flush(); rest != "" {
		t.Errorf("second Flush = %q, want empty", rest)
	}
}

func TestLineParserEmptyLines(t *testing.T) {
	var p LineParser

	got := p.Feed("\n\na\n")
	if diff := cmp.Diff([]string{"", "", "a"}, got); diff != "" {
		t.Errorf("Feed lines mismatch (-want +got):\n%s", diff)
	}
	if rest := p.Flush(); rest != "" {
		t.Errorf("Flush = %q, want empty", rest)
	}
}

// Every partition of text into chunks must yield the same lines.
func TestLineParserChunkBoundaryIndependence(t *testing.T) {
	texts := []string{
		"1. a\n2. bc\n3",
		"\nx\n\ny\n",
		"no separator",
		"ab\r\ncd",
	}

	for _, text := range texts {
		want := strings.Split(text, "\n")
		cuts := len(text) - 1

		for mask := 0; mask < 1<<cuts; mask++ {
			var p LineParser
			var got []string
			start := 0
			for i := 0; i < cuts; i++ {
				if mask&(1<<i) != 0 {
					got = append(got, p.Feed(text[start:i+1])...)
					start = i + 1
				}
			}
			got = append(got, p.Feed(text[start:])...)
			got = append(got, p.Flush())

			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("text %q mask %b: lines mismatch (-want +got):\n%s", text, mask, diff)
			}
			if rebuilt := strings.Join(got, "\n"); rebuilt != text {
				t.Fatalf("text %q mask %b: rebuilt %q", text, mask, rebuilt)
			}
		}
	}
}
