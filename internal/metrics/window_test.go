package metrics

import (
	"testing"
	"time"
)

func TestParseTimeRange(t *testing.T) {
	cases := map[string]TimeRange{"7d": Range7d, "30d": Range30d, "": Range30d, " 7D ": Range7d, "90d": Range30d}
	for in, want := range cases {
		if got := ParseTimeRange(in); got != want {
			t.Errorf("ParseTimeRange(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := ParseTimeRangeStrict("90d"); err == nil {
		t.Error("expected error for 90d")
	}
	if r, err := ParseTimeRangeStrict(""); err != nil || r != DefaultRange {
		t.Errorf("empty strict: got %q, %v", r, err)
	}
	if Range7d.Days() != 7 || Range30d.Days() != 30 {
		t.Error("days mismatch")
	}
}

func TestWindows(t *testing.T) {
	now := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)
	cur, prev := Windows(now, 7)

	if want := time.Date(2025, 6, 23, 12, 0, 0, 0, time.UTC); !cur.From.Equal(want) {
		t.Errorf("current from: got %v want %v", cur.From, want)
	}
	if !cur.To.Equal(now) {
		t.Errorf("current to: got %v", cur.To)
	}
	if want := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC); !prev.From.Equal(want) {
		t.Errorf("previous from: got %v want %v", prev.From, want)
	}
	if want := time.Date(2025, 6, 22, 12, 0, 0, 0, time.UTC); !prev.To.Equal(want) {
		t.Errorf("previous to: got %v want %v", prev.To, want)
	}
	if cur.To.Sub(cur.From) != prev.To.Sub(prev.From) {
		t.Error("windows differ in length")
	}
	if prev.Contains(cur.From) || cur.Contains(prev.To) {
		t.Error("windows overlap")
	}
}
