package metrics

import (
	"fmt"
	"strings"
	"time"
)

type TimeRange string

const (
	Range7d  TimeRange = "7d"
	Range30d TimeRange = "30d"

	DefaultRange = Range30d
)

func (r TimeRange) Days() int {
	if r == Range7d {
		return 7
	}
	return 30
}

// ParseTimeRange falls back to the default for empty or unknown input.
func ParseTimeRange(s string) TimeRange {
	r, err := ParseTimeRangeStrict(s)
	if err != nil {
		return DefaultRange
	}
	return r
}

// ParseTimeRangeStrict accepts an empty value as the default and rejects
// anything else it does not know.
func ParseTimeRangeStrict(s string) (TimeRange, error) {
	switch TimeRange(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultRange, nil
	case Range7d:
		return Range7d, nil
	case Range30d:
		return Range30d, nil
	}
	return "", fmt.Errorf("unknown time range %q (want 7d or 30d)", s)
}

// Window is an inclusive [From, To] date range.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

// Windows returns the current window ending now and the previous window of
// the same length that ends one day before the current one starts.
func Windows(now time.Time, days int) (current, previous Window) {
	current = Window{From: now.AddDate(0, 0, -days), To: now}
	previous = Window{From: now.AddDate(0, 0, -2*days-1), To: now.AddDate(0, 0, -days-1)}
	return current, previous
}
