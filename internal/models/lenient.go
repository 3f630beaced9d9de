package models

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// Numeric fields are read leniently. A JSON number or numeric string is
// taken; anything else reads as zero and the row still decodes.

func (t *TotalStats) UnmarshalJSON(b []byte) error {
	*t = TotalStats{}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	t.Shows = lenientInt(raw["shows"])
	t.Views = lenientInt(raw["views"])
	t.Revenue = lenientDecimal(raw["revenue"])
	t.Cancelled = lenientInt(raw["cancelled"])
	t.CallsBooked = lenientInt(raw["callsBooked"])
	t.CallsClosed = lenientInt(raw["callsClosed"])
	t.CallsAccepted = lenientInt(raw["callsAccepted"])
	if r, ok := raw["conversionRate"]; ok {
		_ = t.ConversionRate.UnmarshalJSON(bytes.TrimSpace(r))
	}
	return nil
}

func (y *YouTubeStats) UnmarshalJSON(b []byte) error {
	*y = YouTubeStats{}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	y.Likes = lenientInt(raw["Likes"])
	y.Views = lenientInt(raw["Views"])
	y.Comments = lenientInt(raw["Comments"])
	return nil
}

// UnmarshalJSON fails only when the date is unreadable.
func (d *DailyStatistic) UnmarshalJSON(b []byte) error {
	var raw struct {
		Date             Date            `json:"date"`
		TotalStats       *TotalStats     `json:"total_stats"`
		YouTubeStats     *YouTubeStats   `json:"total_youtube_stats_in_30_days"`
		VisitorsByRegion json.RawMessage `json:"visitors_by_region"`
		WebsiteVisitors  json.RawMessage `json:"website_visitors"`
		AllTimeViews     json.RawMessage `json:"all_time_views"`
		AllTimeSubs      json.RawMessage `json:"all_time_subs"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*d = DailyStatistic{
		Date:         raw.Date,
		TotalStats:   raw.TotalStats,
		YouTubeStats: raw.YouTubeStats,
		AllTimeViews: lenientInt(raw.AllTimeViews),
		AllTimeSubs:  lenientInt(raw.AllTimeSubs),
	}
	d.VisitorsByRegion = Counts(raw.VisitorsByRegion)
	if !isNull(raw.WebsiteVisitors) {
		v := lenientInt(raw.WebsiteVisitors)
		d.WebsiteVisitors = &v
	}
	return nil
}

// Counts reads an object of name -> count leniently. Anything that is not an
// object yields nil.
func Counts(b []byte) map[string]int64 {
	var raw map[string]json.RawMessage
	if isNull(b) || json.Unmarshal(b, &raw) != nil || raw == nil {
		return nil
	}
	out := make(map[string]int64, len(raw))
	for name, v := range raw {
		out[name] = lenientInt(v)
	}
	return out
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// numericText unwraps a JSON string; numbers are returned as written.
func numericText(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}
	raw = bytes.TrimSpace(raw)
	if raw[0] != '"' {
		return string(raw), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return strings.TrimSpace(s), true
}

func lenientInt(raw json.RawMessage) int64 {
	s, ok := numericText(raw)
	if !ok {
		return 0
	}
	f, ok := parseFinite(s)
	if !ok || math.Abs(f) > 1<<53 {
		return 0
	}
	return int64(f)
}

func lenientDecimal(raw json.RawMessage) decimal.Decimal {
	s, ok := numericText(raw)
	if !ok {
		return decimal.Zero
	}
	if _, ok := parseFinite(s); !ok {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// parseFinite accepts decimal notation only: no hex floats and no NaN or
// Inf spellings.
func parseFinite(s string) (float64, bool) {
	if s == "" || strings.ContainsAny(s, "xXpP_") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
