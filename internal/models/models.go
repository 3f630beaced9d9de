package models

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

const (
	RegionAsia         = "Asia"
	RegionAfrica       = "Africa"
	RegionEurope       = "Europe"
	RegionAustralia    = "Australia"
	RegionMiddleEast   = "Middle East"
	RegionNorthAmerica = "North America"
	RegionSouthAmerica = "South America"
)

// Regions is the fixed set of visitor buckets reported by the store.
var Regions = []string{
	RegionAsia, RegionAfrica, RegionEurope, RegionAustralia,
	RegionMiddleEast, RegionNorthAmerica, RegionSouthAmerica,
}

// Date accepts the timestamp shapes the statistics store emits.
type Date struct{ time.Time }

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05-07",
	"2006-01-02",
}

func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return Date{t}, nil
		}
	}
	return Date{}, fmt.Errorf("models: unrecognised date %q", s)
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	v, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.UTC().Format(time.RFC3339))
}

// PercentText is a percentage recorded as text ("13.58%"). Numeric JSON is
// accepted too and kept verbatim.
type PercentText string

func (p *PercentText) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*p = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = PercentText(s)
		return nil
	}
	*p = PercentText(string(b))
	return nil
}

// Value strips one trailing "%" and parses the rest. ok is false for empty,
// malformed or non-finite text.
func (p PercentText) Value() (float64, bool) {
	s := strings.TrimSpace(string(p))
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if s == "" {
		return 0, false
	}
	return parseFinite(s)
}

type TotalStats struct {
	Shows          int64           `json:"shows"`
	Views          int64           `json:"views"`
	Revenue        decimal.Decimal `json:"revenue"`
	Cancelled      int64           `json:"cancelled"`
	CallsBooked    int64           `json:"callsBooked"`
	CallsClosed    int64           `json:"callsClosed"`
	CallsAccepted  int64           `json:"callsAccepted"`
	ConversionRate PercentText     `json:"conversionRate"`
}

type YouTubeStats struct {
	Likes    int64 `json:"Likes"`
	Views    int64 `json:"Views"`
	Comments int64 `json:"Comments"`
}

// DailyStatistic is one row of the statistics table. Nested groups are
// optional; use the accessors, which default a missing value to zero and
// clamp negatives to zero.
type DailyStatistic struct {
	Date             Date             `json:"date"`
	TotalStats       *TotalStats      `json:"total_stats,omitempty"`
	YouTubeStats     *YouTubeStats    `json:"total_youtube_stats_in_30_days,omitempty"`
	VisitorsByRegion map[string]int64 `json:"visitors_by_region,omitempty"`
	WebsiteVisitors  *int64           `json:"website_visitors,omitempty"`
	AllTimeViews     int64            `json:"all_time_views"`
	AllTimeSubs      int64            `json:"all_time_subs"`
}

func (d DailyStatistic) Revenue() decimal.Decimal {
	if d.TotalStats == nil || d.TotalStats.Revenue.IsNegative() {
		return decimal.Zero
	}
	return d.TotalStats.Revenue
}

func (d DailyStatistic) CallsBooked() int64 {
	if d.TotalStats == nil {
		return 0
	}
	return max0(d.TotalStats.CallsBooked)
}

func (d DailyStatistic) Shows() int64 {
	if d.TotalStats == nil {
		return 0
	}
	return max0(d.TotalStats.Shows)
}

// YouTubeViews is the rolling 30-day view count.
func (d DailyStatistic) YouTubeViews() int64 {
	if d.YouTubeStats == nil {
		return 0
	}
	return max0(d.YouTubeStats.Views)
}

func (d DailyStatistic) Visitors() int64 {
	if d.WebsiteVisitors == nil {
		return 0
	}
	return max0(*d.WebsiteVisitors)
}

func (d DailyStatistic) ConversionRate() (float64, bool) {
	if d.TotalStats == nil {
		return 0, false
	}
	return d.TotalStats.ConversionRate.Value()
}

type VideoSlot struct {
	Stats       TotalStats `json:"stats"`
	Title       string     `json:"title"`
	Reason      string     `json:"reason"`
	VideoID     string     `json:"videoId"`
	PublishedAt Date       `json:"publishedAt"`
}

type TopVideos struct {
	VideoOne   *VideoSlot `json:"videoOne,omitempty"`
	VideoTwo   *VideoSlot `json:"videoTwo,omitempty"`
	VideoThree *VideoSlot `json:"videoThree,omitempty"`
	VideoFour  *VideoSlot `json:"videoFour,omitempty"`
	VideoFive  *VideoSlot `json:"videoFive,omitempty"`
}

type VideoRecord struct {
	ID         string          `json:"id"`
	ReportDate Date            `json:"report_date"`
	TopVideos  TopVideos       `json:"top_videos"`
	TotalStats TotalStats      `json:"total_stats"`
	Revenue    decimal.Decimal `json:"revenue"`
}

type RankedVideo struct {
	Rank int `json:"rank"`
	VideoSlot
}

// Ranked lists the filled slots in rank order; empty slots are skipped but
// keep their rank number.
func (v VideoRecord) Ranked() []RankedVideo {
	slots := []*VideoSlot{v.TopVideos.VideoOne, v.TopVideos.VideoTwo, v.TopVideos.VideoThree, v.TopVideos.VideoFour, v.TopVideos.VideoFive}
	out := make([]RankedVideo, 0, len(slots))
	for i, s := range slots {
		if s == nil {
			continue
		}
		out = append(out, RankedVideo{Rank: i + 1, VideoSlot: *s})
	}
	return out
}

// ShowRate is shows over calls booked for the report rollup, in percent.
func (v VideoRecord) ShowRate() float64 {
	if v.TotalStats.CallsBooked <= 0 {
		return 0
	}
	return float64(max0(v.TotalStats.Shows)) / float64(v.TotalStats.CallsBooked) * 100
}

type TrendPoint struct {
	Day         time.Time       `json:"day"`
	Date        string          `json:"date"`
	Revenue     decimal.Decimal `json:"revenue"`
	CallsBooked int64           `json:"calls"`
	Shows       int64           `json:"shows"`
}

type PeriodTotals struct {
	TotalRevenue         decimal.Decimal `json:"totalRevenue"`
	TotalCalls           int64           `json:"totalCalls"`
	TotalShows           int64           `json:"totalShows"`
	TotalViews           int64           `json:"totalViews"`
	TotalWebsiteVisitors int64           `json:"totalWebsiteVisitors"`
	AvgConversionRate    float64         `json:"avgConversionRate"`
}

// PeriodSummary is derived per fetch and never persisted.
type PeriodSummary struct {
	PeriodTotals
	TrendSeries    []TrendPoint     `json:"chartData"`
	RegionTotals   map[string]int64 `json:"regionData"`
	PreviousPeriod PeriodTotals     `json:"previousPeriodData"`
}

type Delta struct {
	Value      float64 `json:"value"`
	IsPositive bool    `json:"isPositive"`
}

func max0(i int64) int64 {
	if i < 0 {
		return 0
	}
	return i
}
