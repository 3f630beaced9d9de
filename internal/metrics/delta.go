package metrics

import (
	"math"

	"github.com/AngelCh415/funnel-dash/internal/models"
)

type Metric string

const (
	MetricRevenue        Metric = "totalRevenue"
	MetricCalls          Metric = "totalCalls"
	MetricShows          Metric = "totalShows"
	MetricViews          Metric = "totalViews"
	MetricVisitors       Metric = "totalWebsiteVisitors"
	MetricConversionRate Metric = "avgConversionRate"
)

var AllMetrics = []Metric{MetricRevenue, MetricCalls, MetricShows, MetricViews, MetricVisitors, MetricConversionRate}

// PercentageChange returns (current-previous)/previous*100. A zero previous
// reports 100 when something appeared and 0 when nothing did.
func PercentageChange(current, previous float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return (current - previous) / previous * 100
}

// DeltaOf reports the magnitude of the change rounded to two decimals with
// the sign carried separately.
func DeltaOf(current, previous float64) models.Delta {
	ch := PercentageChange(current, previous)
	return models.Delta{Value: round2(math.Abs(ch)), IsPositive: ch >= 0}
}

// DeltaFor compares one metric of the summary against its previous period.
func DeltaFor(s models.PeriodSummary, m Metric) models.Delta {
	cur, ok := metricValue(s.PeriodTotals, m)
	if !ok {
		return models.Delta{Value: 0, IsPositive: true}
	}
	prev, _ := metricValue(s.PreviousPeriod, m)
	return DeltaOf(cur, prev)
}

func Deltas(s models.PeriodSummary) map[Metric]models.Delta {
	out := make(map[Metric]models.Delta, len(AllMetrics))
	for _, m := range AllMetrics {
		out[m] = DeltaFor(s, m)
	}
	return out
}

func metricValue(t models.PeriodTotals, m Metric) (float64, bool) {
	switch m {
	case MetricRevenue:
		return t.TotalRevenue.InexactFloat64(), true
	case MetricCalls:
		return float64(t.TotalCalls), true
	case MetricShows:
		return float64(t.TotalShows), true
	case MetricViews:
		return float64(t.TotalViews), true
	case MetricVisitors:
		return float64(t.TotalWebsiteVisitors), true
	case MetricConversionRate:
		return t.AvgConversionRate, true
	}
	return 0, false
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
func round1(f float64) float64 { return math.Round(f*10) / 10 }

func safeDivF(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
