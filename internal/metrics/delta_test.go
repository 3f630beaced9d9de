package metrics

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/AngelCh415/funnel-dash/internal/models"
)

func TestPercentageChange(t *testing.T) {
	cases := []struct {
		cur, prev, want float64
	}{
		{50, 0, 100},
		{0, 0, 0},
		{75, 50, 50},
		{25, 50, -50},
		{10, 10, 0},
	}
	for _, c := range cases {
		if got := PercentageChange(c.cur, c.prev); got != c.want {
			t.Errorf("PercentageChange(%v, %v) = %v, want %v", c.cur, c.prev, got, c.want)
		}
	}
}

func TestDeltaOf(t *testing.T) {
	cases := []struct {
		cur, prev float64
		want      models.Delta
	}{
		{25, 50, models.Delta{Value: 50, IsPositive: false}},
		{75, 50, models.Delta{Value: 50, IsPositive: true}},
		{0, 0, models.Delta{Value: 0, IsPositive: true}},
		{1, 3, models.Delta{Value: 66.67, IsPositive: false}},
		{4, 3, models.Delta{Value: 33.33, IsPositive: true}},
	}
	for _, c := range cases {
		if got := DeltaOf(c.cur, c.prev); got != c.want {
			t.Errorf("DeltaOf(%v, %v) = %+v, want %+v", c.cur, c.prev, got, c.want)
		}
	}
}

func TestDeltasCoverEveryMetric(t *testing.T) {
	s := models.PeriodSummary{
		PeriodTotals: models.PeriodTotals{
			TotalRevenue: decimal.NewFromInt(1200), TotalCalls: 10, TotalShows: 6,
			TotalViews: 0, TotalWebsiteVisitors: 30, AvgConversionRate: 12,
		},
		PreviousPeriod: models.PeriodTotals{
			TotalRevenue: decimal.NewFromInt(1000), TotalCalls: 20, TotalShows: 6,
			TotalViews: 0, TotalWebsiteVisitors: 0, AvgConversionRate: 16,
		},
	}
	d := Deltas(s)
	if len(d) != len(AllMetrics) {
		t.Fatalf("got %d deltas", len(d))
	}
	want := map[Metric]models.Delta{
		MetricRevenue:        {Value: 20, IsPositive: true},
		MetricCalls:          {Value: 50, IsPositive: false},
		MetricShows:          {Value: 0, IsPositive: true},
		MetricViews:          {Value: 0, IsPositive: true},
		MetricVisitors:       {Value: 100, IsPositive: true},
		MetricConversionRate: {Value: 25, IsPositive: false},
	}
	for m, w := range want {
		if d[m] != w {
			t.Errorf("%s: got %+v want %+v", m, d[m], w)
		}
	}
	if got := DeltaFor(s, Metric("bogus")); got != (models.Delta{Value: 0, IsPositive: true}) {
		t.Errorf("unknown metric: got %+v", got)
	}
}
