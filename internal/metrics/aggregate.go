package metrics

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/AngelCh415/funnel-dash/internal/models"
)

const trendLabelLayout = "Jan 2"

// Aggregate reduces the current and previous windows into a PeriodSummary.
// An empty current window yields the zero summary whatever previous holds;
// callers treat that as "no data", not as a quiet period.
func Aggregate(current, previous []models.DailyStatistic) models.PeriodSummary {
	out := models.PeriodSummary{
		PeriodTotals:   zeroTotals(),
		TrendSeries:    []models.TrendPoint{},
		RegionTotals:   map[string]int64{},
		PreviousPeriod: zeroTotals(),
	}
	if len(current) == 0 {
		return out
	}
	out.PeriodTotals = Totals(current)
	out.PreviousPeriod = Totals(previous)
	out.TrendSeries = trend(current)
	out.RegionTotals = regions(current)
	return out
}

// Totals sums one window and averages its parseable conversion rates.
func Totals(rows []models.DailyStatistic) models.PeriodTotals {
	t := zeroTotals()
	var rateSum float64
	var rateN int
	for _, r := range rows {
		t.TotalRevenue = t.TotalRevenue.Add(r.Revenue())
		t.TotalCalls += r.CallsBooked()
		t.TotalShows += r.Shows()
		t.TotalViews += r.YouTubeViews()
		t.TotalWebsiteVisitors += r.Visitors()
		if v, ok := r.ConversionRate(); ok {
			rateSum += v
			rateN++
		}
	}
	if rateN > 0 {
		t.AvgConversionRate = rateSum / float64(rateN)
	}
	return t
}

func trend(rows []models.DailyStatistic) []models.TrendPoint {
	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = len(rows) - 1 - i
	}
	// input arrives newest first; reversing keeps same-day rows in provider order
	sort.SliceStable(idx, func(a, b int) bool {
		return rows[idx[a]].Date.Before(rows[idx[b]].Date.Time)
	})
	out := make([]models.TrendPoint, 0, len(rows))
	for _, i := range idx {
		r := rows[i]
		p := models.TrendPoint{
			Day:         r.Date.Time,
			Revenue:     r.Revenue(),
			CallsBooked: r.CallsBooked(),
			Shows:       r.Shows(),
		}
		if !r.Date.IsZero() {
			p.Date = r.Date.UTC().Format(trendLabelLayout)
		}
		out = append(out, p)
	}
	return out
}

func regions(rows []models.DailyStatistic) map[string]int64 {
	out := map[string]int64{}
	for _, r := range rows {
		for name, n := range r.VisitorsByRegion {
			if n < 0 {
				n = 0
			}
			out[name] += n
		}
	}
	return out
}

func zeroTotals() models.PeriodTotals {
	return models.PeriodTotals{TotalRevenue: decimal.Zero}
}
