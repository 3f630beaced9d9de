package metrics

import (
	"math"
	"sort"

	"github.com/AngelCh415/funnel-dash/internal/models"
)

type FunnelStage struct {
	Name       string  `json:"name"`
	Value      int64   `json:"value"`
	Percentage float64 `json:"percentage"`
}

type Funnel struct {
	Stages          []FunnelStage `json:"stages"`
	ShowUpRate      float64       `json:"showUpRate"`
	EstimatedClosed int64         `json:"estimatedClosed"`
}

// BuildFunnel walks views -> visitors -> booked -> shows -> closed. Each
// stage is expressed as a share of views.
func BuildFunnel(s models.PeriodSummary) Funnel {
	closed := int64(math.Round(float64(s.TotalCalls) * s.AvgConversionRate / 100))
	views := float64(s.TotalViews)
	pct := func(v int64) float64 { return round1(safeDivF(float64(v), views) * 100) }

	f := Funnel{
		ShowUpRate:      round1(safeDivF(float64(s.TotalShows), float64(s.TotalCalls)) * 100),
		EstimatedClosed: closed,
	}
	f.Stages = []FunnelStage{
		{Name: "YouTube Views", Value: s.TotalViews, Percentage: pct(s.TotalViews)},
		{Name: "Website Visitors", Value: s.TotalWebsiteVisitors, Percentage: pct(s.TotalWebsiteVisitors)},
		{Name: "Calls Booked", Value: s.TotalCalls, Percentage: pct(s.TotalCalls)},
		{Name: "Shows", Value: s.TotalShows, Percentage: pct(s.TotalShows)},
		{Name: "Closed (est.)", Value: closed, Percentage: pct(closed)},
	}
	return f
}

type RegionShare struct {
	Region       string  `json:"region"`
	Visitors     int64   `json:"visitors"`
	ShareOfTotal float64 `json:"shareOfTotal"`
	ShareOfMax   float64 `json:"shareOfMax"`
}

// RegionBreakdown orders regions by visitors, largest first, ties by name.
func RegionBreakdown(totals map[string]int64) []RegionShare {
	var sum, top int64
	for _, n := range totals {
		sum += n
		if n > top {
			top = n
		}
	}
	out := make([]RegionShare, 0, len(totals))
	for name, n := range totals {
		out = append(out, RegionShare{
			Region:       name,
			Visitors:     n,
			ShareOfTotal: round1(safeDivF(float64(n), float64(sum)) * 100),
			ShareOfMax:   round1(safeDivF(float64(n), float64(top)) * 100),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Visitors != out[j].Visitors {
			return out[i].Visitors > out[j].Visitors
		}
		return out[i].Region < out[j].Region
	})
	return out
}
