// Package synthetic fabricates plausible statistics rows so the dashboard
// stays populated when the store is empty or unreachable. Nothing it returns
// is real data and none of it should be persisted or exported as such.
package synthetic

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AngelCh415/funnel-dash/internal/models"
)

const (
	// PreviousScale lowers the previous window so comparisons trend upward.
	PreviousScale = 0.85
	// PreviousDamping narrows the spread of a few previous-window fields.
	PreviousDamping = 0.9

	AllTimeViews = 5381510
	AllTimeSubs  = 138000
)

type Period int

const (
	Current Period = iota
	Previous
)

func (p Period) factors() (scale, damp float64) {
	if p == Previous {
		return PreviousScale, PreviousDamping
	}
	return 1, 1
}

// Generator is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// New seeds a PCG source; seed 0 picks one from the clock.
func New(seed uint64) *Generator {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Generator{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Rows returns one row per day starting at from, newest first, matching the
// order the store delivers.
func (g *Generator) Rows(from time.Time, days int, p Period) []models.DailyStatistic {
	if days <= 0 {
		return []models.DailyStatistic{}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]models.DailyStatistic, 0, days)
	for i := days - 1; i >= 0; i-- {
		out = append(out, g.row(from.AddDate(0, 0, i), p))
	}
	return out
}

func (g *Generator) row(day time.Time, p Period) models.DailyStatistic {
	m, v := p.factors()
	visitors := g.draw(20, 50, m)
	return models.DailyStatistic{
		Date: models.Date{Time: day},
		TotalStats: &models.TotalStats{
			Shows:          g.draw(5, 10, m*v),
			Views:          g.draw(2000, 5000, m),
			Revenue:        decimal.NewFromInt(g.draw(1000, 3000, m)),
			Cancelled:      g.draw(1, 3, v),
			CallsBooked:    g.draw(5, 15, m),
			CallsClosed:    g.draw(1, 3, m*v),
			CallsAccepted:  g.draw(3, 8, m),
			ConversionRate: models.PercentText(fmt.Sprintf("%.1f%%", (g.rnd.Float64()*10+10)*m)),
		},
		YouTubeStats: &models.YouTubeStats{
			Likes:    g.draw(100, 200, m),
			Views:    g.draw(2000, 5000, m),
			Comments: g.draw(20, 50, m),
		},
		VisitorsByRegion: map[string]int64{
			models.RegionAsia:         g.draw(10, 20, m),
			models.RegionAfrica:       g.draw(10, 20, m),
			models.RegionEurope:       g.draw(10, 20, m),
			models.RegionAustralia:    g.draw(5, 15, m),
			models.RegionMiddleEast:   g.draw(5, 15, m),
			models.RegionNorthAmerica: g.draw(15, 25, m),
			models.RegionSouthAmerica: g.draw(10, 20, m),
		},
		WebsiteVisitors: &visitors,
		AllTimeViews:    AllTimeViews,
		AllTimeSubs:     AllTimeSubs,
	}
}

// Videos returns a single demo report with all five ranked slots filled.
func (g *Generator) Videos(reportDate time.Time) []models.VideoRecord {
	g.mu.Lock()
	defer g.mu.Unlock()

	var total models.TotalStats
	total.Revenue = decimal.Zero
	slots := make([]*models.VideoSlot, 5)
	for i := range slots {
		st := models.TotalStats{
			Shows:         g.draw(5, 8, 1),
			Views:         g.draw(15000, 17000, 1),
			Revenue:       decimal.NewFromInt(g.draw(4000, 8000, 1)),
			Cancelled:     g.draw(1, 3, 1),
			CallsBooked:   g.draw(7, 8, 1),
			CallsClosed:   g.draw(1, 3, 1),
			CallsAccepted: g.draw(4, 4, 1),
		}
		st.ConversionRate = percentOf(st.CallsClosed, st.CallsBooked)
		slots[i] = &models.VideoSlot{
			Stats:       st,
			Title:       fmt.Sprintf("Demo video %d", i+1),
			Reason:      "synthetic placeholder",
			VideoID:     fmt.Sprintf("demo-%d", i+1),
			PublishedAt: models.Date{Time: reportDate.AddDate(0, 0, -2*(i+1))},
		}
		total.Shows += st.Shows
		total.Views += st.Views
		total.Revenue = total.Revenue.Add(st.Revenue)
		total.Cancelled += st.Cancelled
		total.CallsBooked += st.CallsBooked
		total.CallsClosed += st.CallsClosed
		total.CallsAccepted += st.CallsAccepted
	}
	total.ConversionRate = percentOf(total.CallsClosed, total.CallsBooked)

	return []models.VideoRecord{{
		ID:         "demo",
		ReportDate: models.Date{Time: reportDate},
		TopVideos: models.TopVideos{
			VideoOne: slots[0], VideoTwo: slots[1], VideoThree: slots[2], VideoFour: slots[3], VideoFive: slots[4],
		},
		TotalStats: total,
		Revenue:    total.Revenue,
	}}
}

// draw returns floor((rand*width + lo) * scale).
func (g *Generator) draw(lo, width, scale float64) int64 {
	return int64(math.Floor((g.rnd.Float64()*width + lo) * scale))
}

func percentOf(n, d int64) models.PercentText {
	if d <= 0 {
		return "0.00%"
	}
	return models.PercentText(fmt.Sprintf("%.2f%%", float64(n)/float64(d)*100))
}
