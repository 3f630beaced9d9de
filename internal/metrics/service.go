package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AngelCh415/funnel-dash/internal/models"
	"github.com/AngelCh415/funnel-dash/internal/synthetic"
	"github.com/AngelCh415/funnel-dash/internal/telemetry"
)

var (
	ErrSuperseded = errors.New("dashboard: refresh superseded by a newer selection")
	ErrNoView     = errors.New("dashboard: nothing loaded yet")
	ErrProvider   = errors.New("dashboard: statistics provider failed")
)

// Provider is the read-only view of the statistics store.
type Provider interface {
	// QueryStatistics returns rows dated within [from, to], newest first.
	QueryStatistics(ctx context.Context, from, to time.Time) ([]models.DailyStatistic, error)
	// QueryVideos returns video reports, newest report first.
	QueryVideos(ctx context.Context) ([]models.VideoRecord, error)
}

type Source string

const (
	SourceProvider  Source = "provider"
	SourceSynthetic Source = "synthetic"
	SourceEmpty     Source = "empty"
)

type Options struct {
	// Fallback serves synthetic data when the provider fails.
	Fallback bool
	// FallbackOnEmpty also serves synthetic data when the current window is
	// empty. Without it an empty window is reported as SourceEmpty.
	FallbackOnEmpty bool
	Now             func() time.Time
}

type Dashboard struct {
	Range       TimeRange               `json:"range"`
	Days        int                     `json:"days"`
	Source      Source                  `json:"source"`
	Current     Window                  `json:"currentWindow"`
	Previous    Window                  `json:"previousWindow"`
	Latest      *models.DailyStatistic  `json:"statistics"`
	Summary     models.PeriodSummary    `json:"aggregatedData"`
	Deltas      map[Metric]models.Delta `json:"changes"`
	Funnel      Funnel                  `json:"funnel"`
	Regions     []RegionShare           `json:"regions"`
	Videos      []models.VideoRecord    `json:"videos"`
	GeneratedAt time.Time               `json:"generatedAt"`
	Generation  uint64                  `json:"generation,omitempty"`
}

type Service struct {
	p   Provider
	gen *synthetic.Generator
	log *slog.Logger
	opt Options

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	view       *Dashboard
}

func NewService(p Provider, gen *synthetic.Generator, log *slog.Logger, opt Options) *Service {
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if gen == nil {
		gen = synthetic.New(0)
	}
	return &Service{p: p, gen: gen, log: log, opt: opt}
}

// Load fetches both windows and the video reports, then reduces them. It
// does not touch the view cache.
func (s *Service) Load(ctx context.Context, rng TimeRange) (Dashboard, error) {
	days := rng.Days()
	now := s.opt.Now()
	cur, prev := Windows(now, days)

	var (
		curRows, prevRows []models.DailyStatistic
		videos            []models.VideoRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		curRows, err = s.p.QueryStatistics(gctx, cur.From, cur.To)
		return wrapQuery("current statistics", err)
	})
	g.Go(func() (err error) {
		prevRows, err = s.p.QueryStatistics(gctx, prev.From, prev.To)
		return wrapQuery("previous statistics", err)
	})
	g.Go(func() (err error) {
		videos, err = s.p.QueryVideos(gctx)
		return wrapQuery("videos", err)
	})
	err := g.Wait()
	if ctx.Err() != nil {
		// cancelled by the caller; never paper over that with synthetic rows
		return Dashboard{}, ctx.Err()
	}

	src := SourceProvider
	reason := ""
	switch {
	case err != nil:
		if !s.opt.Fallback {
			return Dashboard{}, fmt.Errorf("%w: %w", ErrProvider, err)
		}
		s.log.Warn("provider failed, serving synthetic data", slog.String("range", string(rng)), slog.String("err", err.Error()))
		reason = "error"
	case len(curRows) == 0:
		if s.opt.Fallback && s.opt.FallbackOnEmpty {
			s.log.Info("no statistics in range, serving synthetic data", slog.String("range", string(rng)))
			reason = "empty"
		} else {
			src = SourceEmpty
		}
	}
	if reason != "" {
		telemetry.Fallbacks.WithLabelValues(reason).Inc()
		curRows = s.gen.Rows(cur.From, days, synthetic.Current)
		prevRows = s.gen.Rows(prev.From, days, synthetic.Previous)
		// an empty window still has real video reports
		if reason == "error" {
			videos = s.gen.Videos(now)
		}
		src = SourceSynthetic
	}
	if videos == nil {
		videos = []models.VideoRecord{}
	}

	s.log.Debug("statistics fetched",
		slog.String("range", string(rng)),
		slog.String("source", string(src)),
		slog.Int("current", len(curRows)),
		slog.Int("previous", len(prevRows)),
		slog.Int("videos", len(videos)))
	telemetry.Loads.WithLabelValues(string(rng), string(src)).Inc()

	sum := Aggregate(curRows, prevRows)
	return Dashboard{
		Range:       rng,
		Days:        days,
		Source:      src,
		Current:     cur,
		Previous:    prev,
		Latest:      latest(curRows),
		Summary:     sum,
		Deltas:      Deltas(sum),
		Funnel:      BuildFunnel(sum),
		Regions:     RegionBreakdown(sum.RegionTotals),
		Videos:      videos,
		GeneratedAt: now,
	}, nil
}

// Refresh is a time-range selection. Starting a refresh cancels the one in
// flight; only the newest refresh may replace the cached view, older ones
// get ErrSuperseded.
func (s *Service) Refresh(ctx context.Context, rng TimeRange) (Dashboard, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	gen := s.generation
	s.cancel = cancel
	s.mu.Unlock()

	d, err := s.Load(ctx, rng)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		telemetry.Superseded.Inc()
		s.log.Debug("refresh superseded", slog.Uint64("generation", gen), slog.Uint64("latest", s.generation))
		return Dashboard{}, ErrSuperseded
	}
	s.cancel = nil
	if err != nil {
		return Dashboard{}, err
	}
	d.Generation = gen
	s.view = &d
	return d, nil
}

// Current returns the last committed view.
func (s *Service) Current() (Dashboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view == nil {
		return Dashboard{}, ErrNoView
	}
	return *s.view, nil
}

// Videos lists video reports straight from the provider.
func (s *Service) Videos(ctx context.Context) ([]models.VideoRecord, error) {
	v, err := s.p.QueryVideos(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProvider, err)
	}
	return v, nil
}

func latest(rows []models.DailyStatistic) *models.DailyStatistic {
	if len(rows) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(rows); i++ {
		if rows[i].Date.After(rows[best].Date.Time) {
			best = i
		}
	}
	r := rows[best]
	return &r
}

func wrapQuery(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("query %s: %w", what, err)
}
