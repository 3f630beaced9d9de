package metrics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/AngelCh415/funnel-dash/internal/models"
	"github.com/AngelCh415/funnel-dash/internal/synthetic"
)

var fixedNow = time.Date(2025, 6, 30, 9, 0, 0, 0, time.UTC)

type fakeProvider struct {
	stats  func(ctx context.Context, from, to time.Time) ([]models.DailyStatistic, error)
	videos func(ctx context.Context) ([]models.VideoRecord, error)
}

func (f fakeProvider) QueryStatistics(ctx context.Context, from, to time.Time) ([]models.DailyStatistic, error) {
	return f.stats(ctx, from, to)
}

func (f fakeProvider) QueryVideos(ctx context.Context) ([]models.VideoRecord, error) {
	if f.videos == nil {
		return nil, nil
	}
	return f.videos(ctx)
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestService(p Provider, opt Options) *Service {
	opt.Now = func() time.Time { return fixedNow }
	return NewService(p, synthetic.New(42), quietLogger(), opt)
}

func TestLoadFromProvider(t *testing.T) {
	cur, prev := Windows(fixedNow, 7)
	p := fakeProvider{stats: func(_ context.Context, from, to time.Time) ([]models.DailyStatistic, error) {
		switch {
		case from.Equal(cur.From) && to.Equal(cur.To):
			return []models.DailyStatistic{
				stat("2025-06-29", "1000", 10, 5, "20%"),
				stat("2025-06-28", "500", 5, 2, "10%"),
			}, nil
		case from.Equal(prev.From) && to.Equal(prev.To):
			return []models.DailyStatistic{stat("2025-06-20", "1200", 10, 10, "15%")}, nil
		}
		t.Errorf("unexpected window %v..%v", from, to)
		return nil, nil
	}}
	svc := newTestService(p, Options{Fallback: true, FallbackOnEmpty: true})

	d, err := svc.Load(context.Background(), Range7d)
	if err != nil {
		t.Fatal(err)
	}
	if d.Source != SourceProvider {
		t.Fatalf("source: got %s", d.Source)
	}
	if d.Summary.TotalRevenue.IntPart() != 1500 || d.Summary.AvgConversionRate != 15 {
		t.Fatalf("summary: %+v", d.Summary.PeriodTotals)
	}
	if got := d.Deltas[MetricRevenue]; got.Value != 25 || !got.IsPositive {
		t.Fatalf("revenue delta: %+v", got)
	}
	if d.Latest == nil || d.Latest.Date.Day() != 29 {
		t.Fatalf("latest: %+v", d.Latest)
	}
	if d.Videos == nil {
		t.Fatal("videos should be non-nil")
	}
}

func TestLoadFallsBackOnError(t *testing.T) {
	p := fakeProvider{stats: func(context.Context, time.Time, time.Time) ([]models.DailyStatistic, error) {
		return nil, errors.New("connection refused")
	}}
	svc := newTestService(p, Options{Fallback: true, FallbackOnEmpty: true})

	d, err := svc.Load(context.Background(), Range7d)
	if err != nil {
		t.Fatal(err)
	}
	if d.Source != SourceSynthetic {
		t.Fatalf("source: got %s", d.Source)
	}
	if len(d.Summary.TrendSeries) != 7 {
		t.Fatalf("trend len: got %d", len(d.Summary.TrendSeries))
	}
	for i := 1; i < len(d.Summary.TrendSeries); i++ {
		if !d.Summary.TrendSeries[i-1].Day.Before(d.Summary.TrendSeries[i].Day) {
			t.Fatal("synthetic trend not ascending")
		}
	}
	if len(d.Videos) == 0 {
		t.Fatal("expected demo videos")
	}
	if d.Summary.TotalRevenue.IsZero() {
		t.Fatal("expected synthetic revenue")
	}
}

func TestLoadEmptyWindow(t *testing.T) {
	empty := fakeProvider{
		stats: func(context.Context, time.Time, time.Time) ([]models.DailyStatistic, error) {
			return []models.DailyStatistic{}, nil
		},
		videos: func(context.Context) ([]models.VideoRecord, error) {
			return []models.VideoRecord{{ID: "real-1", ReportDate: day("2025-06-20")}}, nil
		},
	}

	d, err := newTestService(empty, Options{Fallback: true, FallbackOnEmpty: true}).Load(context.Background(), Range30d)
	if err != nil || d.Source != SourceSynthetic || len(d.Summary.TrendSeries) != 30 {
		t.Fatalf("on-empty fallback: source=%s trend=%d err=%v", d.Source, len(d.Summary.TrendSeries), err)
	}
	if len(d.Videos) != 1 || d.Videos[0].ID != "real-1" {
		t.Fatalf("provider videos replaced on empty window: %+v", d.Videos)
	}

	d, err = newTestService(empty, Options{Fallback: true}).Load(context.Background(), Range30d)
	if err != nil {
		t.Fatal(err)
	}
	if d.Source != SourceEmpty || len(d.Summary.TrendSeries) != 0 || d.Latest != nil {
		t.Fatalf("empty result: source=%s trend=%d", d.Source, len(d.Summary.TrendSeries))
	}
}

func TestLoadWithoutFallbackSurfacesProviderError(t *testing.T) {
	boom := errors.New("401 unauthorized")
	p := fakeProvider{stats: func(context.Context, time.Time, time.Time) ([]models.DailyStatistic, error) {
		return nil, boom
	}}
	_, err := newTestService(p, Options{}).Load(context.Background(), Range7d)
	if !errors.Is(err, ErrProvider) || !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
}

func TestLoadCancelledDoesNotFallBack(t *testing.T) {
	p := fakeProvider{stats: func(ctx context.Context, _, _ time.Time) ([]models.DailyStatistic, error) {
		return nil, ctx.Err()
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestService(p, Options{Fallback: true, FallbackOnEmpty: true}).Load(ctx, Range7d)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
}

func TestCurrentBeforeRefresh(t *testing.T) {
	svc := newTestService(fakeProvider{}, Options{})
	if _, err := svc.Current(); !errors.Is(err, ErrNoView) {
		t.Fatalf("got %v", err)
	}
}

// blockingProvider holds every 7-day query until released or cancelled.
type blockingProvider struct {
	started   chan struct{}
	once      sync.Once
	release   chan struct{}
	ignoreCtx bool
}

func (b *blockingProvider) QueryStatistics(ctx context.Context, from, to time.Time) ([]models.DailyStatistic, error) {
	if to.Sub(from) < 8*24*time.Hour {
		b.once.Do(func() { close(b.started) })
		if b.ignoreCtx {
			<-b.release
			return []models.DailyStatistic{stat("2025-06-29", "1", 1, 1, "1%")}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-b.release:
			return []models.DailyStatistic{stat("2025-06-29", "1", 1, 1, "1%")}, nil
		}
	}
	return []models.DailyStatistic{stat("2025-06-29", "999", 9, 9, "9%")}, nil
}

func (b *blockingProvider) QueryVideos(context.Context) ([]models.VideoRecord, error) {
	return nil, nil
}

func TestRefreshSupersededByNewerSelection(t *testing.T) {
	for _, ignoreCtx := range []bool{false, true} {
		bp := &blockingProvider{started: make(chan struct{}), release: make(chan struct{}), ignoreCtx: ignoreCtx}
		svc := newTestService(bp, Options{Fallback: true, FallbackOnEmpty: true})

		var errA error
		done := make(chan struct{})
		go func() {
			_, errA = svc.Refresh(context.Background(), Range7d)
			close(done)
		}()
		<-bp.started

		d, err := svc.Refresh(context.Background(), Range30d)
		if err != nil {
			t.Fatalf("newer refresh: %v", err)
		}
		close(bp.release)
		<-done

		if !errors.Is(errA, ErrSuperseded) {
			t.Fatalf("ignoreCtx=%v: older refresh got %v", ignoreCtx, errA)
		}
		cur, err := svc.Current()
		if err != nil {
			t.Fatal(err)
		}
		if cur.Range != Range30d || cur.Generation != d.Generation || cur.Source != SourceProvider {
			t.Fatalf("ignoreCtx=%v: view overwritten: %+v", ignoreCtx, cur.Range)
		}
	}
}
