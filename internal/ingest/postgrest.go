package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/AngelCh415/funnel-dash/internal/models"
	"github.com/AngelCh415/funnel-dash/internal/telemetry"
	"github.com/AngelCh415/funnel-dash/internal/utils"
)

const providerName = "postgrest"

type PostgRESTConfig struct {
	URL             string
	APIKey          string
	Retries         int
	RetryBase       time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// PostgREST reads the statistics and videos tables through a PostgREST
// (Supabase) endpoint.
type PostgREST struct {
	base  string
	hdr   http.Header
	c     HTTPClient
	retry utils.Backoff
	cb    *gobreaker.CircuitBreaker[any]
	log   *slog.Logger
}

func NewPostgREST(c HTTPClient, cfg PostgRESTConfig, log *slog.Logger) *PostgREST {
	hdr := http.Header{}
	if cfg.APIKey != "" {
		hdr.Set("apikey", cfg.APIKey)
		hdr.Set("Authorization", "Bearer "+cfg.APIKey)
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}

	telemetry.BreakerState.WithLabelValues(providerName).Set(0)
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        providerName,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// a caller giving up says nothing about the upstream
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("circuit breaker state change", slog.String("name", name),
				slog.String("from", from.String()), slog.String("to", to.String()))
			telemetry.BreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})

	return &PostgREST{
		base:  strings.TrimRight(cfg.URL, "/"),
		hdr:   hdr,
		c:     c,
		retry: utils.NewBackoff(cfg.RetryBase, cfg.Retries),
		cb:    cb,
		log:   log,
	}
}

func (p *PostgREST) QueryStatistics(ctx context.Context, from, to time.Time) ([]models.DailyStatistic, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Add("date", "gte."+from.UTC().Format(time.RFC3339))
	q.Add("date", "lte."+to.UTC().Format(time.RFC3339))
	q.Set("order", "date.desc")

	var raw []json.RawMessage
	if err := p.get(ctx, "statistics", "statistics?"+q.Encode(), &raw); err != nil {
		return nil, err
	}
	return decodeRows[models.DailyStatistic](p.log, "statistics", raw), nil
}

func (p *PostgREST) QueryVideos(ctx context.Context) ([]models.VideoRecord, error) {
	var raw []json.RawMessage
	if err := p.get(ctx, "videos", "videos?select=*&order=report_date.desc", &raw); err != nil {
		return nil, err
	}
	return decodeRows[models.VideoRecord](p.log, "videos", raw), nil
}

// Ping asks for a single statistics date.
func (p *PostgREST) Ping(ctx context.Context) error {
	var rows []struct {
		Date models.Date `json:"date"`
	}
	return p.get(ctx, "ping", "statistics?select=date&limit=1", &rows)
}

func (p *PostgREST) State() gobreaker.State { return p.cb.State() }

func (p *PostgREST) get(ctx context.Context, op, path string, dst any) error {
	if p.base == "" {
		return ErrEmptyURL
	}
	start := time.Now()
	_, err := p.cb.Execute(func() (any, error) {
		return nil, GetJSONWithRetry(ctx, p.c, p.retry, p.base+"/rest/v1/"+path, p.hdr, dst)
	})
	telemetry.ProviderDuration.WithLabelValues(providerName, op).Observe(time.Since(start).Seconds())

	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = "rejected"
	default:
		outcome = "failure"
	}
	telemetry.ProviderRequests.WithLabelValues(providerName, op, outcome).Inc()
	if err != nil {
		return fmt.Errorf("postgrest %s: %w", op, err)
	}
	return nil
}

// decodeRows drops rows that cannot be read at all; the rest of the window
// still counts.
func decodeRows[T any](log *slog.Logger, op string, raw []json.RawMessage) []T {
	out := make([]T, 0, len(raw))
	for i, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			log.Warn("skipping malformed row", slog.String("operation", op), slog.Int("index", i), slog.String("err", err.Error()))
			continue
		}
		out = append(out, v)
	}
	return out
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
