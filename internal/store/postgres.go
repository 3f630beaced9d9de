package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/AngelCh415/funnel-dash/internal/models"
	"github.com/AngelCh415/funnel-dash/internal/telemetry"
	"github.com/AngelCh415/funnel-dash/internal/utils"
)

const (
	providerName = "postgres"

	statisticsQuery = `SELECT date, total_stats, total_youtube_stats_in_30_days, visitors_by_region,
       website_visitors, all_time_views, all_time_subs
FROM statistics
WHERE date >= $1 AND date <= $2
ORDER BY date DESC`

	videosQuery = `SELECT id::text, report_date, top_videos, total_stats, revenue
FROM videos
ORDER BY report_date DESC`
)

// Postgres reads the statistics and videos tables directly.
type Postgres struct {
	db  *sql.DB
	log *slog.Logger
}

// OpenPostgres opens dsn and pings it under b.
func OpenPostgres(ctx context.Context, dsn string, b utils.Backoff, log *slog.Logger) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxIdleTime(5 * time.Minute)

	err = b.Do(ctx, func(i int) error {
		if err := db.PingContext(ctx); err != nil {
			log.Warn("postgres not reachable", slog.Int("attempt", i+1), slog.String("err", err.Error()))
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}
	return &Postgres{db: db, log: log}, nil
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) QueryStatistics(ctx context.Context, from, to time.Time) (out []models.DailyStatistic, err error) {
	defer observe("statistics", time.Now(), &err)

	rows, err := p.db.QueryContext(ctx, statisticsQuery, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("postgres statistics: %w", err)
	}
	defer rows.Close()

	out = []models.DailyStatistic{}
	for rows.Next() {
		var r statRow
		if err := rows.Scan(&r.date, &r.totalStats, &r.youtube, &r.regions, &r.visitors, &r.allViews, &r.allSubs); err != nil {
			return nil, fmt.Errorf("postgres statistics scan: %w", err)
		}
		d, err := r.model()
		if err != nil {
			p.log.Warn("skipping malformed statistics row", slog.Time("date", r.date), slog.String("err", err.Error()))
			continue
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres statistics: %w", err)
	}
	return out, nil
}

func (p *Postgres) QueryVideos(ctx context.Context) (out []models.VideoRecord, err error) {
	defer observe("videos", time.Now(), &err)

	rows, err := p.db.QueryContext(ctx, videosQuery)
	if err != nil {
		return nil, fmt.Errorf("postgres videos: %w", err)
	}
	defer rows.Close()

	out = []models.VideoRecord{}
	for rows.Next() {
		var r videoRow
		if err := rows.Scan(&r.id, &r.reportDate, &r.topVideos, &r.totalStats, &r.revenue); err != nil {
			return nil, fmt.Errorf("postgres videos scan: %w", err)
		}
		v, err := r.model()
		if err != nil {
			p.log.Warn("skipping malformed video row", slog.String("id", r.id.String), slog.String("err", err.Error()))
			continue
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres videos: %w", err)
	}
	return out, nil
}

// statRow is one scanned statistics row; jsonb columns arrive as raw bytes.
type statRow struct {
	date       time.Time
	totalStats []byte
	youtube    []byte
	regions    []byte
	visitors   sql.NullInt64
	allViews   sql.NullInt64
	allSubs    sql.NullInt64
}

func (r statRow) model() (models.DailyStatistic, error) {
	d := models.DailyStatistic{
		Date:         models.Date{Time: r.date.UTC()},
		AllTimeViews: r.allViews.Int64,
		AllTimeSubs:  r.allSubs.Int64,
	}
	if len(r.totalStats) > 0 {
		d.TotalStats = &models.TotalStats{}
		if err := decodeJSONB(r.totalStats, d.TotalStats); err != nil {
			return d, fmt.Errorf("decode total_stats for %s: %w", d.Date.Format("2006-01-02"), err)
		}
	}
	if len(r.youtube) > 0 {
		d.YouTubeStats = &models.YouTubeStats{}
		if err := decodeJSONB(r.youtube, d.YouTubeStats); err != nil {
			return d, fmt.Errorf("decode youtube stats for %s: %w", d.Date.Format("2006-01-02"), err)
		}
	}
	if len(r.regions) > 0 {
		if !json.Valid(r.regions) {
			return d, fmt.Errorf("decode visitors_by_region for %s: invalid json document", d.Date.Format("2006-01-02"))
		}
		d.VisitorsByRegion = models.Counts(r.regions)
	}
	if r.visitors.Valid {
		v := r.visitors.Int64
		d.WebsiteVisitors = &v
	}
	return d, nil
}

type videoRow struct {
	id         sql.NullString
	reportDate time.Time
	topVideos  []byte
	totalStats []byte
	revenue    decimal.NullDecimal
}

func (r videoRow) model() (models.VideoRecord, error) {
	v := models.VideoRecord{
		ID:         r.id.String,
		ReportDate: models.Date{Time: r.reportDate.UTC()},
	}
	if r.revenue.Valid {
		v.Revenue = r.revenue.Decimal
	}
	if len(r.topVideos) > 0 {
		if err := decodeJSONB(r.topVideos, &v.TopVideos); err != nil {
			return v, fmt.Errorf("decode top_videos: %w", err)
		}
	}
	if len(r.totalStats) > 0 {
		if err := decodeJSONB(r.totalStats, &v.TotalStats); err != nil {
			return v, fmt.Errorf("decode video total_stats: %w", err)
		}
	}
	return v, nil
}

// decodeJSONB rejects malformed documents before the lenient field decoders
// run.
func decodeJSONB(b []byte, dst any) error {
	if !json.Valid(b) {
		return errors.New("invalid json document")
	}
	return json.Unmarshal(b, dst)
}

func observe(op string, start time.Time, err *error) {
	telemetry.ProviderDuration.WithLabelValues(providerName, op).Observe(time.Since(start).Seconds())
	outcome := "success"
	if *err != nil {
		outcome = "failure"
	}
	telemetry.ProviderRequests.WithLabelValues(providerName, op, outcome).Inc()
}
