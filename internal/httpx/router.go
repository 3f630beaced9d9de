package httpx

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker/v2"

	"github.com/AngelCh415/funnel-dash/internal/ingest"
	"github.com/AngelCh415/funnel-dash/internal/metrics"
	"github.com/AngelCh415/funnel-dash/internal/report"
	"github.com/AngelCh415/funnel-dash/internal/utils"
)

const DataSourceHeader = "X-Data-Source"

// Pinger is satisfied by every statistics provider.
type Pinger interface {
	Ping(ctx context.Context) error
}

// breaker is implemented by providers guarded by a circuit breaker.
type breaker interface {
	State() gobreaker.State
}

type Options struct {
	// Ready backs /readyz; nil means always ready.
	Ready             Pinger
	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
}

type handlers struct {
	log *slog.Logger
	svc *metrics.Service
	exp *ingest.Exporter
}

func NewRouter(log *slog.Logger, svc *metrics.Service, exp *ingest.Exporter, opt Options) http.Handler {
	h := &handlers{log: log, svc: svc, exp: exp}

	mux := chi.NewRouter()
	mux.Use(utils.RequestID)
	mux.Use(utils.Logger(log))
	mux.Use(utils.Metrics)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: opt.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", utils.RequestIDHeader},
		ExposedHeaders: []string{utils.RequestIDHeader, DataSourceHeader},
		MaxAge:         300,
	}))

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
	mux.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if b, ok := opt.Ready.(breaker); ok && b.State() == gobreaker.StateOpen {
			http.Error(w, "not ready: provider circuit open", http.StatusServiceUnavailable)
			return
		}
		if opt.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := opt.Ready.Ping(ctx); err != nil {
				log.Warn("readiness check failed", slog.String("err", err.Error()))
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(200)
		w.Write([]byte("ready"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	mux.Group(func(r chi.Router) {
		if !opt.RateLimitDisabled && opt.RateLimitRequests > 0 {
			r.Use(httprate.LimitByIP(opt.RateLimitRequests, opt.RateLimitWindow))
		}
		r.Get("/api/dashboard", h.dashboard)
		r.Get("/api/dashboard/current", h.current)
		r.Get("/api/summary", h.summary)
		r.Get("/api/regions", h.regions)
		r.Get("/api/videos", h.videos)
		r.Get("/api/report.csv", h.reportCSV)
		r.Get("/api/report.xlsx", h.reportXLSX)
		r.Post("/export/run", h.export)
	})

	return mux
}

// dashboard is a time-range selection: it refreshes and commits the view.
func (h *handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	rng, ok := parseRange(w, r)
	if !ok {
		return
	}
	d, err := h.svc.Refresh(r.Context(), rng)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set(DataSourceHeader, string(d.Source))
	h.writeJSON(w, r, d)
}

func (h *handlers) current(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Current()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set(DataSourceHeader, string(d.Source))
	h.writeJSON(w, r, d)
}

func (h *handlers) summary(w http.ResponseWriter, r *http.Request) {
	d, ok := h.load(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, r, map[string]any{
		"range":          d.Range,
		"source":         d.Source,
		"aggregatedData": d.Summary,
		"changes":        d.Deltas,
	})
}

func (h *handlers) regions(w http.ResponseWriter, r *http.Request) {
	d, ok := h.load(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, r, metrics.FilterRegions(d.Regions, r.URL.Query()))
}

func (h *handlers) videos(w http.ResponseWriter, r *http.Request) {
	all, err := h.svc.Videos(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, metrics.QueryVideos(all, r.URL.Query()))
}

func (h *handlers) reportCSV(w http.ResponseWriter, r *http.Request) {
	d, ok := h.load(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="dashboard-`+string(d.Range)+`.csv"`)
	if err := report.WriteCSV(w, d); err != nil {
		h.log.Error("write csv report", slog.String("err", err.Error()))
	}
}

func (h *handlers) reportXLSX(w http.ResponseWriter, r *http.Request) {
	d, ok := h.load(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="dashboard-`+string(d.Range)+`.xlsx"`)
	if err := report.WriteXLSX(w, d); err != nil {
		h.log.Error("write xlsx report", slog.String("err", err.Error()))
	}
}

func (h *handlers) export(w http.ResponseWriter, r *http.Request) {
	d, ok := h.load(w, r)
	if !ok {
		return
	}
	n, err := h.exp.Export(r.Context(), d)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, map[string]any{"exported": n, "range": d.Range, "source": d.Source})
}

// load builds a view for ?range= without committing it.
func (h *handlers) load(w http.ResponseWriter, r *http.Request) (metrics.Dashboard, bool) {
	rng, ok := parseRange(w, r)
	if !ok {
		return metrics.Dashboard{}, false
	}
	d, err := h.svc.Load(r.Context(), rng)
	if err != nil {
		h.fail(w, r, err)
		return metrics.Dashboard{}, false
	}
	w.Header().Set(DataSourceHeader, string(d.Source))
	return d, true
}

func parseRange(w http.ResponseWriter, r *http.Request) (metrics.TimeRange, bool) {
	rng, err := metrics.ParseTimeRangeStrict(r.URL.Query().Get("range"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	return rng, true
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= 500 {
		h.log.Error("request failed", slog.String("path", r.URL.Path), slog.String("rid", utils.RID(r.Context())), slog.String("err", err.Error()))
	}
	http.Error(w, err.Error(), code)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, metrics.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, metrics.ErrNoView):
		return http.StatusNotFound
	case errors.Is(err, ingest.ErrSinkNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, metrics.ErrProvider):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		var se *ingest.StatusError
		if errors.As(err, &se) {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	}
}

// writeJSON encodes into a buffer first; a failed encode becomes a 500.
func (h *handlers) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", " ")
	if err := enc.Encode(v); err != nil {
		h.log.Error("encode response", slog.String("path", r.URL.Path), slog.String("rid", utils.RID(r.Context())), slog.String("err", err.Error()))
		w.Header().Del(DataSourceHeader)
		http.Error(w, "could not encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(buf.Bytes())
}
