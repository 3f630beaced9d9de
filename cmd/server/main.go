package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/AngelCh415/funnel-dash/internal/config"
	"github.com/AngelCh415/funnel-dash/internal/httpx"
	"github.com/AngelCh415/funnel-dash/internal/ingest"
	"github.com/AngelCh415/funnel-dash/internal/logging"
	"github.com/AngelCh415/funnel-dash/internal/metrics"
	"github.com/AngelCh415/funnel-dash/internal/store"
	"github.com/AngelCh415/funnel-dash/internal/synthetic"
	"github.com/AngelCh415/funnel-dash/internal/utils"
)

type provider interface {
	metrics.Provider
	httpx.Pinger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", slog.String("err", err.Error()))
		os.Exit(1)
	}

	logger := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cl := ingest.NewHTTPClient(cfg.Provider.Timeout)
	p, closeFn, err := newProvider(ctx, cfg, cl, logger)
	if err != nil {
		logger.Error("provider", slog.String("kind", cfg.Provider.Kind), slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer closeFn()

	svc := metrics.NewService(p, synthetic.New(cfg.Fallback.Seed), logger, metrics.Options{
		Fallback:        cfg.Fallback.Enabled,
		FallbackOnEmpty: cfg.Fallback.OnEmpty,
	})
	exp := ingest.NewExporter(cl, cfg.Export.SinkURL, cfg.Export.SinkSecret, logger)

	r := httpx.NewRouter(logger, svc, exp, httpx.Options{
		Ready:             p,
		CORSOrigins:       cfg.Security.CORSOrigins,
		RateLimitRequests: cfg.Security.RateLimitRequests,
		RateLimitWindow:   cfg.Security.RateLimitWindow,
		RateLimitDisabled: cfg.Security.RateLimitDisabled,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	if cfg.Server.WarmRange != "" {
		go func() {
			rng := metrics.ParseTimeRange(cfg.Server.WarmRange)
			d, err := svc.Refresh(ctx, rng)
			if err != nil {
				logger.Warn("warm-up refresh failed", slog.String("range", string(rng)), slog.String("err", err.Error()))
				return
			}
			logger.Info("warm-up refresh done", slog.String("range", string(rng)), slog.String("source", string(d.Source)))
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", slog.String("err", err.Error()))
		}
	}()

	logger.Info("starting server",
		slog.String("port", cfg.Server.Port),
		slog.String("provider", cfg.Provider.Kind),
		slog.Bool("fallback", cfg.Fallback.Enabled))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", slog.String("err", err.Error()))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func newProvider(ctx context.Context, cfg *config.Config, cl ingest.HTTPClient, log *slog.Logger) (provider, func(), error) {
	switch cfg.Provider.Kind {
	case config.ProviderPostgres:
		b := utils.NewBackoff(cfg.Provider.RetryBase, cfg.Provider.Retries)
		pg, err := store.OpenPostgres(ctx, cfg.Provider.DSN, b, log)
		if err != nil {
			return nil, nil, err
		}
		return pg, func() { pg.Close() }, nil
	case config.ProviderMemory:
		st := store.NewMemoryStore()
		if cfg.Provider.SeedFile != "" {
			n, err := st.LoadFile(cfg.Provider.SeedFile)
			if err != nil {
				return nil, nil, err
			}
			log.Info("memory store seeded", slog.String("file", cfg.Provider.SeedFile), slog.Int("rows", n))
		}
		return st, func() {}, nil
	default:
		return ingest.NewPostgREST(cl, ingest.PostgRESTConfig{
			URL:             cfg.Provider.URL,
			APIKey:          cfg.Provider.APIKey,
			Retries:         cfg.Provider.Retries,
			RetryBase:       cfg.Provider.RetryBase,
			BreakerFailures: cfg.Provider.BreakerFailures,
			BreakerCooldown: cfg.Provider.BreakerCooldown,
		}, log), func() {}, nil
	}
}
