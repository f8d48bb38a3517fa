package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"archie-core-marketplace-layer/internal/application"
	"archie-core-marketplace-layer/internal/bootstrap"
	"archie-core-marketplace-layer/internal/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "discovery-worker").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger = logger.Level(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer container.Close()

	container.Health.Watch(ctx, container.Events)

	server := &http.Server{Addr: cfg.Server.Address(), Handler: healthRouter()}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("Serving metrics and health")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Health server stopped")
		}
	}()

	runSchedule(ctx, container.Discovery, cfg.Discovery, logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Health server shutdown failed")
	}
	logger.Info().Msg("Discovery worker stopped")
}

func healthRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// runSchedule syncs outdated channels now and then every interval until ctx is done.
// A batch in progress finishes before the function returns.
func runSchedule(ctx context.Context, discovery *application.DiscoveryService, cfg config.DiscoveryConfig, logger zerolog.Logger) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		summary, err := discovery.SyncOutdated(ctx, cfg.StaleAfter)
		if err != nil {
			logger.Error().Err(err).Msg("Scheduled discovery failed")
		} else {
			logger.Info().
				Str("runId", summary.RunID).
				Int("processed", summary.ProcessedAccounts).
				Int("failed", summary.Failed).
				Msg("Scheduled discovery finished")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
