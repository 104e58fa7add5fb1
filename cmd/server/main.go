// Package main is the entrypoint for the errsink collector server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/errsink/errsink/internal/api"
	"github.com/errsink/errsink/internal/api/handler"
	mw "github.com/errsink/errsink/internal/api/middleware"
	"github.com/errsink/errsink/internal/cache"
	"github.com/errsink/errsink/internal/config"
	"github.com/errsink/errsink/internal/ignore"
	"github.com/errsink/errsink/internal/ingest"
	"github.com/errsink/errsink/internal/retention"
	"github.com/errsink/errsink/internal/store"
)

const (
	shutdownTimeout = 30 * time.Second
	migrationsDir   = "migrations"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Self-healing schema creation. A degraded outcome is logged, not
	// fatal; the diagnostics endpoint can retry later.
	pgStore := store.NewPostgresStore(pool, cfg.Database.URL, migrationsDir)
	report := pgStore.EnsureSchema(ctx)
	slog.Info("schema ensured", "strategy", report.Strategy, "healthy", report.Healthy, "degraded", report.Degraded)

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Ingestion pipeline
	ingestSvc := ingest.NewService(pgStore, ignore.NewMatcher(nil), ingest.Config{
		MaxPayloadBytes:    cfg.Ingest.MaxPayloadBytes,
		RateLimitPerMinute: cfg.Ingest.RateLimitPerMinute,
	}, slog.Default())

	// 6. Retention scheduler
	retentionJob := retention.NewJob(pgStore, redisCache, "", slog.Default())
	if err := retentionJob.Start(); err != nil {
		return fmt.Errorf("start retention job: %w", err)
	}
	defer retentionJob.Stop()

	// 7. Build router with dependencies
	deps := api.Dependencies{
		Auth:           mw.NewAuth(cfg.Auth.IngestToken, cfg.Auth.AdminTokenHash),
		LoginRateLimit: mw.NewRateLimit(redisCache, cfg.Ingest.RateLimitPerMinute*2),
		AdminRateLimit: mw.NewRateLimit(redisCache, cfg.Ingest.AdminRequestsPerMinute),

		HealthHandler: handler.NewHealthHandler(pgStore, redisCache),

		IngestHandler: handler.NewIngestHandler(ingestSvc, cfg.Ingest.MaxPayloadBytes),

		ListErrorsHandler:  handler.NewListErrorsHandler(pgStore),
		GetErrorHandler:    handler.NewGetErrorHandler(pgStore),
		DeleteErrorHandler: handler.NewDeleteErrorHandler(pgStore, redisCache),
		ClearErrorsHandler: handler.NewClearErrorsHandler(pgStore, redisCache),
		ErrorStatsHandler:  handler.NewErrorStatsHandler(pgStore, redisCache),

		ListPatternsHandler:  handler.NewListPatternsHandler(pgStore),
		CreatePatternHandler: handler.NewCreatePatternHandler(pgStore),
		TogglePatternHandler: handler.NewTogglePatternHandler(pgStore),
		DeletePatternHandler: handler.NewDeletePatternHandler(pgStore),

		GetSettingsHandler:    handler.NewGetSettingsHandler(pgStore),
		UpdateSettingsHandler: handler.NewUpdateSettingsHandler(pgStore),

		LoginHistoryHandler: handler.NewLoginHistoryHandler(pgStore),
		LoginStatsHandler:   handler.NewLoginStatsHandler(pgStore, redisCache),
		TrackLoginHandler:   handler.NewTrackLoginHandler(ingestSvc),

		DiagnosticsHandler: handler.NewDiagnosticsHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
