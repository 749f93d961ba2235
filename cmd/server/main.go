// Package main is the entrypoint for the Anomalyzer API server.
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

	"github.com/google/uuid"

	"github.com/kiranshivaraju/anomalyzer/internal/ai"
	"github.com/kiranshivaraju/anomalyzer/internal/analyzer"
	"github.com/kiranshivaraju/anomalyzer/internal/api"
	"github.com/kiranshivaraju/anomalyzer/internal/api/handler"
	mw "github.com/kiranshivaraju/anomalyzer/internal/api/middleware"
	"github.com/kiranshivaraju/anomalyzer/internal/api/response"
	"github.com/kiranshivaraju/anomalyzer/internal/cache"
	"github.com/kiranshivaraju/anomalyzer/internal/changes"
	"github.com/kiranshivaraju/anomalyzer/internal/config"
	"github.com/kiranshivaraju/anomalyzer/internal/correlator"
	"github.com/kiranshivaraju/anomalyzer/internal/evidence"
	"github.com/kiranshivaraju/anomalyzer/internal/history"
	"github.com/kiranshivaraju/anomalyzer/internal/rules"
	"github.com/kiranshivaraju/anomalyzer/internal/store"
)

const shutdownTimeout = 30 * time.Second

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
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

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

	// 5. Create AI provider and adapter
	aiProvider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	adapter := ai.NewAdapter(aiProvider, cfg.AI)
	slog.Info("AI provider initialized", "provider", aiProvider.Name())

	// 6. Create store and resolve the default tenant
	pgStore := store.NewPostgresStore(pool)

	defaultTenant, err := pgStore.GetDefaultTenant(ctx)
	if err != nil {
		return fmt.Errorf("resolve default tenant: %w", err)
	}

	// 7. Build the analysis pipeline
	historyClient := history.NewHTTPClient(cfg.Sources.HistoryBaseURL,
		cfg.Sources.Username, cfg.Sources.Password, cfg.Sources.GatherTimeout)
	changesClient := changes.NewHTTPClient(cfg.Sources.ChangesBaseURL,
		cfg.Sources.Username, cfg.Sources.Password, cfg.Sources.GatherTimeout)

	// Startup probe only. Evidence gathering tolerates a downed source, so a
	// failure here is worth a warning, not an exit.
	if err := historyClient.Ready(ctx); err != nil {
		slog.Warn("history service not ready at startup", "error", err)
	}

	gatherer := evidence.NewGatherer(historyClient, changesClient,
		cfg.Sources.GatherTimeout, cfg.Sources.HistoryWindow, cfg.Engine.ChangeLookback)
	ruleEngine := rules.NewEngine(cfg.Engine)
	changeCorrelator := correlator.NewCorrelator(cfg.Engine)

	svc := analyzer.NewService(gatherer, adapter, ruleEngine, changeCorrelator,
		pgStore, redisCache, cfg.Database.PersistTimeout)

	// 8. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler: healthHandler(pgStore, redisCache, svc, defaultTenant.ID),

		AnalyzeHandler:       handler.NewAnalyzeHandler(svc),
		GetAnalysisHandler:   handler.NewGetAnalysisHandler(pgStore),
		ListAnalysesHandler:  handler.NewListAnalysesHandler(pgStore),
		FalsePositiveHandler: handler.NewFalsePositiveHandler(svc),
		FPRateHandler:        handler.NewFalsePositiveRateHandler(svc),

		CreateKeyHandler: handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:  handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity and reports the
// 24h false-positive rate for the default tenant.
func healthHandler(s store.Store, c cache.Cache, svc *analyzer.Service, tenantID uuid.UUID) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		body := map[string]any{
			"status":   "ok",
			"services": checks,
		}
		if stats, err := svc.FalsePositiveRate(r.Context(), tenantID, 24*time.Hour); err == nil {
			body["false_positive_rate_24h"] = stats.Rate
		}

		response.JSON(w, body)
	}
}
