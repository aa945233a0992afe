// Package main is the entrypoint for the XBRCH API server.
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

	"github.com/xbrch/xbrch-saas-platform/internal/ai"
	"github.com/xbrch/xbrch-saas-platform/internal/api"
	"github.com/xbrch/xbrch-saas-platform/internal/api/handler"
	mw "github.com/xbrch/xbrch-saas-platform/internal/api/middleware"
	"github.com/xbrch/xbrch-saas-platform/internal/api/response"
	"github.com/xbrch/xbrch-saas-platform/internal/auth"
	"github.com/xbrch/xbrch-saas-platform/internal/broadcast"
	"github.com/xbrch/xbrch-saas-platform/internal/cache"
	"github.com/xbrch/xbrch-saas-platform/internal/config"
	"github.com/xbrch/xbrch-saas-platform/internal/ledger"
	"github.com/xbrch/xbrch-saas-platform/internal/metrics"
	"github.com/xbrch/xbrch-saas-platform/internal/store"
	"github.com/xbrch/xbrch-saas-platform/internal/website"
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
	// 1. Load config, failing fast on invalid values
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
	if err := store.RunMigrations(cfg.Database.URL, cfg.Server.MigrationsDir); err != nil {
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

	// 5. Create content oracle
	oracle, err := ai.NewOracle(cfg.AI)
	if err != nil {
		return fmt.Errorf("create content oracle: %w", err)
	}
	guard := ai.NewGuard(oracle, cfg.AI.InferenceTimeout)
	slog.Info("content oracle initialized", "provider", oracle.Name(), "model", oracle.Model())

	// 6. Create store and domain services
	pgStore := store.NewPostgresStore(pool)
	usage := ledger.New(pgStore)
	broadcasts := broadcast.NewService(pgStore, usage, guard, redisCache, broadcast.Options{
		ParallelEvaluation: cfg.AI.ParallelEvaluation,
		TokensPerPlatform:  cfg.AI.TokensPerPlatform,
	})
	posts := website.NewService(pgStore, broadcasts, guard)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	clock := func() time.Time { return time.Now().UTC() }

	// 7. Build router with dependencies
	deps := api.Dependencies{
		Auth:      mw.NewAuth(pgStore, tokens),
		RateLimit: mw.NewRateLimit(redisCache, cfg.RateLimit.RequestsPerMinute),

		HealthHandler:  healthHandler(pgStore, redisCache),
		MetricsHandler: metrics.Handler(),

		LoginHandler:          handler.NewLoginHandler(pgStore, tokens, redisCache),
		ChangePasswordHandler: handler.NewChangePasswordHandler(pgStore),

		CreateBroadcastHandler:       handler.NewCreateBroadcastHandler(broadcasts),
		ListBroadcastsHandler:        handler.NewListBroadcastsHandler(pgStore),
		GetBroadcastHandler:          handler.NewGetBroadcastHandler(pgStore),
		DeleteBroadcastHandler:       handler.NewDeleteBroadcastHandler(pgStore),
		UpdateBroadcastStatusHandler: handler.NewUpdateBroadcastStatusHandler(pgStore),
		PublishOutputHandler:         handler.NewPublishOutputHandler(pgStore),

		UsageHandler:     handler.NewUsageHandler(usage),
		ListAuditHandler: handler.NewListAuditHandler(pgStore),

		GetProfileHandler:    handler.NewGetProfileHandler(pgStore),
		UpdateProfileHandler: handler.NewUpdateProfileHandler(pgStore, redisCache),

		CreateWallUpdateHandler: handler.NewCreateWallUpdateHandler(pgStore, redisCache),
		ListWallUpdatesHandler:  handler.NewListWallUpdatesHandler(pgStore),
		GetWallUpdateHandler:    handler.NewGetWallUpdateHandler(pgStore),
		UpdateWallUpdateHandler: handler.NewUpdateWallUpdateHandler(pgStore, redisCache),
		DeleteWallUpdateHandler: handler.NewDeleteWallUpdateHandler(pgStore, redisCache),
		WallStatsHandler:        handler.NewWallStatsHandler(pgStore),
		WallEmbedHandler:        handler.NewWallEmbedHandler(pgStore, cfg.Server.PublicBaseURL),
		PublicWallHandler:       handler.NewPublicWallHandler(pgStore, redisCache),

		CreateAnnouncementHandler: handler.NewCreateAnnouncementHandler(posts),
		CreateBlogHandler:         handler.NewCreateBlogHandler(posts),
		ListPostsHandler:          handler.NewListPostsHandler(pgStore),
		GetPostHandler:            handler.NewGetPostHandler(pgStore),
		UpdatePostHandler:         handler.NewUpdatePostHandler(posts),
		DeletePostHandler:         handler.NewDeletePostHandler(pgStore),
		WebsiteStatsHandler:       handler.NewWebsiteStatsHandler(pgStore),

		TokenReportHandler: handler.NewTokenReportHandler(pgStore, clock),
		DashboardHandler:   handler.NewDashboardHandler(pgStore, clock),

		CreateKeyHandler: handler.NewCreateAPIKeyHandler(pgStore),
		ListKeysHandler:  handler.NewListAPIKeysHandler(pgStore),
		RevokeKeyHandler: handler.NewRevokeAPIKeyHandler(pgStore),

		CreateTenantHandler: handler.NewCreateTenantHandler(pgStore, cfg.Plans),
		ListTenantsHandler:  handler.NewListTenantsHandler(pgStore),
		GetTenantHandler:    handler.NewGetTenantHandler(pgStore),
		UpdateTenantHandler: handler.NewUpdateTenantHandler(pgStore, cfg.Plans),
		DeleteTenantHandler: handler.NewDeleteTenantHandler(pgStore),
		TenantStatsHandler:  handler.NewTenantStatsHandler(pgStore),
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

type pinger interface {
	Ping(ctx context.Context) error
}

// healthHandler checks database and cache connectivity.
func healthHandler(s pinger, c pinger) http.HandlerFunc {
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

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
