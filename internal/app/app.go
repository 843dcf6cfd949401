package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/wisbric/chatowl/internal/auth"
	"github.com/wisbric/chatowl/internal/config"
	"github.com/wisbric/chatowl/internal/httpserver"
	"github.com/wisbric/chatowl/internal/platform"
	"github.com/wisbric/chatowl/internal/telemetry"
	"github.com/wisbric/chatowl/pkg/avatar"
	"github.com/wisbric/chatowl/pkg/credentials"
	"github.com/wisbric/chatowl/pkg/files"
	"github.com/wisbric/chatowl/pkg/hostconfig"
	"github.com/wisbric/chatowl/pkg/mattermost"
	"github.com/wisbric/chatowl/pkg/settings"
	"github.com/wisbric/chatowl/pkg/share"
	"github.com/wisbric/chatowl/pkg/webhook"
)

// Run is the main application entry point. It reads config, connects to
// infrastructure, and starts the appropriate mode (api or worker).
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting chatowl",
		"mode", cfg.Mode,
		"listen", cfg.ListenAddr(),
	)

	// Database
	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	// Redis
	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	// Metrics
	metricsReg := telemetry.NewMetricsRegistry()

	switch cfg.Mode {
	case "api":
		return runAPI(ctx, cfg, logger, db, rdb, metricsReg)
	case "worker":
		return runWorker(ctx, cfg, logger, db, rdb)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

func runAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry) error {
	sessions := auth.NewSessionStore(rdb)
	srv := httpserver.NewServer(cfg, logger, db, rdb, metricsReg, sessions)

	hostCfg := hostconfig.NewPostgresStore(db)
	storage := files.NewStore(db)

	shareService := share.NewService(share.NewStore(db), storage, cfg.PublicBaseURL)
	mmService := mattermost.NewService(
		credentials.NewResolver(hostCfg),
		mattermost.NewClient(logger, telemetry.MattermostRequestsTotal),
		storage,
		shareService,
		logger,
	)

	// Authenticated API.
	srv.APIRouter.Mount("/mattermost", mattermost.NewHandler(mmService, cfg.PublicBaseURL, logger).Routes())
	srv.APIRouter.Mount("/files", files.NewHandler(storage, logger).Routes())
	srv.APIRouter.Mount("/settings", settings.NewHandler(hostCfg, cfg.AdminToken, logger).Routes())

	// Public routes: shared file downloads and generated fallback avatars.
	srv.Router.Mount("/s", share.NewHandler(shareService, logger).Routes())
	srv.Router.Mount("/avatar", avatar.NewHandler().Routes())

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func runWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client) error {
	hostCfg := hostconfig.NewPostgresStore(db)
	notifier := webhook.NewNotifier(hostCfg, logger, telemetry.WebhookDeliveriesTotal)
	worker := webhook.NewWorker(rdb, notifier, cfg.CalendarEventsChannel, logger)
	return worker.Run(ctx)
}
