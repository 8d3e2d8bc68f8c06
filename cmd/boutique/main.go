package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/ASS429/ma-boutique-backend/internal/alerts"
	"github.com/ASS429/ma-boutique-backend/internal/app"
	"github.com/ASS429/ma-boutique-backend/internal/auth"
	"github.com/ASS429/ma-boutique-backend/internal/events"
	"github.com/ASS429/ma-boutique-backend/internal/inventory"
	"github.com/ASS429/ma-boutique-backend/internal/notify"
	"github.com/ASS429/ma-boutique-backend/internal/observability"
	"github.com/ASS429/ma-boutique-backend/internal/platform/cache"
	"github.com/ASS429/ma-boutique-backend/internal/platform/db"
	"github.com/ASS429/ma-boutique-backend/internal/sales"
	"github.com/ASS429/ma-boutique-backend/internal/settings"
	"github.com/ASS429/ma-boutique-backend/internal/shared"
	"github.com/ASS429/ma-boutique-backend/internal/stats"
	"github.com/ASS429/ma-boutique-backend/internal/subscriptions"
	"github.com/ASS429/ma-boutique-backend/internal/treasury"
	"github.com/ASS429/ma-boutique-backend/jobs"
	"github.com/ASS429/ma-boutique-backend/migrations"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)
	loc := cfg.Location()

	if cfg.MigrateOnStart {
		if err := db.Migrate(migrations.FS, cfg.PGDSN); err != nil {
			logger.Error("apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolConfig{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	publisher := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("kafka close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	settingsService := settings.NewService(settings.NewRepository(pool))
	adminAlerts := notify.NewAdminAlerts(notify.NewMailer(jobClient, logger), settingsService, logger)

	statsService := stats.NewService(stats.NewRepository(pool), stats.NewCache(redisClient, cfg.StatsCacheTTL, logger), loc, logger)

	authService := auth.NewService(auth.NewRepository(pool), auth.Options{
		Tokens:     auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL),
		Sessions:   auth.NewTokenRegistry(redisClient),
		Codes:      auth.NewCodeStore(redisClient, cfg.TwoFACodeTTL),
		TwoFactor:  settingsService,
		Sender:     adminAlerts,
		BcryptCost: cfg.BcryptCost,
		Logger:     logger,
	})
	authMiddleware := auth.NewMiddleware(authService, logger)

	inventoryService := inventory.NewService(inventory.NewRepository(pool), auditLogger, logger)
	salesService := sales.NewService(sales.NewRepository(pool), idempotencyStore, auditLogger, publisher, metrics,
		sales.ServiceConfig{RestockOnCancel: cfg.SalesRestockOnCancel}, logger)
	subscriptionService := subscriptions.NewService(subscriptions.NewRepository(pool), subscriptions.Dependencies{
		Audit:     auditLogger,
		Publisher: publisher,
		Notifier:  adminAlerts,
		Cache:     statsService,
		Grace:     settingsService,
		Logger:    logger,
	}, subscriptions.ServiceConfig{AutoDemote: cfg.SubscriptionAutoDemote})
	alertService := alerts.NewService(alerts.NewRepository(pool), alerts.Config{
		UpcomingDays: cfg.AlertUpcomingDays,
		Location:     loc,
	}, logger)
	treasuryService := treasury.NewService(treasury.NewRepository(pool), auditLogger, statsService, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		Metrics:             metrics,
		AuthMiddleware:      authMiddleware,
		AuthHandler:         auth.NewHandler(logger, authService, authMiddleware),
		InventoryHandler:    inventory.NewHandler(logger, inventoryService),
		SalesHandler:        sales.NewHandler(logger, salesService),
		SubscriptionHandler: subscriptions.NewHandler(logger, subscriptionService, authMiddleware.RequireAdmin),
		AlertsHandler:       alerts.NewHandler(logger, alertService, authMiddleware.RequireAdmin),
		StatsHandler:        stats.NewHandler(logger, statsService),
		SettingsHandler:     settings.NewHandler(logger, settingsService),
		TreasuryHandler:     treasury.NewHandler(logger, treasuryService),
		JobHandler:          jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("timezone", loc.String()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
