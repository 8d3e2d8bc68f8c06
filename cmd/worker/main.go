package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ASS429/ma-boutique-backend/internal/alerts"
	"github.com/ASS429/ma-boutique-backend/internal/app"
	"github.com/ASS429/ma-boutique-backend/internal/events"
	jobmetrics "github.com/ASS429/ma-boutique-backend/internal/jobs"
	"github.com/ASS429/ma-boutique-backend/internal/notify"
	"github.com/ASS429/ma-boutique-backend/internal/platform/cache"
	"github.com/ASS429/ma-boutique-backend/internal/platform/db"
	"github.com/ASS429/ma-boutique-backend/internal/settings"
	"github.com/ASS429/ma-boutique-backend/internal/shared"
	"github.com/ASS429/ma-boutique-backend/internal/stats"
	"github.com/ASS429/ma-boutique-backend/internal/subscriptions"
	"github.com/ASS429/ma-boutique-backend/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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
	logger := app.NewLogger(cfg).With(slog.String("process", "worker"))
	loc := cfg.Location()

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolConfig{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
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

	metrics := jobmetrics.NewMetrics(prometheus.DefaultRegisterer)
	settingsService := settings.NewService(settings.NewRepository(pool))
	adminAlerts := notify.NewAdminAlerts(notify.NewMailer(jobClient, logger), settingsService, logger)
	statsService := stats.NewService(stats.NewRepository(pool), stats.NewCache(redisClient, cfg.StatsCacheTTL, logger), loc, logger)

	subscriptionService := subscriptions.NewService(subscriptions.NewRepository(pool), subscriptions.Dependencies{
		Audit:     shared.NewAuditLogger(pool),
		Publisher: publisher,
		Cache:     statsService,
		Grace:     settingsService,
		Logger:    logger,
	}, subscriptions.ServiceConfig{AutoDemote: cfg.SubscriptionAutoDemote})
	alertService := alerts.NewService(alerts.NewRepository(pool), alerts.Config{
		UpcomingDays: cfg.AlertUpcomingDays,
		Location:     loc,
	}, logger)

	var mailer notify.Deliverer = notify.LogSender{Logger: logger}
	if cfg.SMTPHost != "" {
		mailer = notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPUser, cfg.SMTPPassword)
	}

	refreshJob := jobs.NewAlertRefreshJob(alertService, adminAlerts, settingsService, logger, metrics)
	sweepJob := jobs.NewExpirySweepJob(subscriptionService, loc, logger, metrics)
	cleanupJob := &jobs.IdempotencyCleanupJob{
		Store:     shared.NewIdempotencyStore(pool),
		Retention: cfg.IdempotencyRetention,
		Logger:    logger,
		Metrics:   metrics,
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Logger:      logger,
		Mail:        mailer,
		Concurrency: cfg.WorkerConcurrency,
		Location:    loc,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAlertsRefresh, Handler: refreshJob.Handle},
			{Type: jobs.TaskSubscriptionsExpire, Handler: sweepJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.AlertRefreshCron, Task: jobs.NewAlertsRefreshTask()},
			{Spec: cfg.ExpirySweepCron, Task: jobs.NewSubscriptionsExpireTask()},
			{Spec: cfg.IdempotencyCleanupCron, Task: jobs.NewIdempotencyCleanupTask()},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started", slog.String("timezone", loc.String()))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
