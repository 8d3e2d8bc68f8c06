package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ASS429/ma-boutique-backend/internal/alerts"
	jobmetrics "github.com/ASS429/ma-boutique-backend/internal/jobs"
	"github.com/ASS429/ma-boutique-backend/internal/settings"
)

// AlertRefresher recomputes the alerts table.
type AlertRefresher interface {
	Refresh(ctx context.Context) (alerts.RefreshResult, error)
}

// LateDigest mails overdue accounts to the shop contact.
type LateDigest interface {
	LatePayments(ctx context.Context, notices []alerts.Notice) error
}

// GlobalSettings exposes the shop wide switches.
type GlobalSettings interface {
	Global(ctx context.Context) (settings.Settings, error)
}

// AlertRefreshJob refreshes alerts on a schedule and mails the late digest.
type AlertRefreshJob struct {
	Alerts   AlertRefresher
	Digest   LateDigest
	Settings GlobalSettings
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewAlertRefreshJob wires the refresh handler.
func NewAlertRefreshJob(refresher AlertRefresher, digest LateDigest, prefs GlobalSettings, logger *slog.Logger, metrics *jobmetrics.Metrics) *AlertRefreshJob {
	return &AlertRefreshJob{Alerts: refresher, Digest: digest, Settings: prefs, Logger: logger, Metrics: metrics}
}

// Handle executes one refresh.
func (j *AlertRefreshJob) Handle(ctx context.Context, _ *asynq.Task) (resultErr error) {
	if j == nil || j.Alerts == nil {
		return errors.New("alerts refresh: handler not configured")
	}
	tracker := j.Metrics.Track(TaskAlertsRefresh)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()
	logger := loggerOr(j.Logger).With(slog.String("job", TaskAlertsRefresh))

	if j.Settings != nil {
		st, err := j.Settings.Global(ctx)
		if err != nil {
			return err
		}
		if !st.AlertsEnabled {
			logger.Info("alerts disabled, skipping refresh")
			return nil
		}
	}

	start := time.Now()
	res, err := j.Alerts.Refresh(ctx)
	if err != nil {
		logger.Error("refresh failed", slog.Any("error", err))
		return err
	}
	j.Metrics.AddAffected(TaskAlertsRefresh, res.Inserted+res.Updated+res.Removed)

	if j.Digest != nil {
		if err := j.Digest.LatePayments(ctx, res.Notices); err != nil {
			logger.Warn("late payment digest failed", slog.Any("error", err))
		}
	}
	logger.Info("completed alerts refresh",
		slog.Int("late", res.Late),
		slog.Int("upcoming", res.Upcoming),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
