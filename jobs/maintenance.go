package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/ASS429/ma-boutique-backend/internal/jobs"
)

// Demoter moves lapsed Premium accounts back to Free.
type Demoter interface {
	DemoteExpired(ctx context.Context, today time.Time) (int, error)
}

// ExpirySweepJob runs the subscription expiry sweep.
type ExpirySweepJob struct {
	Subscriptions Demoter
	Logger        *slog.Logger
	Metrics       *jobmetrics.Metrics
	clock         func() time.Time
}

// NewExpirySweepJob wires the sweep. Today is evaluated in loc.
func NewExpirySweepJob(demoter Demoter, loc *time.Location, logger *slog.Logger, metrics *jobmetrics.Metrics) *ExpirySweepJob {
	if loc == nil {
		loc = time.UTC
	}
	return &ExpirySweepJob{
		Subscriptions: demoter,
		Logger:        logger,
		Metrics:       metrics,
		clock: func() time.Time {
			return time.Now().In(loc)
		},
	}
}

// Handle executes one sweep.
func (j *ExpirySweepJob) Handle(ctx context.Context, _ *asynq.Task) (resultErr error) {
	if j == nil || j.Subscriptions == nil {
		return errors.New("expiry sweep: handler not configured")
	}
	tracker := j.Metrics.Track(TaskSubscriptionsExpire)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()
	n, err := j.Subscriptions.DemoteExpired(ctx, j.clock())
	if err != nil {
		loggerOr(j.Logger).Error("expiry sweep failed", slog.Any("error", err))
		return err
	}
	j.Metrics.AddAffected(TaskSubscriptionsExpire, n)
	loggerOr(j.Logger).Info("completed expiry sweep", slog.Int("demoted", n))
	return nil
}

// KeyCleaner prunes idempotency keys.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// DefaultIdempotencyRetention is how long processed request keys are kept.
const DefaultIdempotencyRetention = 7 * 24 * time.Hour

// IdempotencyCleanupJob deletes expired idempotency keys.
type IdempotencyCleanupJob struct {
	Store     KeyCleaner
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// Handle executes one cleanup.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, _ *asynq.Task) (resultErr error) {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	tracker := j.Metrics.Track(TaskIdempotencyCleanup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()
	retention := j.Retention
	if retention <= 0 {
		retention = DefaultIdempotencyRetention
	}
	n, err := j.Store.Cleanup(ctx, retention)
	if err != nil {
		return err
	}
	j.Metrics.AddAffected(TaskIdempotencyCleanup, int(n))
	loggerOr(j.Logger).Info("idempotency keys pruned", slog.Int64("deleted", n))
	return nil
}
