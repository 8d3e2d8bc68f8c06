package jobs

import (
	"github.com/hibiken/asynq"

	"github.com/ASS429/ma-boutique-backend/internal/notify"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = notify.QueueDefault
	// TaskAlertsRefresh recomputes materialized payment alerts.
	TaskAlertsRefresh = "alerts:refresh"
	// TaskSubscriptionsExpire demotes lapsed Premium accounts.
	TaskSubscriptionsExpire = "subscriptions:expire"
	// TaskIdempotencyCleanup prunes old idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// NewAlertsRefreshTask builds the scheduled alert refresh task.
func NewAlertsRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskAlertsRefresh, nil, asynq.MaxRetry(3))
}

// NewSubscriptionsExpireTask builds the scheduled expiry sweep task.
func NewSubscriptionsExpireTask() *asynq.Task {
	return asynq.NewTask(TaskSubscriptionsExpire, nil, asynq.MaxRetry(3))
}

// NewIdempotencyCleanupTask builds the scheduled idempotency pruning task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil, asynq.MaxRetry(1))
}
