// Package events publishes domain events about sales and subscriptions.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the engines.
const (
	SaleRecorded          = "sale.recorded"
	SaleAmended           = "sale.amended"
	SaleCancelled         = "sale.cancelled"
	SubscriptionRequested = "subscription.requested"
	SubscriptionApproved  = "subscription.approved"
	SubscriptionRejected  = "subscription.rejected"
	SubscriptionExpired   = "subscription.expired"
)

// Event is the envelope written to the stream.
type Event struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	AggregateID string    `json:"aggregate_id"`
	ActorID     int64     `json:"actor_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Data        any       `json:"data,omitempty"`
}

// New builds an event stamped with a fresh id and the current time.
func New(eventType, aggregateID string, actorID int64, data any) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		AggregateID: aggregateID,
		ActorID:     actorID,
		OccurredAt:  time.Now().UTC(),
		Data:        data,
	}
}

// Publisher sends events downstream.
type Publisher interface {
	Publish(ctx context.Context, evts ...Event) error
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, ...Event) error { return nil }

// Emit publishes after a commit. The database is the source of truth, so a
// failure is logged and otherwise ignored.
func Emit(ctx context.Context, p Publisher, logger *slog.Logger, evts ...Event) {
	if p == nil || len(evts) == 0 {
		return
	}
	if err := p.Publish(ctx, evts...); err != nil && logger != nil {
		logger.Warn("publish events failed", slog.String("type", evts[0].Type), slog.Int("count", len(evts)), slog.Any("error", err))
	}
}
