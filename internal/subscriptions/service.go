package subscriptions

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ASS429/ma-boutique-backend/internal/events"
	"github.com/ASS429/ma-boutique-backend/internal/shared"
)

// RepositoryPort describes persistence used by the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListPayments(ctx context.Context) ([]Payment, error)
}

// AuditPort records committed transitions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// NotifierPort tells admins about new upgrade requests.
type NotifierPort interface {
	SubscriptionRequested(ctx context.Context, username string, amount decimal.Decimal, method string, expiration shared.Date) error
}

// CacheInvalidator drops cached financial aggregates.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// GracePort supplies the grace period applied by the expiry sweep.
type GracePort interface {
	GraceDays(ctx context.Context) (int, error)
}

// ServiceConfig captures policy flags.
type ServiceConfig struct {
	// AutoDemote lets DemoteExpired move lapsed Premium accounts back to Free.
	AutoDemote bool
	// Clock anchors the accepted expiration range. Defaults to time.Now.
	Clock shared.Clock
}

// MaxExpirationYears bounds how far from today a requested expiration may lie.
const MaxExpirationYears = 10

// Dependencies groups the optional collaborators of the service.
type Dependencies struct {
	Audit     AuditPort
	Publisher events.Publisher
	Notifier  NotifierPort
	Cache     CacheInvalidator
	Grace     GracePort
	Logger    *slog.Logger
}

// Service is the subscription lifecycle engine.
type Service struct {
	repo   RepositoryPort
	deps   Dependencies
	config ServiceConfig
	logger *slog.Logger
}

// NewService builds the subscriptions service.
func NewService(repo RepositoryPort, deps Dependencies, cfg ServiceConfig) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Service{repo: repo, deps: deps, config: cfg, logger: logger}
}

// RequestUpgrade records a payment intent and puts the account in the pending
// state with a tentative Premium plan. Allowed from any state.
func (s *Service) RequestUpgrade(ctx context.Context, userID int64, in UpgradeInput) (Account, error) {
	in.Phone = strings.TrimSpace(in.Phone)
	in.PaymentMethod = strings.TrimSpace(in.PaymentMethod)
	if in.Phone == "" || in.PaymentMethod == "" || in.Amount.IsZero() || in.Expiration.IsZero() {
		return Account{}, ErrMissingFields
	}
	if !in.Amount.IsPositive() {
		return Account{}, ErrInvalidAmount
	}
	today := shared.DateOnly(s.config.Clock())
	if in.Expiration.Before(today.AddDate(-MaxExpirationYears, 0, 0)) || in.Expiration.After(today.AddDate(MaxExpirationYears, 0, 0)) {
		return Account{}, ErrExpirationOutOfRange
	}

	var acct Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		acct, err = tx.GetAccountForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		acct.Plan = PlanPremium
		acct.UpgradeStatus = StatusPending
		acct.Phone = in.Phone
		acct.PaymentMethod = in.PaymentMethod
		acct.Amount = decimal.NewNullDecimal(in.Amount)
		acct.Expiration = in.Expiration
		if err := tx.UpdateAccount(ctx, acct); err != nil {
			return err
		}
		_, err = tx.InsertPayment(ctx, Payment{
			UserID:        userID,
			Phone:         in.Phone,
			PaymentMethod: in.PaymentMethod,
			Amount:        in.Amount,
			Expiration:    in.Expiration,
			Status:        StatusPending,
		})
		return err
	})
	if err != nil {
		return Account{}, err
	}

	s.committed(ctx, userID, "subscription.request", events.SubscriptionRequested, acct)
	if s.deps.Notifier != nil {
		if err := s.deps.Notifier.SubscriptionRequested(ctx, acct.Username, in.Amount, in.PaymentMethod, in.Expiration); err != nil {
			s.logger.Warn("notify admins of upgrade request", slog.Int64("user_id", userID), slog.Any("error", err))
		}
	}
	return acct, nil
}

// ApproveUpgrade validates the account's request. Approving an already
// validated account changes nothing. An expired account needs a new request.
func (s *Service) ApproveUpgrade(ctx context.Context, admin shared.Principal, userID int64) (Account, error) {
	if !admin.IsAdmin() {
		return Account{}, ErrAdminRequired
	}
	var (
		acct    Account
		changed bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		acct, err = tx.GetAccountForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if acct.UpgradeStatus == StatusNone || acct.UpgradeStatus == StatusExpired {
			return ErrNoUpgradeRequest
		}
		if acct.EffectivePremium() {
			return nil
		}
		changed = true
		acct.Plan = PlanPremium
		acct.UpgradeStatus = StatusApproved
		if err := tx.UpdateAccount(ctx, acct); err != nil {
			return err
		}
		return tx.DecidePending(ctx, userID, StatusApproved, admin.UserID)
	})
	if err != nil {
		return Account{}, err
	}
	if changed {
		s.committed(ctx, admin.UserID, "subscription.approve", events.SubscriptionApproved, acct)
	}
	return acct, nil
}

// RejectUpgrade resets the account to Free whatever its previous state.
func (s *Service) RejectUpgrade(ctx context.Context, admin shared.Principal, userID int64) (Account, error) {
	if !admin.IsAdmin() {
		return Account{}, ErrAdminRequired
	}
	var (
		acct    Account
		changed bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		acct, err = tx.GetAccountForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if acct.Plan == PlanFree && acct.UpgradeStatus == StatusRejected {
			return nil
		}
		changed = true
		hadRequest := acct.UpgradeStatus != StatusNone
		acct.Plan = PlanFree
		acct.UpgradeStatus = StatusRejected
		if err := tx.UpdateAccount(ctx, acct); err != nil {
			return err
		}
		if !hadRequest {
			return nil
		}
		return tx.DecidePending(ctx, userID, StatusRejected, admin.UserID)
	})
	if err != nil {
		return Account{}, err
	}
	if changed {
		s.committed(ctx, admin.UserID, "subscription.reject", events.SubscriptionRejected, acct)
	}
	return acct, nil
}

// ListPayments returns the upgrade history for admins.
func (s *Service) ListPayments(ctx context.Context) ([]Payment, error) {
	return s.repo.ListPayments(ctx)
}

// DemoteExpired moves validated Premium accounts whose expiration plus the grace
// period lies before today back to Free. It does nothing unless AutoDemote is set.
func (s *Service) DemoteExpired(ctx context.Context, today time.Time) (int, error) {
	if !s.config.AutoDemote {
		return 0, nil
	}
	grace := 0
	if s.deps.Grace != nil {
		days, err := s.deps.Grace.GraceDays(ctx)
		if err != nil {
			return 0, err
		}
		grace = days
	}
	cutoff := shared.DateOnly(today).AddDate(0, 0, -grace)

	var demoted []Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		demoted, err = tx.ExpireAccounts(ctx, cutoff)
		return err
	})
	if err != nil {
		return 0, err
	}
	for _, acct := range demoted {
		s.committed(ctx, 0, "subscription.expire", events.SubscriptionExpired, acct)
	}
	return len(demoted), nil
}

func (s *Service) committed(ctx context.Context, actorID int64, action, eventType string, acct Account) {
	id := strconv.FormatInt(acct.UserID, 10)
	meta := map[string]any{
		"plan":           string(acct.Plan),
		"upgrade_status": string(acct.UpgradeStatus),
		"expiration":     acct.Expiration.String(),
	}
	if s.deps.Audit != nil {
		if err := s.deps.Audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   action,
			Entity:   "user",
			EntityID: id,
			Meta:     meta,
		}); err != nil {
			s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
		}
	}
	if s.deps.Cache != nil {
		if err := s.deps.Cache.Invalidate(ctx); err != nil {
			s.logger.Warn("invalidate stats cache", slog.Any("error", err))
		}
	}
	events.Emit(ctx, s.deps.Publisher, s.logger, events.New(eventType, "user:"+id, actorID, meta))
}
