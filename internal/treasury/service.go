package treasury

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ASS429/ma-boutique-backend/internal/shared"
)

// RepositoryPort describes persistence used by the service.
type RepositoryPort interface {
	InsertWithdrawal(ctx context.Context, adminID int64, amount decimal.Decimal, method string) (Withdrawal, error)
	ListWithdrawals(ctx context.Context, adminID int64) ([]Withdrawal, error)
	DecideWithdrawal(ctx context.Context, id int64, status Status) (Withdrawal, error)
	InsertTransfer(ctx context.Context, adminID int64, from, to string, amount decimal.Decimal) (Transfer, error)
	ListTransfers(ctx context.Context, adminID int64) ([]Transfer, error)
}

// AuditPort records committed movements.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CacheInvalidator drops cached account balances.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Service validates treasury movements.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	cache  CacheInvalidator
	logger *slog.Logger
}

// NewService constructs the treasury service.
func NewService(repo RepositoryPort, audit AuditPort, cache CacheInvalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, cache: cache, logger: logger}
}

func checkAmount(amount decimal.Decimal) error {
	if amount.IsZero() {
		return ErrMissingFields
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// RequestWithdrawal records a pending withdrawal from method.
func (s *Service) RequestWithdrawal(ctx context.Context, admin shared.Principal, amount decimal.Decimal, method string) (Withdrawal, error) {
	method = strings.TrimSpace(method)
	if method == "" {
		return Withdrawal{}, ErrMissingFields
	}
	if err := checkAmount(amount); err != nil {
		return Withdrawal{}, err
	}
	w, err := s.repo.InsertWithdrawal(ctx, admin.UserID, amount, method)
	if err != nil {
		return Withdrawal{}, err
	}
	s.committed(ctx, admin.UserID, "withdrawal.request", "withdrawal", w.ID, map[string]any{"amount": amount.String(), "method": method})
	return w, nil
}

// ListWithdrawals returns the admin's withdrawals.
func (s *Service) ListWithdrawals(ctx context.Context, admin shared.Principal) ([]Withdrawal, error) {
	return s.repo.ListWithdrawals(ctx, admin.UserID)
}

// ApproveWithdrawal validates a pending withdrawal.
func (s *Service) ApproveWithdrawal(ctx context.Context, admin shared.Principal, id int64) (Withdrawal, error) {
	return s.decide(ctx, admin, id, StatusApproved)
}

// RejectWithdrawal rejects a pending withdrawal.
func (s *Service) RejectWithdrawal(ctx context.Context, admin shared.Principal, id int64) (Withdrawal, error) {
	return s.decide(ctx, admin, id, StatusRejected)
}

func (s *Service) decide(ctx context.Context, admin shared.Principal, id int64, status Status) (Withdrawal, error) {
	w, err := s.repo.DecideWithdrawal(ctx, id, status)
	if err != nil {
		return Withdrawal{}, err
	}
	s.committed(ctx, admin.UserID, "withdrawal."+actionOf(status), "withdrawal", w.ID, map[string]any{"status": string(status)})
	return w, nil
}

func actionOf(status Status) string {
	if status == StatusApproved {
		return "approve"
	}
	return "reject"
}

// Transfer moves amount from one payment account to another.
func (s *Service) Transfer(ctx context.Context, admin shared.Principal, from, to string, amount decimal.Decimal) (Transfer, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" || to == "" {
		return Transfer{}, ErrMissingFields
	}
	if strings.EqualFold(from, to) {
		return Transfer{}, ErrSameAccount
	}
	if err := checkAmount(amount); err != nil {
		return Transfer{}, err
	}
	t, err := s.repo.InsertTransfer(ctx, admin.UserID, from, to, amount)
	if err != nil {
		return Transfer{}, err
	}
	s.committed(ctx, admin.UserID, "transfer.create", "transfer", t.ID, map[string]any{"from": from, "to": to, "amount": amount.String()})
	return t, nil
}

// ListTransfers returns the admin's transfers.
func (s *Service) ListTransfers(ctx context.Context, admin shared.Principal) ([]Transfer, error) {
	return s.repo.ListTransfers(ctx, admin.UserID)
}

func (s *Service) committed(ctx context.Context, actorID int64, action, entity string, id int64, meta map[string]any) {
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   action,
			Entity:   entity,
			EntityID: strconv.FormatInt(id, 10),
			Meta:     meta,
		}); err != nil {
			s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
		}
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn("invalidate stats cache", slog.Any("error", err))
		}
	}
}
