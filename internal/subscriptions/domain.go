package subscriptions

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ASS429/ma-boutique-backend/internal/shared"
)

// Plan is the commercial tier of an account.
type Plan string

const (
	PlanFree    Plan = "Free"
	PlanPremium Plan = "Premium"
)

// Status is the upgrade_status of an account. The zero value means the account
// never asked for an upgrade.
type Status string

const (
	StatusNone     Status = ""
	StatusPending  Status = "en attente"
	StatusApproved Status = "validé"
	StatusRejected Status = "rejeté"
	// StatusExpired is only reached through the expiry sweep.
	StatusExpired Status = "expiré"
)

// Account is the subscription view of a user row.
type Account struct {
	UserID        int64               `json:"id"`
	Username      string              `json:"username"`
	Role          string              `json:"role"`
	Plan          Plan                `json:"plan"`
	UpgradeStatus Status              `json:"upgrade_status"`
	Phone         string              `json:"phone,omitempty"`
	PaymentMethod string              `json:"payment_method,omitempty"`
	Amount        decimal.NullDecimal `json:"amount"`
	Expiration    shared.Date         `json:"expiration"`
}

// EffectivePremium reports whether the account currently enjoys Premium: the
// plan is only tentative while the request awaits a decision.
func (a Account) EffectivePremium() bool {
	return a.Plan == PlanPremium && a.UpgradeStatus == StatusApproved
}

// Payment is one upgrade request kept in the subscriptions history.
type Payment struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	Username      string          `json:"username"`
	Phone         string          `json:"phone"`
	PaymentMethod string          `json:"payment_method"`
	Amount        decimal.Decimal `json:"amount"`
	Expiration    shared.Date     `json:"expiration"`
	Status        Status          `json:"status"`
	DecidedBy     *int64          `json:"decided_by,omitempty"`
	DecidedAt     *time.Time      `json:"decided_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// UpgradeInput is the payment intent attached to an upgrade request.
type UpgradeInput struct {
	Phone         string
	PaymentMethod string
	Amount        decimal.Decimal
	Expiration    shared.Date
}
