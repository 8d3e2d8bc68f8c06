// Package treasury records admin withdrawals and transfers between payment accounts.
package treasury

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status of a withdrawal request.
type Status string

const (
	StatusPending  Status = "en attente"
	StatusApproved Status = "validé"
	StatusRejected Status = "rejeté"
)

// Withdrawal takes money out of a payment account once approved.
type Withdrawal struct {
	ID        int64           `json:"id"`
	AdminID   int64           `json:"admin_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Status    Status          `json:"status"`
	DecidedAt *time.Time      `json:"decided_at"`
	CreatedAt time.Time       `json:"created_at"`
}

// Transfer moves money between two payment accounts.
type Transfer struct {
	ID        int64           `json:"id"`
	AdminID   int64           `json:"admin_id"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}
