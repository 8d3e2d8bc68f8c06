// Package stats serves shop statistics and admin financial reporting.
package stats

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ASS429/ma-boutique-backend/internal/shared"
)

// CategorySales aggregates an owner's sales per category.
type CategorySales struct {
	Category string          `json:"categorie"`
	Quantity int64           `json:"total_quantite"`
	Amount   decimal.Decimal `json:"total_montant"`
}

// DaySales is the revenue of one calendar day.
type DaySales struct {
	Date   shared.Date     `json:"date"`
	Amount decimal.Decimal `json:"total_montant"`
}

// PaymentSplit aggregates sales per payment method.
type PaymentSplit struct {
	PaymentMethod string          `json:"payment_method"`
	Count         int64           `json:"total_ventes"`
	Amount        decimal.Decimal `json:"total_montant"`
}

// TopProduct ranks products by quantity sold.
type TopProduct struct {
	Product  string          `json:"produit"`
	Quantity int64           `json:"total_quantite"`
	Amount   decimal.Decimal `json:"total_montant"`
}

// LowStock is a product at or under the stock threshold.
type LowStock struct {
	ProductID int64  `json:"id"`
	Product   string `json:"produit"`
	Stock     int    `json:"stock"`
}

// DefaultLowStockThreshold applies when no threshold is given.
const DefaultLowStockThreshold = 5

// TopProductsLimit caps the top products ranking.
const TopProductsLimit = 10

// Period selects the window of the revenue report.
type Period string

const (
	PeriodAll     Period = "all"
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// Window is a half-open time range. A zero window is unbounded.
type Window struct {
	From time.Time
	To   time.Time
}

// Bounded reports whether the window restricts anything.
func (w Window) Bounded() bool {
	return !w.From.IsZero()
}

// Revenue summarises subscription income.
type Revenue struct {
	Balance     decimal.Decimal `json:"balance"`
	PeriodTotal decimal.Decimal `json:"period_total"`
	Pending     decimal.Decimal `json:"pending"`
	Period      Period          `json:"period"`
}

// Transaction is a Premium account as listed in the admin dashboard.
type Transaction struct {
	ID            int64               `json:"id"`
	Username      string              `json:"username"`
	Plan          string              `json:"plan"`
	Amount        decimal.NullDecimal `json:"amount"`
	PaymentMethod string              `json:"payment_method"`
	UpgradeStatus string              `json:"upgrade_status"`
	Expiration    shared.Date         `json:"expiration"`
}

// DefaultTransactionsLimit applies when no limit is given.
const DefaultTransactionsLimit = 10

// Accounts is the treasury position per payment method.
type Accounts struct {
	Accounts    map[string]decimal.Decimal `json:"accounts"`
	Total       decimal.Decimal            `json:"total"`
	Entries     decimal.Decimal            `json:"entries"`
	Withdrawals decimal.Decimal            `json:"withdrawals"`
	Net         decimal.Decimal            `json:"net"`
}
