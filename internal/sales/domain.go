package sales

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale records units of one product sold by its owner. Total is fixed at the
// unit price observed when the quantity was last set.
type Sale struct {
	ID            int64           `json:"id"`
	ProductID     int64           `json:"product_id"`
	ProductName   string          `json:"product_name,omitempty"`
	Quantity      int             `json:"quantity"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"payment_method"`
	OwnerID       int64           `json:"user_id"`
	CreatedAt     time.Time       `json:"created_at"`
}

// StockLevel is the state of a product row right after a conditional stock update.
type StockLevel struct {
	ProductName string
	Price       decimal.Decimal
	Stock       int
}

// RecordInput describes a new sale.
type RecordInput struct {
	ProductID      int64
	Quantity       int
	PaymentMethod  string
	IdempotencyKey string
}

// AmendInput carries the optional changes of AmendSale.
type AmendInput struct {
	Quantity      *int
	PaymentMethod *string
}

// Result is returned by the three engine operations.
type Result struct {
	Sale Sale `json:"sale"`
	// Stock is the product stock after the operation.
	Stock int `json:"stock"`
	// Restocked is set by CancelSale when units went back to the product.
	Restocked bool `json:"restocked,omitempty"`
}

// Operation names used for metrics, audit and events.
const (
	opRecord = "record"
	opAmend  = "amend"
	opCancel = "cancel"
)
