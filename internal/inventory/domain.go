package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable article owned by one shop account.
type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	CategoryID    *int64          `json:"category_id"`
	CategoryName  string          `json:"category_name,omitempty"`
	Scent         string          `json:"scent"`
	Price         decimal.Decimal `json:"price"`
	PurchasePrice decimal.Decimal `json:"price_achat"`
	Stock         int             `json:"stock"`
	OwnerID       int64           `json:"user_id"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Category groups products of one owner.
type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	OwnerID   int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ProductInput describes a new product.
type ProductInput struct {
	Name          string
	CategoryID    *int64
	Scent         string
	Price         decimal.Decimal
	PurchasePrice decimal.Decimal
	Stock         int
}

// ProductPatch carries the fields of a partial update. Nil means unchanged.
type ProductPatch struct {
	Name          *string
	CategoryID    *int64
	ClearCategory bool
	Scent         *string
	Price         *decimal.Decimal
	PurchasePrice *decimal.Decimal
	Stock         *int
}

// Empty reports whether the patch changes nothing.
func (p ProductPatch) Empty() bool {
	return p.Name == nil && p.CategoryID == nil && !p.ClearCategory && p.Scent == nil &&
		p.Price == nil && p.PurchasePrice == nil && p.Stock == nil
}
