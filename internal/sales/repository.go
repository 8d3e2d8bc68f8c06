package sales

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ASS429/ma-boutique-backend/internal/platform/db"
)

// Repository persists sales and product stock in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the statements one engine operation runs atomically.
type TxRepository interface {
	// DebitStock removes qty units only if the product holds at least qty.
	DebitStock(ctx context.Context, ownerID, productID int64, qty int) (StockLevel, error)
	// CreditStock puts qty units back.
	CreditStock(ctx context.Context, ownerID, productID int64, qty int) (StockLevel, error)
	ProductStock(ctx context.Context, ownerID, productID int64) (StockLevel, error)
	InsertSale(ctx context.Context, sale Sale) (Sale, error)
	GetSaleForUpdate(ctx context.Context, ownerID, id int64) (Sale, error)
	UpdateSale(ctx context.Context, sale Sale) error
	DeleteSale(ctx context.Context, ownerID, id int64) (Sale, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx runs fn in a read-committed transaction. The conditional stock update
// re-evaluates its WHERE clause against the latest committed row once the row
// lock is granted, so concurrent sales of one product serialise on that row.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, db.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// ListSales returns the owner's sales, newest first.
func (r *Repository) ListSales(ctx context.Context, ownerID int64) ([]Sale, error) {
	rows, err := r.pool.Query(ctx, `SELECT s.id, s.product_id, p.name, s.quantity, s.total, s.payment_method, s.user_id, s.created_at
FROM sales s
JOIN products p ON p.id = s.product_id
WHERE s.user_id = $1
ORDER BY s.created_at DESC, s.id DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Sale
	for rows.Next() {
		var s Sale
		if err := rows.Scan(&s.ID, &s.ProductID, &s.ProductName, &s.Quantity, &s.Total, &s.PaymentMethod, &s.OwnerID, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *txRepo) DebitStock(ctx context.Context, ownerID, productID int64, qty int) (StockLevel, error) {
	var lvl StockLevel
	err := r.tx.QueryRow(ctx, `UPDATE products SET stock = stock - $3
WHERE id = $1 AND user_id = $2 AND stock >= $3
RETURNING name, price, stock`, productID, ownerID, qty).Scan(&lvl.ProductName, &lvl.Price, &lvl.Stock)
	if err == nil {
		return lvl, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return StockLevel{}, err
	}
	if _, err := r.ProductStock(ctx, ownerID, productID); err != nil {
		return StockLevel{}, err
	}
	return StockLevel{}, ErrInsufficientStock
}

func (r *txRepo) CreditStock(ctx context.Context, ownerID, productID int64, qty int) (StockLevel, error) {
	var lvl StockLevel
	err := r.tx.QueryRow(ctx, `UPDATE products SET stock = stock + $3
WHERE id = $1 AND user_id = $2
RETURNING name, price, stock`, productID, ownerID, qty).Scan(&lvl.ProductName, &lvl.Price, &lvl.Stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockLevel{}, ErrProductNotFound
	}
	return lvl, err
}

func (r *txRepo) ProductStock(ctx context.Context, ownerID, productID int64) (StockLevel, error) {
	var lvl StockLevel
	err := r.tx.QueryRow(ctx, `SELECT name, price, stock FROM products WHERE id = $1 AND user_id = $2`, productID, ownerID).
		Scan(&lvl.ProductName, &lvl.Price, &lvl.Stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockLevel{}, ErrProductNotFound
	}
	return lvl, err
}

func (r *txRepo) InsertSale(ctx context.Context, sale Sale) (Sale, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO sales (product_id, quantity, total, payment_method, user_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at`, sale.ProductID, sale.Quantity, sale.Total, sale.PaymentMethod, sale.OwnerID).
		Scan(&sale.ID, &sale.CreatedAt)
	return sale, err
}

func (r *txRepo) GetSaleForUpdate(ctx context.Context, ownerID, id int64) (Sale, error) {
	var s Sale
	err := r.tx.QueryRow(ctx, `SELECT s.id, s.product_id, p.name, s.quantity, s.total, s.payment_method, s.user_id, s.created_at
FROM sales s
JOIN products p ON p.id = s.product_id
WHERE s.id = $1 AND s.user_id = $2
FOR UPDATE OF s`, id, ownerID).
		Scan(&s.ID, &s.ProductID, &s.ProductName, &s.Quantity, &s.Total, &s.PaymentMethod, &s.OwnerID, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, ErrSaleNotFound
	}
	return s, err
}

func (r *txRepo) UpdateSale(ctx context.Context, sale Sale) error {
	tag, err := r.tx.Exec(ctx, `UPDATE sales SET quantity = $3, total = $4, payment_method = $5
WHERE id = $1 AND user_id = $2`, sale.ID, sale.OwnerID, sale.Quantity, sale.Total, sale.PaymentMethod)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSaleNotFound
	}
	return nil
}

func (r *txRepo) DeleteSale(ctx context.Context, ownerID, id int64) (Sale, error) {
	var s Sale
	err := r.tx.QueryRow(ctx, `DELETE FROM sales WHERE id = $1 AND user_id = $2
RETURNING id, product_id, quantity, total, payment_method, user_id, created_at`, id, ownerID).
		Scan(&s.ID, &s.ProductID, &s.Quantity, &s.Total, &s.PaymentMethod, &s.OwnerID, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, ErrSaleNotFound
	}
	return s, err
}
