package stats

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ASS429/ma-boutique-backend/internal/shared"
)

// Repository runs the aggregate queries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func collect[T any](rows pgx.Rows, err error, scan func(pgx.Rows) (T, error)) ([]T, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// SalesByCategory groups the owner's sales by category, uncategorised products included.
func (r *Repository) SalesByCategory(ctx context.Context, ownerID int64) ([]CategorySales, error) {
	rows, err := r.pool.Query(ctx, `SELECT COALESCE(c.name, 'Sans catégorie'), SUM(s.quantity), SUM(s.total)
FROM sales s
JOIN products p ON p.id = s.product_id
LEFT JOIN categories c ON c.id = p.category_id
WHERE s.user_id = $1
GROUP BY 1
ORDER BY 2 DESC, 1`, ownerID)
	return collect(rows, err, func(rows pgx.Rows) (CategorySales, error) {
		var v CategorySales
		return v, rows.Scan(&v.Category, &v.Quantity, &v.Amount)
	})
}

// SalesByDay groups the owner's revenue by calendar day in tz.
func (r *Repository) SalesByDay(ctx context.Context, ownerID int64, tz string) ([]DaySales, error) {
	rows, err := r.pool.Query(ctx, `SELECT (s.created_at AT TIME ZONE $2)::date AS day, SUM(s.total)
FROM sales s
WHERE s.user_id = $1
GROUP BY day
ORDER BY day`, ownerID, tz)
	return collect(rows, err, func(rows pgx.Rows) (DaySales, error) {
		var (
			v   DaySales
			day pgtype.Date
		)
		err := rows.Scan(&day, &v.Amount)
		v.Date = shared.NewDate(day.Time)
		return v, err
	})
}

// PaymentMethods splits the owner's sales by payment method.
func (r *Repository) PaymentMethods(ctx context.Context, ownerID int64) ([]PaymentSplit, error) {
	rows, err := r.pool.Query(ctx, `SELECT payment_method, COUNT(*), SUM(total)
FROM sales
WHERE user_id = $1
GROUP BY payment_method
ORDER BY 3 DESC`, ownerID)
	return collect(rows, err, func(rows pgx.Rows) (PaymentSplit, error) {
		var v PaymentSplit
		return v, rows.Scan(&v.PaymentMethod, &v.Count, &v.Amount)
	})
}

// TopProducts ranks the owner's products by quantity sold.
func (r *Repository) TopProducts(ctx context.Context, ownerID int64, limit int) ([]TopProduct, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.name, SUM(s.quantity), SUM(s.total)
FROM sales s
JOIN products p ON p.id = s.product_id
WHERE s.user_id = $1
GROUP BY p.id, p.name
ORDER BY 2 DESC, 3 DESC
LIMIT $2`, ownerID, limit)
	return collect(rows, err, func(rows pgx.Rows) (TopProduct, error) {
		var v TopProduct
		return v, rows.Scan(&v.Product, &v.Quantity, &v.Amount)
	})
}

// LowStock lists the owner's products at or below threshold.
func (r *Repository) LowStock(ctx context.Context, ownerID int64, threshold int) ([]LowStock, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, stock
FROM products
WHERE user_id = $1 AND stock <= $2
ORDER BY stock, name`, ownerID, threshold)
	return collect(rows, err, func(rows pgx.Rows) (LowStock, error) {
		var v LowStock
		return v, rows.Scan(&v.ProductID, &v.Product, &v.Stock)
	})
}

func bound(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// AccountTotals returns the amounts held by validated and pending Premium accounts.
func (r *Repository) AccountTotals(ctx context.Context) (validated, pending decimal.Decimal, err error) {
	err = r.pool.QueryRow(ctx, `SELECT
    COALESCE(SUM(amount) FILTER (WHERE upgrade_status = 'validé'), 0),
    COALESCE(SUM(amount) FILTER (WHERE upgrade_status = 'en attente'), 0)
FROM users
WHERE plan = 'Premium'`).Scan(&validated, &pending)
	return validated, pending, err
}

// ValidatedBetween sums subscription payments validated inside w.
func (r *Repository) ValidatedBetween(ctx context.Context, w Window) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)
FROM subscriptions
WHERE status = 'validé'
  AND ($1::timestamptz IS NULL OR (decided_at >= $1 AND decided_at < $2))`, bound(w.From), bound(w.To)).Scan(&total)
	return total, err
}

// WithdrawnBetween sums withdrawals validated inside w.
func (r *Repository) WithdrawnBetween(ctx context.Context, w Window) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)
FROM withdrawals
WHERE status = 'validé'
  AND ($1::timestamptz IS NULL OR (decided_at >= $1 AND decided_at < $2))`, bound(w.From), bound(w.To)).Scan(&total)
	return total, err
}

// Transactions lists Premium accounts, latest expiration first.
func (r *Repository) Transactions(ctx context.Context, limit int) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, username, plan, amount, COALESCE(payment_method, ''),
       COALESCE(upgrade_status, ''), expiration
FROM users
WHERE plan = 'Premium'
ORDER BY expiration DESC NULLS LAST, id DESC
LIMIT $1`, limit)
	return collect(rows, err, func(rows pgx.Rows) (Transaction, error) {
		var (
			v   Transaction
			exp pgtype.Date
		)
		err := rows.Scan(&v.ID, &v.Username, &v.Plan, &v.Amount, &v.PaymentMethod, &v.UpgradeStatus, &exp)
		if exp.Valid {
			v.Expiration = shared.NewDate(exp.Time)
		}
		return v, err
	})
}

// MethodBalances returns the balance of each payment method: validated
// subscriptions, plus incoming and minus outgoing transfers, minus validated withdrawals.
func (r *Repository) MethodBalances(ctx context.Context) (map[string]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx, `SELECT method, SUM(delta)
FROM (
    SELECT payment_method AS method, amount AS delta FROM users
    WHERE plan = 'Premium' AND upgrade_status = 'validé' AND payment_method IS NOT NULL AND amount IS NOT NULL
    UNION ALL
    SELECT to_method, amount FROM transfers
    UNION ALL
    SELECT from_method, -amount FROM transfers
    UNION ALL
    SELECT method, -amount FROM withdrawals WHERE status = 'validé'
) movements
GROUP BY method
ORDER BY method`)
	type balance struct {
		method string
		total  decimal.Decimal
	}
	list, err := collect(rows, err, func(rows pgx.Rows) (balance, error) {
		var b balance
		return b, rows.Scan(&b.method, &b.total)
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal, len(list))
	for _, b := range list {
		out[b.method] = b.total
	}
	return out, nil
}
