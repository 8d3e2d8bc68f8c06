package treasury

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository persists withdrawals and transfers.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const withdrawalColumns = `id, admin_id, amount, method, status, decided_at, created_at`

func scanWithdrawal(row pgx.Row) (Withdrawal, error) {
	var (
		w      Withdrawal
		status string
	)
	err := row.Scan(&w.ID, &w.AdminID, &w.Amount, &w.Method, &status, &w.DecidedAt, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Withdrawal{}, ErrWithdrawalNotFound
	}
	w.Status = Status(status)
	return w, err
}

// InsertWithdrawal stores a pending withdrawal.
func (r *Repository) InsertWithdrawal(ctx context.Context, adminID int64, amount decimal.Decimal, method string) (Withdrawal, error) {
	return scanWithdrawal(r.pool.QueryRow(ctx, `INSERT INTO withdrawals (admin_id, amount, method)
VALUES ($1, $2, $3) RETURNING `+withdrawalColumns, adminID, amount, method))
}

// ListWithdrawals returns the admin's withdrawals, newest first.
func (r *Repository) ListWithdrawals(ctx context.Context, adminID int64) ([]Withdrawal, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals
WHERE admin_id = $1 ORDER BY created_at DESC, id DESC`, adminID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// DecideWithdrawal moves a pending withdrawal to status. Decided withdrawals
// fail with ErrAlreadyDecided.
func (r *Repository) DecideWithdrawal(ctx context.Context, id int64, status Status) (Withdrawal, error) {
	w, err := scanWithdrawal(r.pool.QueryRow(ctx, `UPDATE withdrawals SET status = $2, decided_at = NOW()
WHERE id = $1 AND status = 'en attente'
RETURNING `+withdrawalColumns, id, string(status)))
	if !errors.Is(err, ErrWithdrawalNotFound) {
		return w, err
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM withdrawals WHERE id = $1)`, id).Scan(&exists); err != nil {
		return Withdrawal{}, err
	}
	if exists {
		return Withdrawal{}, ErrAlreadyDecided
	}
	return Withdrawal{}, ErrWithdrawalNotFound
}

const transferColumns = `id, admin_id, from_method, to_method, amount, created_at`

func scanTransfer(row pgx.Row) (Transfer, error) {
	var t Transfer
	err := row.Scan(&t.ID, &t.AdminID, &t.From, &t.To, &t.Amount, &t.CreatedAt)
	return t, err
}

// InsertTransfer records a transfer.
func (r *Repository) InsertTransfer(ctx context.Context, adminID int64, from, to string, amount decimal.Decimal) (Transfer, error) {
	return scanTransfer(r.pool.QueryRow(ctx, `INSERT INTO transfers (admin_id, from_method, to_method, amount)
VALUES ($1, $2, $3, $4) RETURNING `+transferColumns, adminID, from, to, amount))
}

// ListTransfers returns the admin's transfers, newest first.
func (r *Repository) ListTransfers(ctx context.Context, adminID int64) ([]Transfer, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+transferColumns+` FROM transfers
WHERE admin_id = $1 ORDER BY created_at DESC, id DESC`, adminID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
