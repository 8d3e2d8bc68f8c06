package subscriptions

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ASS429/ma-boutique-backend/internal/platform/db"
	"github.com/ASS429/ma-boutique-backend/internal/shared"
)

// Repository persists subscription state on users plus the payment history.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the statements of one lifecycle transition.
type TxRepository interface {
	GetAccountForUpdate(ctx context.Context, userID int64) (Account, error)
	UpdateAccount(ctx context.Context, acct Account) error
	InsertPayment(ctx context.Context, p Payment) (Payment, error)
	// DecidePending stamps the most recent request of userID with status when it
	// is still awaiting a decision. Settled history rows are never rewritten.
	DecidePending(ctx context.Context, userID int64, status Status, adminID int64) error
	// ExpireAccounts demotes approved Premium accounts whose expiration is before cutoff.
	ExpireAccounts(ctx context.Context, cutoff time.Time) ([]Account, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a read-committed transaction. Every
// transition locks the user row first, so a concurrent decision waits and then
// sees the committed state instead of failing on a stale snapshot.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, db.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// ListPayments returns the whole upgrade history, newest first.
func (r *Repository) ListPayments(ctx context.Context) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT s.id, s.user_id, u.username, s.phone, s.payment_method, s.amount, s.expiration,
       s.status, s.decided_by, s.decided_at, s.created_at
FROM subscriptions s
JOIN users u ON u.id = s.user_id
ORDER BY s.created_at DESC, s.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		var (
			p   Payment
			exp pgtype.Date
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.Username, &p.Phone, &p.PaymentMethod, &p.Amount, &exp,
			&p.Status, &p.DecidedBy, &p.DecidedAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Expiration = fromPgDate(exp)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *txRepo) GetAccountForUpdate(ctx context.Context, userID int64) (Account, error) {
	var (
		a   Account
		exp pgtype.Date
	)
	err := r.tx.QueryRow(ctx, `SELECT id, username, role, plan, COALESCE(upgrade_status, ''), COALESCE(phone, ''),
       COALESCE(payment_method, ''), amount, expiration
FROM users WHERE id = $1
FOR UPDATE`, userID).
		Scan(&a.UserID, &a.Username, &a.Role, &a.Plan, &a.UpgradeStatus, &a.Phone, &a.PaymentMethod, &a.Amount, &exp)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrUserNotFound
	}
	if err != nil {
		return Account{}, err
	}
	a.Expiration = fromPgDate(exp)
	return a, nil
}

func (r *txRepo) UpdateAccount(ctx context.Context, a Account) error {
	tag, err := r.tx.Exec(ctx, `UPDATE users SET
    plan = $2,
    upgrade_status = NULLIF($3, ''),
    phone = NULLIF($4, ''),
    payment_method = NULLIF($5, ''),
    amount = $6,
    expiration = $7
WHERE id = $1`, a.UserID, string(a.Plan), string(a.UpgradeStatus), a.Phone, a.PaymentMethod, a.Amount, toPgDate(a.Expiration))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *txRepo) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO subscriptions (user_id, phone, payment_method, amount, expiration, status)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at`, p.UserID, p.Phone, p.PaymentMethod, p.Amount, toPgDate(p.Expiration), string(p.Status)).
		Scan(&p.ID, &p.CreatedAt)
	return p, err
}

func (r *txRepo) DecidePending(ctx context.Context, userID int64, status Status, adminID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE subscriptions SET status = $2, decided_by = $3, decided_at = NOW()
WHERE id = (
    SELECT id FROM subscriptions WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1
) AND status = $4`, userID, string(status), adminID, string(StatusPending))
	return err
}

func (r *txRepo) ExpireAccounts(ctx context.Context, cutoff time.Time) ([]Account, error) {
	rows, err := r.tx.Query(ctx, `UPDATE users SET plan = 'Free', upgrade_status = 'expiré'
WHERE plan = 'Premium' AND upgrade_status = 'validé' AND expiration < $1
RETURNING id, username, expiration`, pgtype.Date{Time: cutoff, Valid: true})
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		var (
			a   Account
			exp pgtype.Date
		)
		if err := rows.Scan(&a.UserID, &a.Username, &exp); err != nil {
			return nil, err
		}
		a.Plan = PlanFree
		a.UpgradeStatus = StatusExpired
		a.Expiration = fromPgDate(exp)
		out = append(out, a)
	}
	return out, rows.Err()
}

func fromPgDate(d pgtype.Date) shared.Date {
	if !d.Valid {
		return shared.Date{}
	}
	return shared.NewDate(d.Time)
}

func toPgDate(d shared.Date) pgtype.Date {
	return pgtype.Date{Time: d.Time, Valid: !d.IsZero()}
}
