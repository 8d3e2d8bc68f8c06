package alerts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ASS429/ma-boutique-backend/internal/platform/db"
)

// refreshLockID serialises concurrent refreshes (worker cron and admin call).
const refreshLockID int64 = 0x616c657274

// Repository persists alerts in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// StateTx exposes the statements of one state transition.
type StateTx interface {
	GetForUpdate(ctx context.Context, id int64) (Alert, error)
	SetState(ctx context.Context, id int64, state State) (Alert, error)
}

// TxRepository exposes the statements of one refresh.
type TxRepository interface {
	StateTx
	ListCandidates(ctx context.Context) ([]Candidate, error)
	// Upsert writes the notice onto its (user, type) row, keeping the row's state.
	Upsert(ctx context.Context, n Notice) (inserted bool, err error)
	// DeleteExcept removes every alert whose key is not in keep.
	DeleteExcept(ctx context.Context, keep []Key) (int, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx runs fn in a transaction holding the refresh lock. Read committed lets a
// refresh that waited on the lock see the rows written by the one before it.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, db.ReadCommitted, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, refreshLockID); err != nil {
			return err
		}
		return fn(ctx, &txRepo{tx: tx})
	})
}

// WithStateTx runs fn in a transaction without the refresh lock; the row lock
// taken by GetForUpdate orders transitions on the same alert.
func (r *Repository) WithStateTx(ctx context.Context, fn func(context.Context, StateTx) error) error {
	return db.WithTx(ctx, r.pool, db.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const candidatesQuery = `SELECT id, username, expiration FROM users
WHERE plan = 'Premium' AND upgrade_status = 'validé' AND expiration IS NOT NULL
ORDER BY id`

// ListCandidates reads the eligible accounts outside a transaction, for the live projection.
func (r *Repository) ListCandidates(ctx context.Context) ([]Candidate, error) {
	return queryCandidates(ctx, r.pool)
}

func (r *txRepo) ListCandidates(ctx context.Context) ([]Candidate, error) {
	return queryCandidates(ctx, r.tx)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryCandidates(ctx context.Context, q querier) ([]Candidate, error) {
	rows, err := q.Query(ctx, candidatesQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Candidate
	for rows.Next() {
		var (
			c   Candidate
			exp pgtype.Date
		)
		if err := rows.Scan(&c.UserID, &c.Username, &exp); err != nil {
			return nil, err
		}
		c.Expiration = exp.Time
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *txRepo) Upsert(ctx context.Context, n Notice) (bool, error) {
	var inserted bool
	err := r.tx.QueryRow(ctx, `INSERT INTO alerts (user_id, type, message, days, status)
VALUES ($1, $2, $3, $4, 'new')
ON CONFLICT (user_id, type) DO UPDATE
SET message = EXCLUDED.message, days = EXCLUDED.days, updated_at = NOW()
RETURNING (xmax = 0)`, n.UserID, string(n.Type), n.Message, n.Days).Scan(&inserted)
	return inserted, err
}

func (r *txRepo) DeleteExcept(ctx context.Context, keep []Key) (int, error) {
	ids := make([]int64, len(keep))
	types := make([]string, len(keep))
	for i, k := range keep {
		ids[i] = k.UserID
		types[i] = string(k.Type)
	}
	tag, err := r.tx.Exec(ctx, `DELETE FROM alerts a
WHERE NOT EXISTS (
    SELECT 1 FROM unnest($1::bigint[], $2::text[]) AS k(user_id, type)
    WHERE k.user_id = a.user_id AND k.type = a.type
)`, ids, types)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

const alertColumns = `a.id, a.user_id, u.username, a.type, a.message, a.days, a.status, a.created_at, a.updated_at`

func scanAlert(row pgx.Row) (Alert, error) {
	var (
		a     Alert
		typ   string
		state string
	)
	err := row.Scan(&a.ID, &a.UserID, &a.Username, &typ, &a.Message, &a.Days, &state, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Alert{}, ErrAlertNotFound
	}
	a.Type = Type(typ)
	a.State = State(state)
	return a, err
}

func (r *txRepo) GetForUpdate(ctx context.Context, id int64) (Alert, error) {
	return scanAlert(r.tx.QueryRow(ctx, `SELECT `+alertColumns+`
FROM alerts a JOIN users u ON u.id = a.user_id
WHERE a.id = $1
FOR UPDATE OF a`, id))
}

func (r *txRepo) SetState(ctx context.Context, id int64, state State) (Alert, error) {
	if _, err := r.tx.Exec(ctx, `UPDATE alerts SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(state)); err != nil {
		return Alert{}, err
	}
	return scanAlert(r.tx.QueryRow(ctx, `SELECT `+alertColumns+`
FROM alerts a JOIN users u ON u.id = a.user_id
WHERE a.id = $1`, id))
}

// List returns non archived alerts visible in scope, newest first.
func (r *Repository) List(ctx context.Context, scope Scope, limit int) ([]Alert, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+alertColumns+`
FROM alerts a JOIN users u ON u.id = a.user_id
WHERE a.status <> 'archived' AND ($1::bigint = 0 OR a.user_id = $1)
ORDER BY a.created_at DESC, a.id DESC
LIMIT $2`, scope.UserID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
