package settings

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists admin settings in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var settingsColumns = prefixed("")

func scanSettings(row pgx.Row) (Settings, error) {
	var s Settings
	err := row.Scan(&s.UserID, &s.AppName, &s.ContactEmail, &s.Timezone, &s.PremiumPrice, &s.GracePeriod, &s.AlertsEnabled,
		&s.NotifyNewSubs, &s.NotifyLatePayments, &s.NotifyReports, &s.MultiSessions, &s.TwoFAEnabled, &s.UpdatedAt)
	return s, err
}

// Get returns the user's settings, creating the default row on first access.
func (r *Repository) Get(ctx context.Context, userID int64) (Settings, error) {
	if _, err := r.pool.Exec(ctx, `INSERT INTO admin_settings (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return Settings{}, err
	}
	return scanSettings(r.pool.QueryRow(ctx, `SELECT `+settingsColumns+` FROM admin_settings WHERE user_id = $1`, userID))
}

// Update overwrites every editable field.
func (r *Repository) Update(ctx context.Context, s Settings) (Settings, error) {
	return scanSettings(r.pool.QueryRow(ctx, `INSERT INTO admin_settings (user_id, app_name, contact_email, timezone, premium_price, grace_period,
    alerts_enabled, notify_new_subs, notify_late_payments, notify_reports, multi_sessions, twofa_enabled, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
ON CONFLICT (user_id) DO UPDATE SET
    app_name = EXCLUDED.app_name,
    contact_email = EXCLUDED.contact_email,
    timezone = EXCLUDED.timezone,
    premium_price = EXCLUDED.premium_price,
    grace_period = EXCLUDED.grace_period,
    alerts_enabled = EXCLUDED.alerts_enabled,
    notify_new_subs = EXCLUDED.notify_new_subs,
    notify_late_payments = EXCLUDED.notify_late_payments,
    notify_reports = EXCLUDED.notify_reports,
    multi_sessions = EXCLUDED.multi_sessions,
    twofa_enabled = EXCLUDED.twofa_enabled,
    updated_at = NOW()
RETURNING `+settingsColumns,
		s.UserID, s.AppName, s.ContactEmail, s.Timezone, s.PremiumPrice, s.GracePeriod,
		s.AlertsEnabled, s.NotifyNewSubs, s.NotifyLatePayments, s.NotifyReports, s.MultiSessions, s.TwoFAEnabled))
}

// SetTwoFA flips the 2FA switch only.
func (r *Repository) SetTwoFA(ctx context.Context, userID int64, enabled bool) (Settings, error) {
	return scanSettings(r.pool.QueryRow(ctx, `INSERT INTO admin_settings (user_id, twofa_enabled) VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE SET twofa_enabled = EXCLUDED.twofa_enabled, updated_at = NOW()
RETURNING `+settingsColumns, userID, enabled))
}

// Global returns the settings of the first admin, which act as application wide
// preferences. ok is false when no admin saved settings yet.
func (r *Repository) Global(ctx context.Context) (Settings, bool, error) {
	s, err := scanSettings(r.pool.QueryRow(ctx, `SELECT `+prefixed("s.")+`
FROM admin_settings s
JOIN users u ON u.id = s.user_id AND u.role = 'admin'
ORDER BY s.user_id
LIMIT 1`))
	if errors.Is(err, pgx.ErrNoRows) {
		return Settings{}, false, nil
	}
	if err != nil {
		return Settings{}, false, err
	}
	return s, true, nil
}

func prefixed(alias string) string {
	cols := []string{"user_id", "app_name", "contact_email", "timezone", "premium_price", "grace_period", "alerts_enabled",
		"notify_new_subs", "notify_late_payments", "notify_reports", "multi_sessions", "twofa_enabled", "updated_at"}
	for i, c := range cols {
		cols[i] = alias + c
	}
	return strings.Join(cols, ", ")
}
