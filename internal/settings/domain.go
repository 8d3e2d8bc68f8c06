package settings

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settings holds the application preferences of one admin account.
type Settings struct {
	UserID             int64           `json:"user_id"`
	AppName            string          `json:"app_name"`
	ContactEmail       string          `json:"contact_email"`
	Timezone           string          `json:"timezone"`
	PremiumPrice       decimal.Decimal `json:"premium_price"`
	GracePeriod        int             `json:"grace_period"`
	AlertsEnabled      bool            `json:"alerts_enabled"`
	NotifyNewSubs      bool            `json:"notify_new_subs"`
	NotifyLatePayments bool            `json:"notify_late_payments"`
	NotifyReports      bool            `json:"notify_reports"`
	MultiSessions      bool            `json:"multi_sessions"`
	TwoFAEnabled       bool            `json:"twofa_enabled"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Defaults mirrors the column defaults of admin_settings.
func Defaults(userID int64) Settings {
	return Settings{
		UserID:             userID,
		AppName:            "Ma Boutique",
		Timezone:           "Africa/Dakar",
		PremiumPrice:       decimal.NewFromInt(5000),
		GracePeriod:        3,
		AlertsEnabled:      true,
		NotifyNewSubs:      true,
		NotifyLatePayments: true,
		MultiSessions:      true,
	}
}
