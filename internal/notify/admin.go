package notify

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ASS429/ma-boutique-backend/internal/alerts"
	"github.com/ASS429/ma-boutique-backend/internal/settings"
	"github.com/ASS429/ma-boutique-backend/internal/shared"
)

// ErrNoContactEmail is returned when a code must be mailed to an admin without a contact address.
var ErrNoContactEmail = shared.NewError(shared.ErrValidation, "aucune adresse e-mail de contact n'est configurée")

// SettingsPort reads the preferences that gate and address admin mail.
type SettingsPort interface {
	Global(ctx context.Context) (settings.Settings, error)
	ForUser(ctx context.Context, userID int64) (settings.Settings, error)
}

// Sender is implemented by Mailer.
type Sender interface {
	Send(ctx context.Context, m Mail) error
}

// AdminAlerts turns domain events into mail for shop administrators.
type AdminAlerts struct {
	mail     Sender
	settings SettingsPort
	logger   *slog.Logger
	printer  *message.Printer
}

// NewAdminAlerts constructs the notifier.
func NewAdminAlerts(mail Sender, prefs SettingsPort, logger *slog.Logger) *AdminAlerts {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminAlerts{mail: mail, settings: prefs, logger: logger, printer: message.NewPrinter(language.French)}
}

func (a *AdminAlerts) subject(st settings.Settings, s string) string {
	if st.AppName == "" {
		return s
	}
	return "[" + st.AppName + "] " + s
}

// SubscriptionRequested mails the shop contact when notify_new_subs is on.
func (a *AdminAlerts) SubscriptionRequested(ctx context.Context, username string, amount decimal.Decimal, method string, expiration shared.Date) error {
	st, err := a.settings.Global(ctx)
	if err != nil {
		return err
	}
	if !st.NotifyNewSubs || st.ContactEmail == "" {
		return nil
	}
	body := a.printer.Sprintf("L'utilisateur %s demande le passage au Premium.\n\nMontant : %d FCFA\nMoyen de paiement : %s\nExpiration demandée : %s\n",
		username, amount.Round(0).IntPart(), method, expiration.String())
	return a.mail.Send(ctx, Mail{
		To:      st.ContactEmail,
		Subject: a.subject(st, "Nouvelle demande d'abonnement Premium"),
		Body:    body,
	})
}

// SendTwoFactorCode mails a login code to the admin's own contact address.
func (a *AdminAlerts) SendTwoFactorCode(ctx context.Context, userID int64, username, code string) error {
	st, err := a.settings.ForUser(ctx, userID)
	if err != nil {
		return err
	}
	if st.ContactEmail == "" {
		return ErrNoContactEmail
	}
	body := a.printer.Sprintf("Bonjour %s,\n\nVotre code de connexion est : %s\nIl expire dans quelques minutes.\n", username, code)
	return a.mail.Send(ctx, Mail{
		To:      st.ContactEmail,
		Subject: a.subject(st, "Code de vérification"),
		Body:    body,
	})
}

// LatePayments sends a digest of overdue accounts. Upcoming notices are ignored.
func (a *AdminAlerts) LatePayments(ctx context.Context, notices []alerts.Notice) error {
	late := make([]alerts.Notice, 0, len(notices))
	for _, n := range notices {
		if n.Type == alerts.TypeLate {
			late = append(late, n)
		}
	}
	if len(late) == 0 {
		return nil
	}
	st, err := a.settings.Global(ctx)
	if err != nil {
		return err
	}
	if !st.AlertsEnabled || !st.NotifyLatePayments || st.ContactEmail == "" {
		return nil
	}
	var b strings.Builder
	b.WriteString(a.printer.Sprintf("%d abonnement(s) Premium en retard de paiement :\n\n", len(late)))
	for _, n := range late {
		b.WriteString(a.printer.Sprintf("- %s : %s (expiration %s)\n", n.Username, n.Message, n.Expiration.String()))
	}
	a.logger.Info("late payment digest", slog.Int("count", len(late)))
	return a.mail.Send(ctx, Mail{
		To:      st.ContactEmail,
		Subject: a.subject(st, "Paiements en retard"),
		Body:    b.String(),
	})
}
