package alerts

import (
	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	lateKey     = "alert.late %d"
	upcomingKey = "alert.upcoming %d"
)

func init() {
	_ = message.Set(language.French, lateKey, plural.Selectf(1, "%d",
		"=1", "Paiement en retard de 1 jour",
		"other", "Paiement en retard de %[1]d jours",
	))
	_ = message.Set(language.French, upcomingKey, plural.Selectf(1, "%d",
		"=0", "Paiement dû aujourd'hui",
		"=1", "Paiement dû dans 1 jour",
		"other", "Paiement dû dans %[1]d jours",
	))
}

var printer = message.NewPrinter(language.French)

// Describe renders the French message stored with an alert.
func Describe(t Type, days int) string {
	if t == TypeLate {
		return printer.Sprintf(lateKey, days)
	}
	return printer.Sprintf(upcomingKey, days)
}
