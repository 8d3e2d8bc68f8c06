package subscriptions

import "github.com/ASS429/ma-boutique-backend/internal/shared"

var (
	// ErrUserNotFound indicates the target account does not exist.
	ErrUserNotFound = shared.NewError(shared.ErrNotFound, "utilisateur introuvable")
	// ErrMissingFields is returned when the upgrade request lacks a mandatory field.
	ErrMissingFields = shared.NewError(shared.ErrValidation, "téléphone, mode de paiement, montant et date d'expiration sont obligatoires")
	// ErrInvalidAmount is returned for a non positive amount.
	ErrInvalidAmount = shared.NewError(shared.ErrValidation, "le montant doit être supérieur à zéro")
	// ErrExpirationOutOfRange rejects expirations more than MaxExpirationYears from today.
	ErrExpirationOutOfRange = shared.NewError(shared.ErrValidation, "date d'expiration hors de la plage autorisée")
	// ErrNoUpgradeRequest is returned when approving an account with no open request.
	ErrNoUpgradeRequest = shared.NewError(shared.ErrValidation, "aucune demande de mise à niveau pour cet utilisateur")
	// ErrAdminRequired guards approve/reject when called outside the admin routes.
	ErrAdminRequired = shared.NewError(shared.ErrForbidden, "accès réservé aux administrateurs")
)
