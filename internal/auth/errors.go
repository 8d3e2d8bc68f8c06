package auth

import "github.com/ASS429/ma-boutique-backend/internal/shared"

var (
	ErrCredentialsRequired = shared.NewError(shared.ErrValidation, "champs manquants: username et password sont obligatoires")
	ErrUsernameTaken       = shared.NewError(shared.ErrConflict, "nom d'utilisateur déjà pris")
	ErrInvalidCredentials  = shared.NewError(shared.ErrUnauthorized, "identifiants invalides")
	ErrInvalidToken        = shared.NewError(shared.ErrUnauthorized, "jeton invalide ou expiré")
	ErrInvalidCode         = shared.NewError(shared.ErrUnauthorized, "code invalide ou expiré")
	ErrAdminOnly           = shared.NewError(shared.ErrForbidden, "accès réservé aux administrateurs")
	ErrUserNotFound        = shared.NewError(shared.ErrNotFound, "utilisateur introuvable")
)
