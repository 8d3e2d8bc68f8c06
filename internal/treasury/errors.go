package treasury

import "github.com/ASS429/ma-boutique-backend/internal/shared"

var (
	ErrMissingFields      = shared.NewError(shared.ErrValidation, "champs manquants")
	ErrInvalidAmount      = shared.NewError(shared.ErrValidation, "le montant doit être supérieur à zéro")
	ErrSameAccount        = shared.NewError(shared.ErrValidation, "les comptes source et destination doivent être différents")
	ErrWithdrawalNotFound = shared.NewError(shared.ErrNotFound, "retrait introuvable")
	ErrAlreadyDecided     = shared.NewError(shared.ErrConflict, "ce retrait a déjà été traité")
)
