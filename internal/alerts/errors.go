package alerts

import "github.com/ASS429/ma-boutique-backend/internal/shared"

var (
	// ErrAlertNotFound covers unknown, archived and foreign alerts alike.
	ErrAlertNotFound = shared.NewError(shared.ErrNotFound, "alerte introuvable")
	// ErrUnknownAction is returned for transitions outside seen/ignore/archive.
	ErrUnknownAction = shared.NewError(shared.ErrValidation, "action inconnue")
)
