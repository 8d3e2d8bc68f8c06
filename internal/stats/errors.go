package stats

import "github.com/ASS429/ma-boutique-backend/internal/shared"

// ErrInvalidPeriod is returned for a period outside all/daily/weekly/monthly.
var ErrInvalidPeriod = shared.NewError(shared.ErrValidation, "période invalide: all, daily, weekly ou monthly")
