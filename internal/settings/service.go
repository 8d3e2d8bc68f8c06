package settings

import (
	"context"
	"strings"
	"time"

	"github.com/ASS429/ma-boutique-backend/internal/shared"
)

var (
	// ErrInvalidTimezone is returned for unknown IANA zone names.
	ErrInvalidTimezone = shared.NewError(shared.ErrValidation, "fuseau horaire invalide")
	// ErrInvalidGracePeriod is returned for negative grace periods.
	ErrInvalidGracePeriod = shared.NewError(shared.ErrValidation, "le délai de grâce doit être positif")
	// ErrInvalidPremiumPrice is returned for a non positive premium price.
	ErrInvalidPremiumPrice = shared.NewError(shared.ErrValidation, "le prix premium doit être supérieur à zéro")
	// ErrAppNameRequired is returned when the application name is blank.
	ErrAppNameRequired = shared.NewError(shared.ErrValidation, "le nom de l'application est obligatoire")
)

// RepositoryPort describes persistence used by the service.
type RepositoryPort interface {
	Get(ctx context.Context, userID int64) (Settings, error)
	Update(ctx context.Context, s Settings) (Settings, error)
	SetTwoFA(ctx context.Context, userID int64, enabled bool) (Settings, error)
	Global(ctx context.Context) (Settings, bool, error)
}

// Service manages admin settings.
type Service struct {
	repo RepositoryPort
}

// NewService builds the settings service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Get returns the caller's settings.
func (s *Service) Get(ctx context.Context, userID int64) (Settings, error) {
	return s.repo.Get(ctx, userID)
}

// Update validates and stores the settings of userID.
func (s *Service) Update(ctx context.Context, userID int64, in Settings) (Settings, error) {
	in.UserID = userID
	in.AppName = strings.TrimSpace(in.AppName)
	in.ContactEmail = strings.TrimSpace(in.ContactEmail)
	if in.AppName == "" {
		return Settings{}, ErrAppNameRequired
	}
	if _, err := time.LoadLocation(in.Timezone); err != nil || in.Timezone == "" {
		return Settings{}, ErrInvalidTimezone
	}
	if in.GracePeriod < 0 {
		return Settings{}, ErrInvalidGracePeriod
	}
	if !in.PremiumPrice.IsPositive() {
		return Settings{}, ErrInvalidPremiumPrice
	}
	return s.repo.Update(ctx, in)
}

// ToggleTwoFA flips the caller's 2FA switch and returns the new settings.
func (s *Service) ToggleTwoFA(ctx context.Context, userID int64) (Settings, error) {
	current, err := s.repo.Get(ctx, userID)
	if err != nil {
		return Settings{}, err
	}
	return s.repo.SetTwoFA(ctx, userID, !current.TwoFAEnabled)
}

// ForUser returns the settings of userID.
func (s *Service) ForUser(ctx context.Context, userID int64) (Settings, error) {
	return s.repo.Get(ctx, userID)
}

// Global returns the application wide settings, falling back to defaults.
func (s *Service) Global(ctx context.Context) (Settings, error) {
	st, ok, err := s.repo.Global(ctx)
	if err != nil {
		return Settings{}, err
	}
	if !ok {
		return Defaults(0), nil
	}
	return st, nil
}

// GraceDays implements the grace period lookup used by the expiry sweep.
func (s *Service) GraceDays(ctx context.Context) (int, error) {
	st, err := s.Global(ctx)
	if err != nil {
		return 0, err
	}
	return st.GracePeriod, nil
}

// TwoFactorEnabled reports whether userID must confirm logins with a code.
func (s *Service) TwoFactorEnabled(ctx context.Context, userID int64) (bool, error) {
	st, err := s.repo.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return st.TwoFAEnabled, nil
}
