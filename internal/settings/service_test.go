package settings

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ASS429/ma-boutique-backend/internal/shared"
)

type memoryRepo struct {
	mu     sync.Mutex
	rows   map[int64]Settings
	admins map[int64]bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: map[int64]Settings{}, admins: map[int64]bool{}}
}

func (r *memoryRepo) Get(ctx context.Context, userID int64) (Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[userID]
	if !ok {
		s = Defaults(userID)
		r.rows[userID] = s
	}
	return s, nil
}

func (r *memoryRepo) Update(ctx context.Context, s Settings) (Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[s.UserID] = s
	return s, nil
}

func (r *memoryRepo) SetTwoFA(ctx context.Context, userID int64, enabled bool) (Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[userID]
	if !ok {
		s = Defaults(userID)
	}
	s.TwoFAEnabled = enabled
	r.rows[userID] = s
	return s, nil
}

func (r *memoryRepo) Global(ctx context.Context) (Settings, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *Settings
	for id, s := range r.rows {
		if !r.admins[id] {
			continue
		}
		if best == nil || id < best.UserID {
			s := s
			best = &s
		}
	}
	if best == nil {
		return Settings{}, false, nil
	}
	return *best, true, nil
}

func validSettings() Settings {
	s := Defaults(0)
	s.ContactEmail = "admin@boutique.sn"
	return s
}

func TestGetCreatesDefaults(t *testing.T) {
	svc := NewService(newMemoryRepo())
	st, err := svc.Get(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, int64(3), st.UserID)
	require.Equal(t, 3, st.GracePeriod)
	require.False(t, st.TwoFAEnabled)
}

func TestUpdateValidates(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	bad := validSettings()
	bad.Timezone = "Mars/Olympus"
	_, err := svc.Update(ctx, 1, bad)
	require.ErrorIs(t, err, ErrInvalidTimezone)

	bad = validSettings()
	bad.GracePeriod = -1
	_, err = svc.Update(ctx, 1, bad)
	require.ErrorIs(t, err, ErrInvalidGracePeriod)

	bad = validSettings()
	bad.PremiumPrice = decimal.Zero
	_, err = svc.Update(ctx, 1, bad)
	require.ErrorIs(t, err, ErrInvalidPremiumPrice)

	bad = validSettings()
	bad.AppName = " "
	_, err = svc.Update(ctx, 1, bad)
	require.ErrorIs(t, err, shared.ErrValidation)

	good := validSettings()
	good.GracePeriod = 7
	st, err := svc.Update(ctx, 1, good)
	require.NoError(t, err)
	require.Equal(t, int64(1), st.UserID)
	require.Equal(t, 7, st.GracePeriod)
}

func TestToggleTwoFA(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	st, err := svc.ToggleTwoFA(ctx, 1)
	require.NoError(t, err)
	require.True(t, st.TwoFAEnabled)

	on, err := svc.TwoFactorEnabled(ctx, 1)
	require.NoError(t, err)
	require.True(t, on)

	st, err = svc.ToggleTwoFA(ctx, 1)
	require.NoError(t, err)
	require.False(t, st.TwoFAEnabled)
}

func TestGlobalFallsBackToDefaults(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	days, err := svc.GraceDays(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, days)

	repo.admins[5] = true
	custom := validSettings()
	custom.GracePeriod = 10
	_, err = svc.Update(ctx, 5, custom)
	require.NoError(t, err)

	days, err = svc.GraceDays(ctx)
	require.NoError(t, err)
	require.Equal(t, 10, days)
}

func TestHandlerRejectsInvalidEmail(t *testing.T) {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), NewService(newMemoryRepo()))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: 1, Role: shared.RoleAdmin})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/admin/settings", h.MountRoutes)

	body := `{"app_name":"Boutique","contact_email":"nope","timezone":"Africa/Dakar","premium_price":5000,"grace_period":3}`
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/admin/settings/", strings.NewReader(body)))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "contact_email")

	body = strings.Replace(body, `"nope"`, `"admin@boutique.sn"`, 1)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/admin/settings/", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, "/admin/settings/twofa", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"twofa_enabled":true}`, rr.Body.String())
}
