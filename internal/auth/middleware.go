package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/ASS429/ma-boutique-backend/internal/platform/httpx"
	"github.com/ASS429/ma-boutique-backend/internal/shared"
)

// Middleware guards routes with bearer tokens.
type Middleware struct {
	service *Service
	logger  *slog.Logger
}

// NewMiddleware constructs the guard.
func NewMiddleware(service *Service, logger *slog.Logger) *Middleware {
	return &Middleware{service: service, logger: logger}
}

// Authenticate rejects requests without a valid, unrevoked bearer token.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			httpx.RespondError(w, shared.ErrNoPrincipal)
			return
		}
		p, err := m.service.Authenticate(r.Context(), strings.TrimSpace(raw))
		if err != nil {
			if httpx.StatusOf(err) >= http.StatusInternalServerError {
				m.logger.Error("authenticate request", slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), p)))
	})
}

// RequireAdmin answers 403 to authenticated non admins.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := shared.RequirePrincipal(r.Context())
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		if !p.IsAdmin() {
			httpx.RespondError(w, ErrAdminOnly)
			return
		}
		next.ServeHTTP(w, r)
	})
}
