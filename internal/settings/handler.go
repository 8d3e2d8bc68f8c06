package settings

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ASS429/ma-boutique-backend/internal/platform/httpx"
	"github.com/ASS429/ma-boutique-backend/internal/shared"
)

// Handler wires the admin settings endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *httpx.Validator
}

// NewHandler constructs the settings handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: httpx.NewValidator()}
}

// MountRoutes registers the routes under /admin/settings. The caller installs
// authentication and the admin guard.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.get)
	r.Put("/", h.update)
	r.Patch("/twofa", h.toggleTwoFA)
}

type updateRequest struct {
	AppName            string          `json:"app_name" validate:"required"`
	ContactEmail       string          `json:"contact_email" validate:"omitempty,email"`
	Timezone           string          `json:"timezone" validate:"required,timezone"`
	PremiumPrice       decimal.Decimal `json:"premium_price"`
	GracePeriod        int             `json:"grace_period" validate:"gte=0"`
	AlertsEnabled      bool            `json:"alerts_enabled"`
	NotifyNewSubs      bool            `json:"notify_new_subs"`
	NotifyLatePayments bool            `json:"notify_late_payments"`
	NotifyReports      bool            `json:"notify_reports"`
	MultiSessions      bool            `json:"multi_sessions"`
	TwoFAEnabled       bool            `json:"twofa_enabled"`
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	st, err := h.service.Get(r.Context(), p.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	p, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateRequest
	if err := h.validate.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	st, err := h.service.Update(r.Context(), p.UserID, Settings{
		AppName:            req.AppName,
		ContactEmail:       req.ContactEmail,
		Timezone:           req.Timezone,
		PremiumPrice:       req.PremiumPrice,
		GracePeriod:        req.GracePeriod,
		AlertsEnabled:      req.AlertsEnabled,
		NotifyNewSubs:      req.NotifyNewSubs,
		NotifyLatePayments: req.NotifyLatePayments,
		NotifyReports:      req.NotifyReports,
		MultiSessions:      req.MultiSessions,
		TwoFAEnabled:       req.TwoFAEnabled,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *Handler) toggleTwoFA(w http.ResponseWriter, r *http.Request) {
	p, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	st, err := h.service.ToggleTwoFA(r.Context(), p.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"twofa_enabled": st.TwoFAEnabled})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error("settings request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
