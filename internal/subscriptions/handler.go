package subscriptions

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ASS429/ma-boutique-backend/internal/platform/httpx"
	"github.com/ASS429/ma-boutique-backend/internal/shared"
)

// Handler wires the upgrade endpoints.
type Handler struct {
	logger       *slog.Logger
	service      *Service
	requireAdmin func(http.Handler) http.Handler
	validate     *httpx.Validator
}

// NewHandler constructs the subscriptions handler. requireAdmin guards the
// approve, reject and history routes.
func NewHandler(logger *slog.Logger, service *Service, requireAdmin func(http.Handler) http.Handler) *Handler {
	return &Handler{logger: logger, service: service, requireAdmin: requireAdmin, validate: httpx.NewValidator()}
}

// MountUpgradeRoutes registers /upgrade routes on the authenticated /auth router.
func (h *Handler) MountUpgradeRoutes(r chi.Router) {
	r.Put("/upgrade", h.request)
	r.Group(func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Put("/upgrade/{id}/approve", h.approve)
		r.Put("/upgrade/{id}/reject", h.reject)
	})
}

// MountRoutes registers the admin history under /subscriptions.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.requireAdmin).Get("/", h.list)
}

type upgradeRequest struct {
	Phone         string          `json:"phone" validate:"required"`
	PaymentMethod string          `json:"payment_method" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	Expiration    shared.Date     `json:"expiration"`
}

type accountResponse struct {
	Message string  `json:"message"`
	User    Account `json:"user"`
}

func (h *Handler) request(w http.ResponseWriter, r *http.Request) {
	p, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req upgradeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, ErrMissingFields)
		return
	}
	acct, err := h.service.RequestUpgrade(r.Context(), p.UserID, UpgradeInput{
		Phone:         req.Phone,
		PaymentMethod: req.PaymentMethod,
		Amount:        req.Amount,
		Expiration:    req.Expiration,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, accountResponse{Message: "Demande de mise à niveau envoyée", User: acct})
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.ApproveUpgrade, "Abonnement validé")
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.RejectUpgrade, "Abonnement rejeté")
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, admin shared.Principal, userID int64) (Account, error), msg string) {
	p, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	acct, err := op(r.Context(), p, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, accountResponse{Message: msg, User: acct})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	payments, err := h.service.ListPayments(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if payments == nil {
		payments = []Payment{}
	}
	httpx.JSON(w, http.StatusOK, payments)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error("subscriptions request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
