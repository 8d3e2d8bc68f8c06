package stats

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ASS429/ma-boutique-backend/internal/platform/httpx"
	"github.com/ASS429/ma-boutique-backend/internal/shared"
)

// Handler wires the statistics endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the stats handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the owner statistics under /stats.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/sales-by-category", ownerRoute(h, h.service.SalesByCategory))
	r.Get("/sales-by-day", ownerRoute(h, h.service.SalesByDay))
	r.Get("/payment-methods", ownerRoute(h, h.service.PaymentMethods))
	r.Get("/top-products", ownerRoute(h, h.service.TopProducts))
	r.Get("/low-stock", h.lowStock)
}

// MountAdminRoutes registers the financial reports under /admin/stats. The
// caller installs the admin guard.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Get("/revenue", h.revenue)
	r.Get("/transactions", h.transactions)
	r.Get("/accounts", h.accounts)
}

func ownerRoute[T any](h *Handler, load func(ctx context.Context, ownerID int64) ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := shared.RequirePrincipal(r.Context())
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		rows, err := load(r.Context(), p.UserID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if rows == nil {
			rows = []T{}
		}
		httpx.JSON(w, http.StatusOK, rows)
	}
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	p, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	threshold := httpx.QueryInt(r, "seuil", httpx.QueryInt(r, "threshold", DefaultLowStockThreshold))
	rows, err := h.service.LowStock(r.Context(), p.UserID, threshold)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if rows == nil {
		rows = []LowStock{}
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) revenue(w http.ResponseWriter, r *http.Request) {
	period, err := ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rev, err := h.service.Revenue(r.Context(), period)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rev)
}

func (h *Handler) transactions(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Transactions(r.Context(), httpx.QueryInt(r, "limit", DefaultTransactionsLimit))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) accounts(w http.ResponseWriter, r *http.Request) {
	acc, err := h.service.Accounts(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, acc)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error("stats request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
