package treasury

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ASS429/ma-boutique-backend/internal/platform/httpx"
	"github.com/ASS429/ma-boutique-backend/internal/shared"
)

// Handler wires the treasury endpoints. Every route expects an admin.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *httpx.Validator
}

// NewHandler constructs the treasury handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: httpx.NewValidator()}
}

// MountWithdrawalRoutes registers /admin/withdrawals.
func (h *Handler) MountWithdrawalRoutes(r chi.Router) {
	r.Get("/", h.listWithdrawals)
	r.Post("/", h.createWithdrawal)
	r.Put("/{id}/approve", h.decide(h.service.ApproveWithdrawal, "Retrait validé"))
	r.Put("/{id}/reject", h.decide(h.service.RejectWithdrawal, "Retrait rejeté"))
}

// MountTransferRoutes registers /admin/transfers.
func (h *Handler) MountTransferRoutes(r chi.Router) {
	r.Get("/", h.listTransfers)
	r.Post("/", h.createTransfer)
}

type withdrawalRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method" validate:"required"`
}

type transferRequest struct {
	From   string          `json:"from" validate:"required"`
	To     string          `json:"to" validate:"required"`
	Amount decimal.Decimal `json:"amount"`
}

type withdrawalResponse struct {
	Message    string     `json:"message"`
	Withdrawal Withdrawal `json:"withdrawal"`
}

type transferResponse struct {
	Message  string   `json:"message"`
	Transfer Transfer `json:"transfer"`
}

func (h *Handler) listWithdrawals(w http.ResponseWriter, r *http.Request) {
	p, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.ListWithdrawals(r.Context(), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if rows == nil {
		rows = []Withdrawal{}
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) createWithdrawal(w http.ResponseWriter, r *http.Request) {
	p, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req withdrawalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, ErrMissingFields)
		return
	}
	wd, err := h.service.RequestWithdrawal(r.Context(), p, req.Amount, req.Method)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, withdrawalResponse{Message: "Demande de retrait enregistrée", Withdrawal: wd})
}

func (h *Handler) decide(op func(context.Context, shared.Principal, int64) (Withdrawal, error), msg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
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
		wd, err := op(r.Context(), p, id)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, withdrawalResponse{Message: msg, Withdrawal: wd})
	}
}

func (h *Handler) listTransfers(w http.ResponseWriter, r *http.Request) {
	p, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.ListTransfers(r.Context(), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if rows == nil {
		rows = []Transfer{}
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) createTransfer(w http.ResponseWriter, r *http.Request) {
	p, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req transferRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, ErrMissingFields)
		return
	}
	t, err := h.service.Transfer(r.Context(), p, req.From, req.To, req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, transferResponse{Message: "Transfert enregistré", Transfer: t})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error("treasury request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
