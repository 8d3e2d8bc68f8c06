package sales

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ASS429/ma-boutique-backend/internal/platform/httpx"
	"github.com/ASS429/ma-boutique-backend/internal/shared"
)

// IdempotencyHeader lets clients retry POST /sales safely.
const IdempotencyHeader = "Idempotency-Key"

// Handler wires HTTP endpoints for sales.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *httpx.Validator
}

// NewHandler constructs the sales handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: httpx.NewValidator()}
}

// MountRoutes registers sales routes. The caller installs authentication.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.record)
	r.Patch("/{id}", h.amend)
	r.Delete("/{id}", h.cancel)
}

type recordRequest struct {
	ProductID     int64  `json:"product_id" validate:"required,gt=0"`
	Quantity      int    `json:"quantity" validate:"required,gt=0,lte=2147483647"`
	PaymentMethod string `json:"payment_method" validate:"required"`
}

type amendRequest struct {
	Quantity      *int    `json:"quantity" validate:"omitempty,gt=0,lte=2147483647"`
	PaymentMethod *string `json:"payment_method"`
}

type resultResponse struct {
	Message string `json:"message"`
	Result
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sales, err := h.service.ListSales(r.Context(), p.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if sales == nil {
		sales = []Sale{}
	}
	httpx.JSON(w, http.StatusOK, sales)
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	p, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req recordRequest
	if err := h.validate.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.RecordSale(r.Context(), p.UserID, RecordInput{
		ProductID:      req.ProductID,
		Quantity:       req.Quantity,
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: r.Header.Get(IdempotencyHeader),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, resultResponse{Message: "Vente enregistrée", Result: res})
}

func (h *Handler) amend(w http.ResponseWriter, r *http.Request) {
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
	var req amendRequest
	if err := h.validate.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.AmendSale(r.Context(), p.UserID, id, AmendInput{Quantity: req.Quantity, PaymentMethod: req.PaymentMethod})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resultResponse{Message: "Vente mise à jour", Result: res})
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
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
	res, err := h.service.CancelSale(r.Context(), p.UserID, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resultResponse{Message: "Vente annulée", Result: res})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error("sales request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
