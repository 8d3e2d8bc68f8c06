package inventory

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ASS429/ma-boutique-backend/internal/platform/httpx"
	"github.com/ASS429/ma-boutique-backend/internal/shared"
)

// Handler wires HTTP endpoints for products and categories.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *httpx.Validator
}

// NewHandler constructs the inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: httpx.NewValidator()}
}

// MountRoutes registers /products and /categories. The caller installs authentication.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.listProducts)
		r.Post("/", h.createProduct)
		r.Get("/{id}", h.getProduct)
		r.Patch("/{id}", h.updateProduct)
		r.Put("/{id}", h.updateProduct)
		r.Delete("/{id}", h.deleteProduct)
	})
	r.Route("/categories", func(r chi.Router) {
		r.Get("/", h.listCategories)
		r.Post("/", h.createCategory)
		r.Delete("/{id}", h.deleteCategory)
	})
}

type productRequest struct {
	Name          string          `json:"name" validate:"required"`
	CategoryID    *int64          `json:"category_id" validate:"omitempty,gt=0"`
	Scent         string          `json:"scent"`
	Price         decimal.Decimal `json:"price"`
	PurchasePrice decimal.Decimal `json:"price_achat"`
	Stock         int             `json:"stock" validate:"gte=0"`
}

type categoryRequest struct {
	Name string `json:"name" validate:"required"`
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	p, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	products, err := h.service.ListProducts(r.Context(), p.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if products == nil {
		products = []Product{}
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
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
	product, err := h.service.GetProduct(r.Context(), p.UserID, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	p, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req productRequest
	if err := h.validate.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	product, err := h.service.CreateProduct(r.Context(), p.UserID, ProductInput{
		Name:          req.Name,
		CategoryID:    req.CategoryID,
		Scent:         req.Scent,
		Price:         req.Price,
		PurchasePrice: req.PurchasePrice,
		Stock:         req.Stock,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
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
	patch, err := decodePatch(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	product, err := h.service.UpdateProduct(r.Context(), p.UserID, id, patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

// decodePatch reads a partial product body. An explicit "category_id": null
// detaches the product from its category.
func decodePatch(r *http.Request) (ProductPatch, error) {
	var raw map[string]json.RawMessage
	if err := httpx.DecodeJSON(r, &raw); err != nil {
		return ProductPatch{}, err
	}
	var patch ProductPatch
	field := func(name string, target any) error {
		v, ok := raw[name]
		if !ok {
			return nil
		}
		if err := json.Unmarshal(v, target); err != nil {
			return httpx.ErrInvalidBody
		}
		return nil
	}
	if v, ok := raw["category_id"]; ok && bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		patch.ClearCategory = true
		delete(raw, "category_id")
	}
	for name, target := range map[string]any{
		"name":        &patch.Name,
		"category_id": &patch.CategoryID,
		"scent":       &patch.Scent,
		"price":       &patch.Price,
		"price_achat": &patch.PurchasePrice,
		"stock":       &patch.Stock,
	} {
		if err := field(name, target); err != nil {
			return ProductPatch{}, err
		}
	}
	return patch, nil
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
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
	if err := h.service.DeleteProduct(r.Context(), p.UserID, id); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Message(w, http.StatusOK, "Produit supprimé")
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	p, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	categories, err := h.service.ListCategories(r.Context(), p.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if categories == nil {
		categories = []Category{}
	}
	httpx.JSON(w, http.StatusOK, categories)
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	p, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req categoryRequest
	if err := h.validate.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	category, err := h.service.CreateCategory(r.Context(), p.UserID, req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, category)
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
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
	if err := h.service.DeleteCategory(r.Context(), p.UserID, id); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Message(w, http.StatusOK, "Catégorie supprimée")
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error("inventory request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
