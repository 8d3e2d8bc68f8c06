package alerts

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ASS429/ma-boutique-backend/internal/platform/httpx"
	"github.com/ASS429/ma-boutique-backend/internal/shared"
)

// Handler wires the /alerts endpoints.
type Handler struct {
	logger       *slog.Logger
	service      *Service
	requireAdmin func(http.Handler) http.Handler
}

// NewHandler constructs the alerts handler.
func NewHandler(logger *slog.Logger, service *Service, requireAdmin func(http.Handler) http.Handler) *Handler {
	return &Handler{logger: logger, service: service, requireAdmin: requireAdmin}
}

// MountRoutes registers the alert routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/live", h.live)
	r.With(h.requireAdmin).Post("/refresh", h.refresh)
	r.Patch("/{id}/seen", h.transition(ActionSeen))
	r.Patch("/{id}/ignore", h.transition(ActionIgnore))
	r.Delete("/{id}", h.archive)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	alerts, err := h.service.List(r.Context(), p, httpx.QueryInt(r, "limit", DefaultListLimit))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if alerts == nil {
		alerts = []Alert{}
	}
	httpx.JSON(w, http.StatusOK, alerts)
}

func (h *Handler) live(w http.ResponseWriter, r *http.Request) {
	p, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	notices, err := h.service.Live(r.Context(), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, notices)
}

type refreshResponse struct {
	Message string `json:"message"`
	RefreshResult
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Refresh(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, refreshResponse{Message: "Alertes recalculées et enregistrées", RefreshResult: res})
}

func (h *Handler) transition(action Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		alert, ok := h.apply(w, r, action)
		if !ok {
			return
		}
		httpx.JSON(w, http.StatusOK, alert)
	}
}

type archiveResponse struct {
	Message string `json:"message"`
	Alert   Alert  `json:"alert"`
}

func (h *Handler) archive(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.apply(w, r, ActionArchive)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, archiveResponse{Message: "Alerte archivée", Alert: alert})
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request, action Action) (Alert, bool) {
	p, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return Alert{}, false
	}
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return Alert{}, false
	}
	alert, err := h.service.Apply(r.Context(), p, id, action)
	if err != nil {
		h.fail(w, r, err)
		return Alert{}, false
	}
	return alert, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error("alerts request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
