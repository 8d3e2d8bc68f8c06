package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ASS429/ma-boutique-backend/internal/alerts"
	"github.com/ASS429/ma-boutique-backend/internal/auth"
	"github.com/ASS429/ma-boutique-backend/internal/inventory"
	"github.com/ASS429/ma-boutique-backend/internal/observability"
	"github.com/ASS429/ma-boutique-backend/internal/platform/httpx"
	"github.com/ASS429/ma-boutique-backend/internal/sales"
	"github.com/ASS429/ma-boutique-backend/internal/settings"
	"github.com/ASS429/ma-boutique-backend/internal/stats"
	"github.com/ASS429/ma-boutique-backend/internal/subscriptions"
	"github.com/ASS429/ma-boutique-backend/internal/treasury"
	"github.com/ASS429/ma-boutique-backend/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics

	AuthMiddleware      *auth.Middleware
	AuthHandler         *auth.Handler
	InventoryHandler    *inventory.Handler
	SalesHandler        *sales.Handler
	SubscriptionHandler *subscriptions.Handler
	AlertsHandler       *alerts.Handler
	StatsHandler        *stats.Handler
	SettingsHandler     *settings.Handler
	TreasuryHandler     *treasury.Handler
	JobHandler          *jobs.Handler
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "route introuvable")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "")
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	authn := params.AuthMiddleware

	r.Route("/auth", func(r chi.Router) {
		params.AuthHandler.MountPublicRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(authn.Authenticate)
			params.AuthHandler.MountRoutes(r)
			if params.SubscriptionHandler != nil {
				params.SubscriptionHandler.MountUpgradeRoutes(r)
			}
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(authn.Authenticate)

		if params.InventoryHandler != nil {
			params.InventoryHandler.MountRoutes(r)
		}
		if params.SalesHandler != nil {
			r.Route("/sales", params.SalesHandler.MountRoutes)
		}
		if params.AlertsHandler != nil {
			r.Route("/alerts", params.AlertsHandler.MountRoutes)
		}
		if params.StatsHandler != nil {
			r.Route("/stats", params.StatsHandler.MountRoutes)
		}
		if params.SubscriptionHandler != nil {
			r.Route("/subscriptions", params.SubscriptionHandler.MountRoutes)
		}

		r.Route("/admin", func(r chi.Router) {
			r.Use(authn.RequireAdmin)
			if params.SettingsHandler != nil {
				r.Route("/settings", params.SettingsHandler.MountRoutes)
			}
			if params.StatsHandler != nil {
				r.Route("/stats", params.StatsHandler.MountAdminRoutes)
			}
			if params.TreasuryHandler != nil {
				r.Route("/withdrawals", params.TreasuryHandler.MountWithdrawalRoutes)
				r.Route("/transfers", params.TreasuryHandler.MountTransferRoutes)
			}
		})
	})

	return r
}
