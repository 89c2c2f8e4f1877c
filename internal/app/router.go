package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nimbus-billing/nimbus-billing/internal/auth"
	"github.com/nimbus-billing/nimbus-billing/internal/customers"
	"github.com/nimbus-billing/nimbus-billing/internal/dashboard"
	"github.com/nimbus-billing/nimbus-billing/internal/invoices"
	"github.com/nimbus-billing/nimbus-billing/internal/observability"
	"github.com/nimbus-billing/nimbus-billing/internal/platform/httpx"
	"github.com/nimbus-billing/nimbus-billing/internal/settings"
	"github.com/nimbus-billing/nimbus-billing/internal/shared"
	"github.com/nimbus-billing/nimbus-billing/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	LoadUser         UserLoader
	AuthHandler      *auth.Handler
	CustomersHandler *customers.Handler
	InvoicesHandler  *invoices.Handler
	SettingsHandler  *settings.Handler
	DashboardHandler *dashboard.Handler
	JobHandler       *jobs.Handler
	Pool             *pgxpool.Pool
	Redis            *redis.Client
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		LoadUser:       params.LoadUser,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		status := map[string]string{"status": "ok", "database": "ok", "redis": "ok"}
		code := http.StatusOK
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if params.Pool != nil {
			if err := params.Pool.Ping(ctx); err != nil {
				status["database"] = "unreachable"
				status["status"] = "degraded"
				code = http.StatusServiceUnavailable
			}
		}
		if params.Redis != nil {
			if err := params.Redis.Ping(ctx).Err(); err != nil {
				status["redis"] = "unreachable"
				status["status"] = "degraded"
				code = http.StatusServiceUnavailable
			}
		}
		httpx.JSON(w, code, status)
	})

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", params.AuthHandler.MountRoutes)
		if params.CustomersHandler != nil {
			api.Route("/customers", params.CustomersHandler.MountRoutes)
		}
		if params.InvoicesHandler != nil {
			api.Route("/invoices", params.InvoicesHandler.MountRoutes)
		}
		if params.SettingsHandler != nil {
			api.Route("/settings", params.SettingsHandler.MountRoutes)
		}
		if params.DashboardHandler != nil {
			api.Route("/dashboard", params.DashboardHandler.MountRoutes)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
