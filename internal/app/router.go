package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/smartstock/smartstock/internal/auth"
	"github.com/smartstock/smartstock/internal/billing"
	"github.com/smartstock/smartstock/internal/dashboard"
	"github.com/smartstock/smartstock/internal/inventory"
	"github.com/smartstock/smartstock/internal/observability"
	"github.com/smartstock/smartstock/internal/rbac"
	"github.com/smartstock/smartstock/internal/shared"
	"github.com/smartstock/smartstock/internal/suppliers"
	"github.com/smartstock/smartstock/internal/users"
	"github.com/smartstock/smartstock/jobs"
	"github.com/smartstock/smartstock/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Guard          rbac.Guard

	AuthHandler      *auth.Handler
	DashboardHandler *dashboard.Handler
	InventoryHandler *inventory.Handler
	BillingHandler   *billing.Handler
	SuppliersHandler *suppliers.Handler
	UsersHandler     *users.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with SmartStock defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Guard:          params.Guard,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		p, ok := shared.PrincipalFromContext(r.Context())
		if !ok {
			http.Redirect(w, r, rbac.LoginPath, http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, p.HomePath(), http.StatusSeeOther)
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/admin", params.DashboardHandler.MountAdminRoutes)
	r.Route("/staff", params.DashboardHandler.MountStaffRoutes)
	r.Route("/inventory", params.InventoryHandler.MountRoutes)
	r.Route("/billing", params.BillingHandler.MountRoutes)
	r.Route("/suppliers", params.SuppliersHandler.MountRoutes)
	r.Route("/supplier", params.SuppliersHandler.MountSupplierRoutes)
	r.Route("/users", params.UsersHandler.MountRoutes)
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler lets browsers keep embedded assets for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
