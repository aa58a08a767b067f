package dashboard

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smartstock/smartstock/internal/rbac"
	"github.com/smartstock/smartstock/internal/shared"
	"github.com/smartstock/smartstock/internal/view"
)

// AlertPendingSuppliers keys the pending supplier warning state in the session.
const AlertPendingSuppliers = "pending_suppliers"

// Handler serves the admin and staff dashboards.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	guard     rbac.Guard
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, guard rbac.Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, guard: guard}
}

// MountAdminRoutes registers routes under /admin.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.With(h.guard.RequireRole(shared.RoleAdmin)).Get("/dashboard", h.showAdmin)
}

// MountStaffRoutes registers routes under /staff.
func (h *Handler) MountStaffRoutes(r chi.Router) {
	r.With(h.guard.RequireRole(shared.RoleStaff)).Get("/dashboard", h.showStaff)
}

func (h *Handler) showAdmin(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.Admin(r.Context())
	if err != nil {
		h.logger.Error("load admin dashboard", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	show, next := shared.EvaluateAlert(shared.LoadAlertState(sess, AlertPendingSuppliers), data.PendingSuppliers)
	shared.StoreAlertState(sess, AlertPendingSuppliers, next)
	data.ShowPendingWarning = show
	h.render(w, r, "pages/dashboard/admin.html", "Admin Dashboard", data)
}

func (h *Handler) showStaff(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	data, err := h.service.Staff(r.Context(), p.ID)
	if err != nil {
		h.logger.Error("load staff dashboard", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/dashboard/staff.html", "Staff Dashboard", data)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name, title string, data any) {
	if err := h.templates.Render(w, name, view.NewTemplateData(r, h.csrf, title, data)); err != nil {
		h.logger.Error("render template", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
