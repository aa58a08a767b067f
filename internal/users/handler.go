package users

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/smartstock/smartstock/internal/rbac"
	"github.com/smartstock/smartstock/internal/shared"
	"github.com/smartstock/smartstock/internal/view"
)

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	guard     rbac.Guard
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, guard rbac.Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, guard: guard}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireRole(shared.RoleAdmin))
		r.Get("/", h.listUsers)
		r.Post("/{id}/delete", h.deleteUser)
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	role := shared.Role(r.URL.Query().Get("role"))
	list, err := h.service.ListUsers(r.Context(), ListFilter{Role: role})
	data := map[string]any{"Users": list, "Role": string(role)}
	status := http.StatusOK
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		data["Errors"] = map[string]string{"general": shared.UserSafeMessage(err)}
		status = http.StatusInternalServerError
	}
	if err := h.templates.RenderStatus(w, status, "pages/users/list.html", view.NewTemplateData(r, h.csrf, "Users", data)); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.redirectWithFlash(w, r, "/users", shared.FlashError, shared.UserSafeMessage(shared.ErrNotFound))
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	u, err := h.service.DeleteUser(r.Context(), actor, id)
	if err != nil {
		if !errors.Is(err, shared.ErrForbidden) && !errors.Is(err, shared.ErrNotFound) {
			h.logger.Error("delete user failed", slog.Int64("user_id", id), slog.Any("error", err))
		}
		h.redirectWithFlash(w, r, "/users", shared.FlashError, shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/users", shared.FlashSuccess, fmt.Sprintf("User %s deleted.", u.Username))
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
