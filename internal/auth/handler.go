package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smartstock/smartstock/internal/rbac"
	"github.com/smartstock/smartstock/internal/shared"
	"github.com/smartstock/smartstock/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	principals     rbac.PrincipalResolver
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager, principals rbac.PrincipalResolver) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		principals:     principals,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/register", h.showRegister)
	r.Post("/register", h.handleRegister)
}

type loginPageData struct {
	Form   LoginInput
	Errors map[string]string
}

type registerPageData struct {
	Type     AccountType
	Staff    StaffRegistration
	Supplier SupplierRegistration
	Errors   map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if p, ok := shared.PrincipalFromContext(r.Context()); ok {
		http.Redirect(w, r, p.HomePath(), http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "pages/auth/login.html", "Sign in", loginPageData{Errors: map[string]string{}})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := LoginInput{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
	user, err := h.service.Authenticate(r.Context(), form)
	if err != nil {
		errs := shared.FieldErrors(err)
		if errs == nil {
			errs = map[string]string{"general": shared.UserSafeMessage(err)}
			if !errors.Is(err, shared.ErrInvalidCredentials) {
				h.logger.Error("authenticate", slog.Any("error", err))
			}
		}
		form.Password = ""
		h.render(w, r, http.StatusBadRequest, "pages/auth/login.html", "Sign in", loginPageData{Form: form, Errors: errs})
		return
	}
	h.startSession(w, r, user, fmt.Sprintf("Welcome back, %s.", user.Username))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

func (h *Handler) showRegister(w http.ResponseWriter, r *http.Request) {
	data := registerPageData{Type: AccountStaff, Errors: map[string]string{}}
	if AccountType(r.URL.Query().Get("type")) == AccountSupplier {
		data.Type = AccountSupplier
	}
	h.render(w, r, http.StatusOK, "pages/auth/register.html", "Register", data)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	creds := Credentials{
		Username:        r.PostFormValue("username"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
	}
	data := registerPageData{Type: AccountStaff}
	var (
		user *User
		err  error
	)
	if AccountType(r.PostFormValue("account_type")) == AccountSupplier {
		data.Type = AccountSupplier
		data.Supplier = SupplierRegistration{
			Credentials:   creds,
			Phone:         r.PostFormValue("phone"),
			SupplierName:  r.PostFormValue("supplier_name"),
			ContactPerson: r.PostFormValue("contact_person"),
			Email:         r.PostFormValue("email"),
			Address:       r.PostFormValue("address"),
		}
		user, err = h.service.RegisterSupplier(r.Context(), data.Supplier)
	} else {
		data.Staff = StaffRegistration{
			Credentials: creds,
			FirstName:   r.PostFormValue("first_name"),
			LastName:    r.PostFormValue("last_name"),
			Phone:       r.PostFormValue("phone"),
			Gender:      r.PostFormValue("gender"),
		}
		user, err = h.service.RegisterStaff(r.Context(), data.Staff)
	}
	if err != nil {
		data.Errors = shared.FieldErrors(err)
		if data.Errors == nil {
			h.logger.Error("register", slog.String("type", string(data.Type)), slog.Any("error", err))
			data.Errors = map[string]string{"general": shared.UserSafeMessage(err)}
		}
		data.Staff.Password, data.Staff.ConfirmPassword = "", ""
		data.Supplier.Password, data.Supplier.ConfirmPassword = "", ""
		h.render(w, r, http.StatusBadRequest, "pages/auth/register.html", "Register", data)
		return
	}
	h.startSession(w, r, user, fmt.Sprintf("Account %s created.", user.Username))
}

// startSession binds the session to user under a fresh id and redirects to
// the role's landing page.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, user *User, greeting string) {
	home := shared.Principal{ID: user.ID, Username: user.Username, Role: user.Role}.HomePath()
	if h.principals != nil {
		if p, err := h.principals.Principal(r.Context(), user.ID); err == nil {
			home = p.HomePath()
		} else {
			h.logger.Warn("resolve principal", slog.Int64("user_id", user.ID), slog.Any("error", err))
		}
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.sessionManager.Renew(sess)
	sess.Delete(shared.CSRFSessionKey)
	sess.SetUser(strconv.FormatInt(user.ID, 10))
	sess.AddFlash(shared.FlashMessage{Kind: shared.FlashSuccess, Message: greeting})
	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}
	http.Redirect(w, r, home, http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	if err := h.templates.RenderStatus(w, status, name, view.NewTemplateData(r, h.csrfManager, title, data)); err != nil {
		h.logger.Error("render template", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
