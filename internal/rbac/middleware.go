package rbac

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/smartstock/smartstock/internal/shared"
)

// LoginPath is where anonymous callers are sent.
const LoginPath = "/auth/login"

// Guard wires role checks for HTTP handlers.
type Guard struct {
	Resolver PrincipalResolver
	Logger   *slog.Logger
}

// Authenticate resolves the session user and stores the principal in the
// request context. Anonymous requests pass through untouched.
func (g Guard) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := shared.PrincipalFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		userID, ok := g.currentUserID(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		p, err := g.Resolver.Principal(r.Context(), userID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrForbidden) {
				// account removed or deactivated since login
				if sess := shared.SessionFromContext(r.Context()); sess != nil {
					sess.SetUser("")
				}
				next.ServeHTTP(w, r)
				return
			}
			g.logError("rbac resolve principal", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), p)))
	})
}

// RequireRole admits principals holding any of roles. Anonymous callers are
// redirected to the login page; everyone else gets 403.
func (g Guard) RequireRole(roles ...shared.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return g.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				http.Redirect(w, r, LoginPath, http.StatusSeeOther)
				return
			}
			if len(roles) > 0 && !p.Is(roles...) {
				if g.Logger != nil {
					g.Logger.Warn("rbac role mismatch", slog.String("path", r.URL.Path), slog.String("role", string(p.Role)))
				}
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

// RequireApprovedSupplier admits supplier accounts whose profile is approved.
// Pending or rejected suppliers are redirected to their status page.
func (g Guard) RequireApprovedSupplier(next http.Handler) http.Handler {
	return g.RequireRole(shared.RoleSupplier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := shared.PrincipalFromContext(r.Context())
		if p.SupplierStatus != "approved" {
			http.Redirect(w, r, "/supplier/pending", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func (g Guard) currentUserID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if g.Logger != nil {
			g.Logger.Error("rbac parse user id", slog.String("value", raw))
		}
		return 0, false
	}
	return id, true
}

func (g Guard) logError(msg string, err error) {
	if g.Logger != nil {
		g.Logger.Error(msg, slog.Any("error", err))
	}
}
