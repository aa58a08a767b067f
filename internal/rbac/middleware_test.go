package rbac_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartstock/smartstock/internal/rbac"
	"github.com/smartstock/smartstock/internal/shared"
	_ "github.com/smartstock/smartstock/testing"
)

type stubResolver map[int64]shared.Principal

func (s stubResolver) Principal(ctx context.Context, userID int64) (shared.Principal, error) {
	p, ok := s[userID]
	if !ok {
		return shared.Principal{}, shared.ErrNotFound
	}
	return p, nil
}

func requestAs(t *testing.T, userID string) *http.Request {
	t.Helper()
	mr := miniredis.RunT(t)
	manager := shared.NewSessionManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "rbac_test", time.Hour, false)
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	sess, err := manager.Load(req.Context(), req)
	require.NoError(t, err)
	if userID != "" {
		sess.SetUser(userID)
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func TestRequireRole(t *testing.T) {
	guard := rbac.Guard{Resolver: stubResolver{
		1: {ID: 1, Username: "root", Role: shared.RoleAdmin},
		2: {ID: 2, Username: "clerk", Role: shared.RoleStaff},
	}}
	var seen shared.Principal
	handler := guard.RequireRole(shared.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = shared.PrincipalFromContext(r.Context())
		_, _ = w.Write([]byte("secret"))
	}))

	t.Run("anonymous redirects to login", func(t *testing.T) {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, requestAs(t, ""))
		assert.Equal(t, http.StatusSeeOther, res.Code)
		assert.Equal(t, rbac.LoginPath, res.Header().Get("Location"))
	})

	t.Run("unknown user treated as anonymous", func(t *testing.T) {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, requestAs(t, "99"))
		assert.Equal(t, http.StatusSeeOther, res.Code)
	})

	t.Run("wrong role forbidden without content", func(t *testing.T) {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, requestAs(t, "2"))
		assert.Equal(t, http.StatusForbidden, res.Code)
		assert.NotContains(t, res.Body.String(), "secret")
	})

	t.Run("matching role passes principal", func(t *testing.T) {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, requestAs(t, "1"))
		assert.Equal(t, http.StatusOK, res.Code)
		assert.Equal(t, "secret", res.Body.String())
		assert.Equal(t, "root", seen.Username)
	})
}

func TestRequireApprovedSupplier(t *testing.T) {
	guard := rbac.Guard{Resolver: stubResolver{
		3: {ID: 3, Role: shared.RoleSupplier, SupplierID: 1, SupplierStatus: "pending"},
		4: {ID: 4, Role: shared.RoleSupplier, SupplierID: 2, SupplierStatus: "approved"},
		5: {ID: 5, Role: shared.RoleStaff},
	}}
	handler := guard.RequireApprovedSupplier(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		user     string
		status   int
		location string
	}{
		{"3", http.StatusSeeOther, "/supplier/pending"},
		{"4", http.StatusNoContent, ""},
		{"5", http.StatusForbidden, ""},
	}
	for _, tc := range cases {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, requestAs(t, tc.user))
		require.Equal(t, tc.status, res.Code, "user %s", tc.user)
		require.Equal(t, tc.location, res.Header().Get("Location"))
	}
}
