package auth_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/smartstock/smartstock/internal/auth"
	"github.com/smartstock/smartstock/internal/shared"
	"github.com/smartstock/smartstock/internal/view"
	_ "github.com/smartstock/smartstock/testing"
)

type stubRepo struct {
	users    map[string]*auth.User
	profiles map[int64]auth.SupplierProfile
	sessions map[string]int64
	nextID   int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{users: map[string]*auth.User{}, profiles: map[int64]auth.SupplierProfile{}, sessions: map[string]int64{}}
}

func (s *stubRepo) add(t *testing.T, username, password string, role shared.Role, active bool) *auth.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	s.nextID++
	u := &auth.User{ID: s.nextID, Username: username, PasswordHash: string(hashed), Role: role, IsActive: active}
	s.users[username] = u
	return u
}

func (s *stubRepo) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	u, ok := s.users[username]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func (s *stubRepo) CreateUser(ctx context.Context, a auth.NewAccount) (int64, error) {
	if _, taken := s.users[a.Username]; taken {
		return 0, fmt.Errorf("username %s: %w", a.Username, shared.ErrDuplicate)
	}
	s.nextID++
	s.users[a.Username] = &auth.User{ID: s.nextID, Username: a.Username, PasswordHash: a.PasswordHash, Role: a.Role, IsActive: true}
	return s.nextID, nil
}

func (s *stubRepo) CreateSupplierUser(ctx context.Context, a auth.NewAccount, p auth.SupplierProfile) (int64, error) {
	id, err := s.CreateUser(ctx, a)
	if err != nil {
		return 0, err
	}
	s.profiles[id] = p
	return id, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	s.sessions[id] = userID
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

type stubResolver map[int64]shared.Principal

func (r stubResolver) Principal(ctx context.Context, userID int64) (shared.Principal, error) {
	p, ok := r[userID]
	if !ok {
		return shared.Principal{}, shared.ErrNotFound
	}
	return p, nil
}

type harness struct {
	router   http.Handler
	sessions *shared.SessionManager
	repo     *stubRepo
	sess     *shared.Session
}

func newHarness(t *testing.T, repo *stubRepo, resolver stubResolver) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(client, "test_session", time.Hour, false)
	templates, err := view.NewEngine()
	require.NoError(t, err)
	svc := auth.NewService(repo).WithHashCost(bcrypt.MinCost)
	handler := auth.NewHandler(nil, svc, templates, sessions, shared.NewCSRFManager("csrfsecret"), resolver)

	h := &harness{sessions: sessions, repo: repo}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := sessions.Load(req.Context(), req)
			require.NoError(t, err)
			h.sess = sess
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
		})
	})
	r.Route("/auth", handler.MountRoutes)
	h.router = r
	return h
}

func (h *harness) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res := httptest.NewRecorder()
	h.router.ServeHTTP(res, req)
	return res
}

func TestLoginPage(t *testing.T) {
	h := newHarness(t, newStubRepo(), nil)

	res := httptest.NewRecorder()
	h.router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/auth/login", nil))

	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "<form")
	assert.NotEmpty(t, h.sess.Get(shared.CSRFSessionKey))
}

func TestLoginInvalidCredentials(t *testing.T) {
	repo := newStubRepo()
	repo.add(t, "clerk", "correctpass", shared.RoleStaff, true)
	h := newHarness(t, repo, nil)

	res := h.post("/auth/login", url.Values{"username": {"clerk"}, "password": {"wrongpass"}})

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Invalid username or password.")
	assert.Empty(t, h.sess.User())
}

func TestLoginInactiveUser(t *testing.T) {
	repo := newStubRepo()
	repo.add(t, "gone", "correctpass", shared.RoleStaff, false)
	h := newHarness(t, repo, nil)

	res := h.post("/auth/login", url.Values{"username": {"gone"}, "password": {"correctpass"}})

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Empty(t, h.sess.User())
}

func TestLoginRedirectsByRole(t *testing.T) {
	repo := newStubRepo()
	staff := repo.add(t, "clerk", "correctpass", shared.RoleStaff, true)
	supplier := repo.add(t, "acme", "correctpass", shared.RoleSupplier, true)
	resolver := stubResolver{
		staff.ID:    {ID: staff.ID, Role: shared.RoleStaff},
		supplier.ID: {ID: supplier.ID, Role: shared.RoleSupplier, SupplierID: 1, SupplierStatus: "approved"},
	}
	h := newHarness(t, repo, resolver)

	res := h.post("/auth/login", url.Values{"username": {"clerk"}, "password": {"correctpass"}})
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/staff/dashboard", res.Header().Get("Location"))
	assert.Equal(t, fmt.Sprint(staff.ID), h.sess.User())
	assert.Equal(t, staff.ID, repo.sessions[h.sess.ID])

	res = h.post("/auth/login", url.Values{"username": {"acme"}, "password": {"correctpass"}})
	assert.Equal(t, "/supplier/dashboard", res.Header().Get("Location"))
}

func TestRegisterStaffPasswordMismatch(t *testing.T) {
	repo := newStubRepo()
	h := newHarness(t, repo, nil)

	res := h.post("/auth/register", url.Values{
		"account_type":     {"staff"},
		"username":         {"newbie"},
		"password":         {"longenough"},
		"confirm_password": {"different1"},
	})

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Confirm password does not match")
	assert.NotContains(t, repo.users, "newbie")
}

func TestRegisterDuplicateUsername(t *testing.T) {
	repo := newStubRepo()
	repo.add(t, "taken", "whatever1", shared.RoleStaff, true)
	h := newHarness(t, repo, nil)

	res := h.post("/auth/register", url.Values{
		"account_type":     {"staff"},
		"username":         {"taken"},
		"password":         {"longenough"},
		"confirm_password": {"longenough"},
	})

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Username is already taken")
}

func TestRegisterSupplierCreatesPendingProfile(t *testing.T) {
	repo := newStubRepo()
	h := newHarness(t, repo, stubResolver{
		1: {ID: 1, Role: shared.RoleSupplier, SupplierID: 1, SupplierStatus: "pending"},
	})

	res := h.post("/auth/register", url.Values{
		"account_type":     {"supplier"},
		"username":         {"acme"},
		"password":         {"longenough"},
		"confirm_password": {"longenough"},
		"supplier_name":    {"Acme Corp"},
		"contact_person":   {"Wile"},
		"email":            {"sales@acme.test"},
	})

	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/supplier/pending", res.Header().Get("Location"))
	require.Contains(t, repo.users, "acme")
	assert.Equal(t, shared.RoleSupplier, repo.users["acme"].Role)
	assert.Equal(t, "Acme Corp", repo.profiles[1].Name)
	assert.Equal(t, "1", h.sess.User())
}

func TestLogoutDestroysSession(t *testing.T) {
	h := newHarness(t, newStubRepo(), nil)

	res := h.post("/auth/logout", url.Values{})

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/auth/login", res.Header().Get("Location"))
	rec := httptest.NewRecorder()
	require.NoError(t, h.sessions.Commit(context.Background(), rec, h.sess))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}
