package dashboard_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartstock/smartstock/internal/dashboard"
	"github.com/smartstock/smartstock/internal/inventory"
	"github.com/smartstock/smartstock/internal/inventory/inventorytest"
	"github.com/smartstock/smartstock/internal/rbac"
	"github.com/smartstock/smartstock/internal/shared"
	"github.com/smartstock/smartstock/internal/view"
	_ "github.com/smartstock/smartstock/testing"
)

type counter struct {
	n   int
	err error
}

func (c *counter) PendingSupplierCount(ctx context.Context) (int, error) { return c.n, c.err }
func (c *counter) CountActive(ctx context.Context) (int, error)          { return c.n, c.err }

func seeded(t *testing.T) (*inventory.Service, *inventorytest.Store) {
	t.Helper()
	store := inventorytest.NewStore()
	svc := inventory.NewService(store, nil, nil, nil)
	ctx := context.Background()
	widget := store.Seed(inventory.Product{Name: "Widget", Stock: 10, MinStock: 5})
	store.Seed(inventory.Product{Name: "Bolt", Stock: 2, MinStock: 5})
	for i := 0; i < 3; i++ {
		_, err := svc.PostTransaction(ctx, inventory.TransactionInput{ProductID: widget.ID, Direction: inventory.DirectionIn, Quantity: 1, ActorID: 7})
		require.NoError(t, err)
	}
	for i := 0; i < 4; i++ {
		_, err := svc.PostTransaction(ctx, inventory.TransactionInput{ProductID: widget.ID, Direction: inventory.DirectionOut, Quantity: 1, ActorID: 8})
		require.NoError(t, err)
	}
	return svc, store
}

func TestAdminDashboard(t *testing.T) {
	inv, _ := seeded(t)
	svc := dashboard.NewService(inv, &counter{n: 2}, &counter{n: 5})

	d, err := svc.Admin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, d.ProductCount)
	assert.Equal(t, 11, d.TotalStock)
	assert.Equal(t, 7, d.TransactionCount)
	assert.Equal(t, 5, d.ActiveUsers)
	assert.Len(t, d.Recent, dashboard.RecentLimit)
	require.Len(t, d.LowStock, 1)
	assert.Equal(t, "Bolt", d.LowStock[0].Name)
	assert.Equal(t, []string{"Bolt", "Widget"}, d.ChartLabels)
	assert.Equal(t, []int{2, 9}, d.ChartData)
	assert.Equal(t, 9, d.ChartMax)
	assert.Equal(t, "2 supplier request(s) pending approval", d.PendingWarning)
}

func TestStaffDashboardShowsOwnEntries(t *testing.T) {
	inv, _ := seeded(t)
	svc := dashboard.NewService(inv, &counter{}, &counter{})

	d, err := svc.Staff(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 2, d.ProductCount)
	assert.Len(t, d.Recent, 3)
	for _, tx := range d.Recent {
		assert.Equal(t, int64(7), tx.ActorID)
	}
	assert.Len(t, d.LowStock, 1)
}

func TestAdminDashboardPropagatesErrors(t *testing.T) {
	inv, _ := seeded(t)
	svc := dashboard.NewService(inv, &counter{err: errors.New("db down")}, &counter{})
	_, err := svc.Admin(context.Background())
	assert.Error(t, err)
}

type gatedCounter struct {
	gate  chan struct{}
	calls atomic.Int32
}

func (c *gatedCounter) PendingSupplierCount(ctx context.Context) (int, error) {
	c.calls.Add(1)
	<-c.gate
	return 3, nil
}

func TestAdminDashboardCallerCancellation(t *testing.T) {
	inv, _ := seeded(t)
	pending := &gatedCounter{gate: make(chan struct{})}
	svc := dashboard.NewService(inv, pending, &counter{n: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := svc.Admin(ctx)
		done <- err
	}()
	require.Eventually(t, func() bool { return pending.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	// the abandoned load still completes and a later caller gets fresh figures
	close(pending.gate)
	d, err := svc.Admin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, d.PendingSuppliers)
}

func TestPendingWarningShownOncePerIncrease(t *testing.T) {
	inv, _ := seeded(t)
	pending := &counter{n: 1}
	svc := dashboard.NewService(inv, pending, &counter{})
	templates, err := view.NewEngine()
	require.NoError(t, err)
	guard := rbac.Guard{Resolver: stubResolver{1: {ID: 1, Username: "root", Role: shared.RoleAdmin}}}
	handler := dashboard.NewHandler(nil, svc, templates, shared.NewCSRFManager("secret"), guard)
	r := chi.NewRouter()
	r.Route("/admin", handler.MountAdminRoutes)

	mr := miniredis.RunT(t)
	manager := shared.NewSessionManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "dash_test", time.Hour, false)
	base := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	sess, err := manager.Load(base.Context(), base)
	require.NoError(t, err)
	sess.SetUser("1")

	visit := func() string {
		req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
		req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
		res := httptest.NewRecorder()
		r.ServeHTTP(res, req)
		require.Equal(t, http.StatusOK, res.Code)
		return res.Body.String()
	}

	assert.Contains(t, visit(), "1 supplier request(s) pending approval")
	assert.NotContains(t, visit(), "pending approval")

	pending.n = 0
	assert.NotContains(t, visit(), "pending approval")

	pending.n = 1
	assert.Contains(t, visit(), "1 supplier request(s) pending approval")
}

type stubResolver map[int64]shared.Principal

func (s stubResolver) Principal(ctx context.Context, userID int64) (shared.Principal, error) {
	p, ok := s[userID]
	if !ok {
		return shared.Principal{}, shared.ErrNotFound
	}
	return p, nil
}
