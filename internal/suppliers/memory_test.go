package suppliers_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/smartstock/smartstock/internal/inventory"
	"github.com/smartstock/smartstock/internal/inventory/inventorytest"
	"github.com/smartstock/smartstock/internal/shared"
	"github.com/smartstock/smartstock/internal/suppliers"
)

// memoryRepo keeps supplier data next to an inventorytest.Store. Both roll
// back together when a transaction callback fails.
type memoryRepo struct {
	store *inventorytest.Store

	mu        sync.Mutex
	suppliers map[int64]suppliers.Supplier
	requests  map[int64]suppliers.Request
	orders    map[int64]suppliers.PurchaseOrder
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		store:     inventorytest.NewStore(),
		suppliers: map[int64]suppliers.Supplier{},
		requests:  map[int64]suppliers.Request{},
		orders:    map[int64]suppliers.PurchaseOrder{},
	}
}

func (m *memoryRepo) addSupplier(name string, status suppliers.Status) suppliers.Supplier {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s := suppliers.Supplier{ID: m.nextID, UserID: 100 + m.nextID, Name: name, Status: status, CreatedAt: time.Now()}
	m.suppliers[s.ID] = s
	return s
}

func (m *memoryRepo) supplier(id int64) suppliers.Supplier {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suppliers[id]
}

func (m *memoryRepo) request(id int64) suppliers.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[id]
}

func (m *memoryRepo) order(id int64) suppliers.PurchaseOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id]
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, suppliers.SupplierTx) error) error {
	return m.store.WithTx(ctx, func(ctx context.Context, stx inventory.StockTx) error {
		m.mu.Lock()
		snapSuppliers := copyMap(m.suppliers)
		snapRequests := copyMap(m.requests)
		snapOrders := copyMap(m.orders)
		nextID := m.nextID
		m.mu.Unlock()
		if err := fn(ctx, &memoryTx{StockTx: stx, repo: m}); err != nil {
			m.mu.Lock()
			m.suppliers, m.requests, m.orders, m.nextID = snapSuppliers, snapRequests, snapOrders, nextID
			m.mu.Unlock()
			return err
		}
		return nil
	})
}

func copyMap[V any](in map[int64]V) map[int64]V {
	out := make(map[int64]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (m *memoryRepo) GetSupplier(ctx context.Context, id int64) (suppliers.Supplier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.suppliers[id]
	if !ok {
		return suppliers.Supplier{}, fmt.Errorf("supplier %d: %w", id, shared.ErrNotFound)
	}
	return s, nil
}

func (m *memoryRepo) ListSuppliers(ctx context.Context, status suppliers.Status) ([]suppliers.Supplier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []suppliers.Supplier{}
	for _, s := range m.suppliers {
		if status == "" || s.Status == status {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memoryRepo) CountSuppliers(ctx context.Context, status suppliers.Status) (int, error) {
	list, err := m.ListSuppliers(ctx, status)
	return len(list), err
}

func (m *memoryRepo) InsertRequest(ctx context.Context, r suppliers.Request) (suppliers.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	r.ID = m.nextID
	r.SupplierName = m.suppliers[r.SupplierID].Name
	r.CreatedAt = time.Now()
	m.requests[r.ID] = r
	return r, nil
}

func (m *memoryRepo) ListRequests(ctx context.Context, filter suppliers.RequestFilter) ([]suppliers.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []suppliers.Request{}
	for _, r := range m.requests {
		if filter.SupplierID != 0 && r.SupplierID != filter.SupplierID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memoryRepo) ListOrders(ctx context.Context, filter suppliers.OrderFilter) ([]suppliers.PurchaseOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []suppliers.PurchaseOrder{}
	for _, o := range m.orders {
		if filter.SupplierID == 0 || o.SupplierID == filter.SupplierID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memoryRepo) OrderStats(ctx context.Context, supplierID int64) (suppliers.OrderStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var st suppliers.OrderStats
	for _, o := range m.orders {
		if o.SupplierID != supplierID {
			continue
		}
		st.Total++
		switch o.Status {
		case suppliers.OrderPending:
			st.Pending++
		case suppliers.OrderDelivered:
			st.Delivered++
		}
	}
	return st, nil
}

type memoryTx struct {
	inventory.StockTx
	repo *memoryRepo
}

func (t *memoryTx) LockSupplier(ctx context.Context, id int64) (suppliers.Supplier, error) {
	return t.repo.GetSupplier(ctx, id)
}

func (t *memoryTx) SetSupplierStatus(ctx context.Context, id int64, status suppliers.Status) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	s, ok := t.repo.suppliers[id]
	if !ok {
		return fmt.Errorf("supplier %d: %w", id, shared.ErrNotFound)
	}
	s.Status = status
	t.repo.suppliers[id] = s
	return nil
}

func (t *memoryTx) LockRequest(ctx context.Context, id int64) (suppliers.Request, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	r, ok := t.repo.requests[id]
	if !ok {
		return suppliers.Request{}, fmt.Errorf("supplier request %d: %w", id, shared.ErrNotFound)
	}
	return r, nil
}

func (t *memoryTx) SetRequestStatus(ctx context.Context, id int64, status suppliers.Status) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	r, ok := t.repo.requests[id]
	if !ok {
		return fmt.Errorf("supplier request %d: %w", id, shared.ErrNotFound)
	}
	r.Status = status
	t.repo.requests[id] = r
	return nil
}

func (t *memoryTx) InsertOrder(ctx context.Context, o suppliers.PurchaseOrder) (suppliers.PurchaseOrder, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	t.repo.nextID++
	o.ID = t.repo.nextID
	o.CreatedAt = time.Now()
	t.repo.orders[o.ID] = o
	return o, nil
}

func (t *memoryTx) LockOrder(ctx context.Context, id int64) (suppliers.PurchaseOrder, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	o, ok := t.repo.orders[id]
	if !ok {
		return suppliers.PurchaseOrder{}, fmt.Errorf("order %d: %w", id, shared.ErrNotFound)
	}
	return o, nil
}

func (t *memoryTx) SetOrderStatus(ctx context.Context, id int64, status suppliers.OrderStatus) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	o, ok := t.repo.orders[id]
	if !ok {
		return fmt.Errorf("order %d: %w", id, shared.ErrNotFound)
	}
	o.Status = status
	t.repo.orders[id] = o
	return nil
}

type approvalStub struct {
	mu   sync.Mutex
	logs []shared.ApprovalLog
}

func (a *approvalStub) Record(ctx context.Context, log shared.ApprovalLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

func (a *approvalStub) actions() []shared.ApprovalAction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]shared.ApprovalAction, 0, len(a.logs))
	for _, l := range a.logs {
		out = append(out, l.Action)
	}
	return out
}
