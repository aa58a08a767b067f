package billing_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/smartstock/smartstock/internal/billing"
	"github.com/smartstock/smartstock/internal/inventory"
	"github.com/smartstock/smartstock/internal/inventory/inventorytest"
	"github.com/smartstock/smartstock/internal/shared"
)

// memoryRepo keeps bills next to an inventorytest.Store and rolls both back
// together.
type memoryRepo struct {
	store *inventorytest.Store

	mu     sync.Mutex
	bills  []billing.Bill
	nextID int64

	// failItemAt fails the nth InsertBillItem call (1-based) when positive.
	failItemAt int
	itemCalls  int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{store: inventorytest.NewStore()}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, billing.BillTx) error) error {
	return m.store.WithTx(ctx, func(ctx context.Context, stx inventory.StockTx) error {
		m.mu.Lock()
		billsLen, nextID := len(m.bills), m.nextID
		m.mu.Unlock()
		if err := fn(ctx, &memoryTx{StockTx: stx, repo: m}); err != nil {
			m.mu.Lock()
			m.bills = m.bills[:billsLen]
			m.nextID = nextID
			m.mu.Unlock()
			return err
		}
		return nil
	})
}

func (m *memoryRepo) ListBills(ctx context.Context) ([]billing.BillSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]billing.BillSummary, 0, len(m.bills))
	for _, b := range m.bills {
		out = append(out, billing.BillSummary{ID: b.ID, CustomerName: b.CustomerName, CreatedAt: b.CreatedAt, ItemCount: len(b.Items), Total: b.Total()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memoryRepo) GetBill(ctx context.Context, id int64) (billing.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bills {
		if b.ID == id {
			return b, nil
		}
	}
	return billing.Bill{}, fmt.Errorf("bill %d: %w", id, shared.ErrNotFound)
}

func (m *memoryRepo) MaxBillID(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var highest int64
	for _, b := range m.bills {
		if b.ID > highest {
			highest = b.ID
		}
	}
	return highest, nil
}

func (m *memoryRepo) billCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bills)
}

type memoryTx struct {
	inventory.StockTx
	repo *memoryRepo
}

func (t *memoryTx) InsertBill(ctx context.Context, b billing.Bill) (billing.Bill, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	t.repo.nextID++
	b.ID = t.repo.nextID
	b.CreatedAt = time.Now()
	t.repo.bills = append(t.repo.bills, b)
	return b, nil
}

func (t *memoryTx) InsertBillItem(ctx context.Context, item billing.BillItem) (billing.BillItem, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	t.repo.itemCalls++
	if t.repo.failItemAt > 0 && t.repo.itemCalls == t.repo.failItemAt {
		return billing.BillItem{}, fmt.Errorf("injected failure on item %d", t.repo.itemCalls)
	}
	for i := range t.repo.bills {
		if t.repo.bills[i].ID == item.BillID {
			item.ID = int64(len(t.repo.bills[i].Items) + 1)
			t.repo.bills[i].Items = append(t.repo.bills[i].Items, item)
			return item, nil
		}
	}
	return billing.BillItem{}, fmt.Errorf("bill %d: %w", item.BillID, shared.ErrNotFound)
}

type idempotencyStub struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (s *idempotencyStub) CheckAndInsert(ctx context.Context, key, module string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys == nil {
		s.keys = map[string]bool{}
	}
	if s.keys[module+":"+key] {
		return shared.ErrIdempotencyConflict
	}
	s.keys[module+":"+key] = true
	return nil
}

func (s *idempotencyStub) Delete(ctx context.Context, key, module string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, module+":"+key)
	return nil
}

type notifierStub struct {
	mu       sync.Mutex
	products []string
}

func (n *notifierStub) NotifyLowStock(ctx context.Context, p inventory.Product) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.products = append(n.products, p.Name)
	return nil
}

type observerStub struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (o *observerStub) ObserveBill(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = map[string]int{}
	}
	o.outcomes[outcome]++
}

func (o *observerStub) ObserveStockMovement(direction string, qty int) {}

func (o *observerStub) count(outcome string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.outcomes[outcome]
}
