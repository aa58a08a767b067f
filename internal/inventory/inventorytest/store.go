// Package inventorytest provides an in-memory catalog and ledger for tests.
package inventorytest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/smartstock/smartstock/internal/inventory"
	"github.com/smartstock/smartstock/internal/shared"
)

// Store implements inventory.RepositoryPort in memory. WithTx runs callbacks
// one at a time and restores the previous state when the callback fails.
type Store struct {
	mu       sync.Mutex
	products map[int64]inventory.Product
	ledger   []inventory.Transaction
	nextProd int64
	nextTx   int64
	users    map[int64]string

	// BeforeAdjust, when set, runs before every stock adjustment.
	BeforeAdjust func(productID int64, delta int) error
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{products: map[int64]inventory.Product{}, users: map[int64]string{}}
}

// SetUser registers a username shown on ledger entries for id.
func (s *Store) SetUser(id int64, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = username
}

// Seed inserts a product directly, bypassing the ledger.
func (s *Store) Seed(p inventory.Product) inventory.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextProd++
	p.ID = s.nextProd
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	p.UpdatedAt = p.CreatedAt
	s.products[p.ID] = p
	return p
}

// Product returns the committed state of a product.
func (s *Store) Product(id int64) (inventory.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	return p, ok
}

// ProductByName returns the first product with the exact name.
func (s *Store) ProductByName(name string) (inventory.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.sortedProducts() {
		if p.Name == name {
			return p, true
		}
	}
	return inventory.Product{}, false
}

// Ledger returns a copy of every committed ledger entry in insertion order.
func (s *Store) Ledger() []inventory.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]inventory.Transaction, len(s.ledger))
	copy(out, s.ledger)
	return out
}

// WithTx implements inventory.RepositoryPort.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, inventory.StockTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	products := make(map[int64]inventory.Product, len(s.products))
	for id, p := range s.products {
		products[id] = p
	}
	ledgerLen, nextProd, nextTx := len(s.ledger), s.nextProd, s.nextTx
	if err := fn(ctx, &stockTx{store: s}); err != nil {
		s.products = products
		s.ledger = s.ledger[:ledgerLen]
		s.nextProd, s.nextTx = nextProd, nextTx
		return err
	}
	return nil
}

// GetProduct implements inventory.RepositoryPort.
func (s *Store) GetProduct(ctx context.Context, id int64) (inventory.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return inventory.Product{}, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	return p, nil
}

// ListProducts implements inventory.RepositoryPort.
func (s *Store) ListProducts(ctx context.Context) ([]inventory.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedProducts(), nil
}

// ListLowStock implements inventory.RepositoryPort.
func (s *Store) ListLowStock(ctx context.Context) ([]inventory.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []inventory.Product{}
	for _, p := range s.sortedProducts() {
		if p.IsLowStock() {
			out = append(out, p)
		}
	}
	return out, nil
}

// DeleteProduct implements inventory.RepositoryPort.
func (s *Store) DeleteProduct(ctx context.Context, id int64) (inventory.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return inventory.Product{}, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	delete(s.products, id)
	kept := s.ledger[:0]
	for _, t := range s.ledger {
		if t.ProductID != id {
			kept = append(kept, t)
		}
	}
	s.ledger = kept
	return p, nil
}

// Overview implements inventory.RepositoryPort.
func (s *Store) Overview(ctx context.Context) (inventory.Overview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := inventory.Overview{ProductCount: len(s.products), TransactionCount: len(s.ledger)}
	for _, p := range s.products {
		o.TotalStock += p.Stock
	}
	return o, nil
}

// ListTransactions implements inventory.RepositoryPort.
func (s *Store) ListTransactions(ctx context.Context, filter inventory.TransactionFilter, limit, offset int) ([]inventory.Transaction, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := strings.ToLower(strings.TrimSpace(filter.Query))
	matched := []inventory.Transaction{}
	for i := len(s.ledger) - 1; i >= 0; i-- {
		t := s.decorate(s.ledger[i])
		if filter.Direction.Valid() && t.Direction != filter.Direction {
			continue
		}
		if filter.ActorID != 0 && t.ActorID != filter.ActorID {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(t.ProductName), q) &&
			!strings.Contains(strings.ToLower(t.ActorName), q) &&
			!strings.Contains(strings.ToLower(t.Remarks), q) {
			continue
		}
		matched = append(matched, t)
	}
	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

// ProductTransactions implements inventory.RepositoryPort.
func (s *Store) ProductTransactions(ctx context.Context, productID int64) ([]inventory.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []inventory.Transaction{}
	for i := len(s.ledger) - 1; i >= 0; i-- {
		if s.ledger[i].ProductID == productID {
			out = append(out, s.decorate(s.ledger[i]))
		}
	}
	return out, nil
}

func (s *Store) decorate(t inventory.Transaction) inventory.Transaction {
	if p, ok := s.products[t.ProductID]; ok {
		t.ProductName = p.Name
	}
	t.ActorName = s.users[t.ActorID]
	return t
}

func (s *Store) sortedProducts() []inventory.Product {
	out := make([]inventory.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out
}

type stockTx struct {
	store *Store
}

func (t *stockTx) LockProduct(ctx context.Context, id int64) (inventory.Product, error) {
	p, ok := t.store.products[id]
	if !ok {
		return inventory.Product{}, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	return p, nil
}

func (t *stockTx) LockProductByName(ctx context.Context, name string) (inventory.Product, bool, error) {
	for _, p := range t.store.sortedProducts() {
		if p.Name == name {
			return p, true, nil
		}
	}
	return inventory.Product{}, false, nil
}

func (t *stockTx) InsertProduct(ctx context.Context, p inventory.Product) (inventory.Product, error) {
	if p.Stock < 0 {
		return inventory.Product{}, inventory.ErrNegativeStock
	}
	t.store.nextProd++
	p.ID = t.store.nextProd
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	t.store.products[p.ID] = p
	return p, nil
}

func (t *stockTx) UpdateProductDetails(ctx context.Context, p inventory.Product) error {
	current, ok := t.store.products[p.ID]
	if !ok {
		return fmt.Errorf("product %d: %w", p.ID, shared.ErrNotFound)
	}
	p.Stock = current.Stock
	p.CreatedAt = current.CreatedAt
	p.UpdatedAt = time.Now()
	t.store.products[p.ID] = p
	return nil
}

func (t *stockTx) AdjustStock(ctx context.Context, id int64, delta int) (int, error) {
	if t.store.BeforeAdjust != nil {
		if err := t.store.BeforeAdjust(id, delta); err != nil {
			return 0, err
		}
	}
	p, ok := t.store.products[id]
	if !ok {
		return 0, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	if p.Stock+delta < 0 {
		return 0, inventory.ErrNegativeStock
	}
	p.Stock += delta
	p.UpdatedAt = time.Now()
	t.store.products[id] = p
	return p.Stock, nil
}

func (t *stockTx) AppendTransaction(ctx context.Context, entry inventory.Transaction) (inventory.Transaction, error) {
	if entry.Quantity <= 0 || !entry.Direction.Valid() {
		return inventory.Transaction{}, fmt.Errorf("inventorytest: invalid ledger entry %+v", entry)
	}
	t.store.nextTx++
	entry.ID = t.store.nextTx
	entry.CreatedAt = time.Now()
	t.store.ledger = append(t.store.ledger, entry)
	return entry, nil
}
