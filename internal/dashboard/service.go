// Package dashboard assembles the admin and staff landing pages.
package dashboard

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/smartstock/smartstock/internal/inventory"
)

// RecentLimit is the number of ledger entries shown on dashboards.
const RecentLimit = 5

// InventoryReader is the catalog and ledger view dashboards need.
type InventoryReader interface {
	ListProducts(ctx context.Context) ([]inventory.Product, error)
	LowStock(ctx context.Context) ([]inventory.Product, error)
	Overview(ctx context.Context) (inventory.Overview, error)
	RecentTransactions(ctx context.Context, limit int, actorID int64) ([]inventory.Transaction, error)
}

// SupplierCounter counts suppliers awaiting approval.
type SupplierCounter interface {
	PendingSupplierCount(ctx context.Context) (int, error)
}

// UserCounter counts active staff and supplier accounts.
type UserCounter interface {
	CountActive(ctx context.Context) (int, error)
}

// Admin is the admin dashboard content.
type Admin struct {
	inventory.Overview
	ActiveUsers        int
	LowStock           []inventory.Product
	Recent             []inventory.Transaction
	Products           []inventory.Product
	ChartLabels        []string
	ChartData          []int
	ChartMax           int
	PendingSuppliers   int
	PendingWarning     string
	ShowPendingWarning bool
}

// Staff is the staff dashboard content.
type Staff struct {
	ProductCount int
	TotalStock   int
	Recent       []inventory.Transaction
	Products     []inventory.Product
	LowStock     []inventory.Product
}

// Service loads dashboard figures concurrently. Simultaneous loads of the
// same dashboard share one set of queries.
type Service struct {
	inventory InventoryReader
	suppliers SupplierCounter
	users     UserCounter
	group     singleflight.Group
}

// NewService constructs Service.
func NewService(inv InventoryReader, suppliers SupplierCounter, users UserCounter) *Service {
	return &Service{inventory: inv, suppliers: suppliers, users: users}
}

// Admin gathers every admin figure. The pending warning text is set whenever
// suppliers are pending; whether it is shown is the caller's decision.
func (s *Service) Admin(ctx context.Context) (Admin, error) {
	v, err := s.shared(ctx, "admin", func(ctx context.Context) (any, error) {
		return s.loadAdmin(ctx)
	})
	if err != nil {
		return Admin{}, err
	}
	return v.(Admin), nil
}

func (s *Service) loadAdmin(ctx context.Context) (Admin, error) {
	var d Admin
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		o, err := s.inventory.Overview(ctx)
		d.Overview = o
		return err
	})
	g.Go(func() error {
		n, err := s.users.CountActive(ctx)
		d.ActiveUsers = n
		return err
	})
	g.Go(func() error {
		low, err := s.inventory.LowStock(ctx)
		d.LowStock = low
		return err
	})
	g.Go(func() error {
		recent, err := s.inventory.RecentTransactions(ctx, RecentLimit, 0)
		d.Recent = recent
		return err
	})
	g.Go(func() error {
		products, err := s.inventory.ListProducts(ctx)
		d.Products = products
		return err
	})
	g.Go(func() error {
		n, err := s.suppliers.PendingSupplierCount(ctx)
		d.PendingSuppliers = n
		return err
	})
	if err := g.Wait(); err != nil {
		return Admin{}, err
	}
	d.ChartLabels = make([]string, 0, len(d.Products))
	d.ChartData = make([]int, 0, len(d.Products))
	for _, p := range d.Products {
		d.ChartLabels = append(d.ChartLabels, p.Name)
		d.ChartData = append(d.ChartData, p.Stock)
		if p.Stock > d.ChartMax {
			d.ChartMax = p.Stock
		}
	}
	if d.PendingSuppliers > 0 {
		d.PendingWarning = PendingWarning(d.PendingSuppliers)
	}
	return d, nil
}

// PendingWarning is the admin notice for n pending suppliers.
func PendingWarning(n int) string {
	return fmt.Sprintf("%d supplier request(s) pending approval", n)
}

// Staff gathers the staff figures. Recent entries are the caller's own.
func (s *Service) Staff(ctx context.Context, actorID int64) (Staff, error) {
	v, err := s.shared(ctx, fmt.Sprintf("staff:%d", actorID), func(ctx context.Context) (any, error) {
		return s.loadStaff(ctx, actorID)
	})
	if err != nil {
		return Staff{}, err
	}
	return v.(Staff), nil
}

func (s *Service) loadStaff(ctx context.Context, actorID int64) (Staff, error) {
	var d Staff
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		o, err := s.inventory.Overview(ctx)
		d.ProductCount, d.TotalStock = o.ProductCount, o.TotalStock
		return err
	})
	g.Go(func() error {
		recent, err := s.inventory.RecentTransactions(ctx, RecentLimit, actorID)
		d.Recent = recent
		return err
	})
	g.Go(func() error {
		products, err := s.inventory.ListProducts(ctx)
		d.Products = products
		return err
	})
	g.Go(func() error {
		low, err := s.inventory.LowStock(ctx)
		d.LowStock = low
		return err
	})
	if err := g.Wait(); err != nil {
		return Staff{}, err
	}
	return d, nil
}

func (s *Service) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := s.group.DoChan(key, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}
