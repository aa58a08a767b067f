package suppliers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smartstock/smartstock/internal/inventory"
	"github.com/smartstock/smartstock/internal/platform/db"
	"github.com/smartstock/smartstock/internal/shared"
)

// Repository persists supplier data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes fn inside one transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, SupplierTx) error) error {
	if r == nil {
		return errors.New("suppliers repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgSupplierTx{StockTx: inventory.NewStockTx(tx), tx: tx})
	})
}

// GetSupplier loads one profile.
func (r *Repository) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	return scanSupplier(r.pool.QueryRow(ctx, supplierSelect+` WHERE s.id = $1`, id), id)
}

// ListSuppliers returns profiles newest first, optionally by status.
func (r *Repository) ListSuppliers(ctx context.Context, status Status) ([]Supplier, error) {
	sql := supplierSelect
	var args []any
	if status != "" {
		sql += ` WHERE s.status = $1`
		args = append(args, string(status))
	}
	rows, err := r.pool.Query(ctx, sql+` ORDER BY s.created_at DESC, s.id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Supplier{}
	for rows.Next() {
		var s Supplier
		var status string
		if err := rows.Scan(&s.ID, &s.UserID, &s.Username, &s.Name, &s.ContactPerson, &s.Phone, &s.Email, &s.Address, &status, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Status = Status(status)
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountSuppliers counts profiles, optionally by status.
func (r *Repository) CountSuppliers(ctx context.Context, status Status) (int, error) {
	var n int
	var err error
	if status == "" {
		err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM suppliers`).Scan(&n)
	} else {
		err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM suppliers WHERE status = $1`, string(status)).Scan(&n)
	}
	return n, err
}

// InsertRequest stores a new product request.
func (r *Repository) InsertRequest(ctx context.Context, req Request) (Request, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO supplier_requests (supplier_id, product_name, description, price_per_unit, quantity, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW()) RETURNING id, created_at`,
		req.SupplierID, req.ProductName, req.Description, req.PricePerUnit, req.Quantity, string(req.Status)).Scan(&req.ID, &req.CreatedAt)
	return req, err
}

// ListRequests returns requests newest first.
func (r *Repository) ListRequests(ctx context.Context, filter RequestFilter) ([]Request, error) {
	var clauses []string
	var args []any
	if filter.SupplierID != 0 {
		args = append(args, filter.SupplierID)
		clauses = append(clauses, fmt.Sprintf("r.supplier_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("r.status = $%d", len(args)))
	}
	sql := requestSelect
	if len(clauses) > 0 {
		sql += " WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.pool.Query(ctx, sql+` ORDER BY r.created_at DESC, r.id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// ListOrders returns purchase orders newest first.
func (r *Repository) ListOrders(ctx context.Context, filter OrderFilter) ([]PurchaseOrder, error) {
	sql := orderSelect
	var args []any
	if filter.SupplierID != 0 {
		args = append(args, filter.SupplierID)
		sql += ` WHERE o.supplier_id = $1`
	}
	sql += ` ORDER BY o.created_at DESC, o.id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		sql += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []PurchaseOrder{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// OrderStats counts a supplier's orders by status.
func (r *Repository) OrderStats(ctx context.Context, supplierID int64) (OrderStats, error) {
	var st OrderStats
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*),
  COUNT(*) FILTER (WHERE status = 'pending'),
  COUNT(*) FILTER (WHERE status = 'delivered')
FROM purchase_orders WHERE supplier_id = $1`, supplierID).Scan(&st.Total, &st.Pending, &st.Delivered)
	return st, err
}

var _ RepositoryPort = (*Repository)(nil)

func notFound(kind string, id int64) error {
	return fmt.Errorf("%s %d: %w", kind, id, shared.ErrNotFound)
}
