package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smartstock/smartstock/internal/inventory"
	"github.com/smartstock/smartstock/internal/platform/db"
	"github.com/smartstock/smartstock/internal/shared"
)

// Repository persists bills in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes fn inside one transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, BillTx) error) error {
	if r == nil {
		return errors.New("billing repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgBillTx{StockTx: inventory.NewStockTx(tx), tx: tx})
	})
}

// ListBills returns bill summaries, newest first.
func (r *Repository) ListBills(ctx context.Context) ([]BillSummary, error) {
	rows, err := r.pool.Query(ctx, `SELECT b.id, b.customer_name, COALESCE(u.username, ''), b.created_at,
  COUNT(i.id), COALESCE(SUM(i.quantity * i.price), 0)::float8
FROM bills b
LEFT JOIN users u ON u.id = b.created_by
LEFT JOIN bill_items i ON i.bill_id = b.id
GROUP BY b.id, u.username
ORDER BY b.created_at DESC, b.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	bills := []BillSummary{}
	for rows.Next() {
		var b BillSummary
		if err := rows.Scan(&b.ID, &b.CustomerName, &b.CreatedByName, &b.CreatedAt, &b.ItemCount, &b.Total); err != nil {
			return nil, err
		}
		b.Total = roundCents(b.Total)
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

// GetBill loads one bill with its items.
func (r *Repository) GetBill(ctx context.Context, id int64) (Bill, error) {
	var b Bill
	err := r.pool.QueryRow(ctx, `SELECT b.id, b.customer_name, COALESCE(b.created_by, 0), COALESCE(u.username, ''), b.created_at
FROM bills b LEFT JOIN users u ON u.id = b.created_by
WHERE b.id = $1`, id).Scan(&b.ID, &b.CustomerName, &b.CreatedBy, &b.CreatedByName, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bill{}, fmt.Errorf("bill %d: %w", id, shared.ErrNotFound)
		}
		return Bill{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT i.id, i.bill_id, i.product_id, p.name, i.quantity, i.price::float8
FROM bill_items i JOIN products p ON p.id = i.product_id
WHERE i.bill_id = $1 ORDER BY i.id`, id)
	if err != nil {
		return Bill{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item BillItem
		if err := rows.Scan(&item.ID, &item.BillID, &item.ProductID, &item.ProductName, &item.Quantity, &item.Price); err != nil {
			return Bill{}, err
		}
		b.Items = append(b.Items, item)
	}
	return b, rows.Err()
}

// MaxBillID returns the highest bill id, or 0 when there are none.
func (r *Repository) MaxBillID(ctx context.Context) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM bills`).Scan(&id)
	return id, err
}

var _ RepositoryPort = (*Repository)(nil)
