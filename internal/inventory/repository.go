package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smartstock/smartstock/internal/platform/db"
	"github.com/smartstock/smartstock/internal/shared"
)

// Repository persists catalog and ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes fn inside one transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, StockTx) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewStockTx(tx))
	})
}

// GetProduct loads one product.
func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
		}
		return Product{}, err
	}
	return p, nil
}

// ListProducts returns the catalog ordered by name.
func (r *Repository) ListProducts(ctx context.Context) ([]Product, error) {
	return r.queryProducts(ctx, `SELECT `+productColumns+` FROM products ORDER BY name, id`)
}

// ListLowStock returns products at or below their reorder threshold.
func (r *Repository) ListLowStock(ctx context.Context) ([]Product, error) {
	return r.queryProducts(ctx, `SELECT `+productColumns+` FROM products WHERE stock <= min_stock ORDER BY stock, name`)
}

func (r *Repository) queryProducts(ctx context.Context, sql string, args ...any) ([]Product, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// DeleteProduct removes a product; its ledger entries cascade.
func (r *Repository) DeleteProduct(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `DELETE FROM products WHERE id=$1 RETURNING `+productColumns, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
		}
		return Product{}, err
	}
	return p, nil
}

// Overview returns catalog counters.
func (r *Repository) Overview(ctx context.Context) (Overview, error) {
	var o Overview
	err := r.pool.QueryRow(ctx, `SELECT
  (SELECT COUNT(*) FROM products),
  (SELECT COALESCE(SUM(stock), 0) FROM products),
  (SELECT COUNT(*) FROM stock_transactions)`).Scan(&o.ProductCount, &o.TotalStock, &o.TransactionCount)
	return o, err
}

const transactionSelect = `SELECT t.id, t.product_id, p.name, t.direction, t.quantity, COALESCE(t.user_id, 0), COALESCE(u.username, ''), t.remarks, t.created_at
FROM stock_transactions t
JOIN products p ON p.id = t.product_id
LEFT JOIN users u ON u.id = t.user_id`

func transactionWhere(filter TransactionFilter) (string, []any) {
	var clauses []string
	var args []any
	if filter.Direction.Valid() {
		args = append(args, string(filter.Direction))
		clauses = append(clauses, fmt.Sprintf("t.direction = $%d", len(args)))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(p.name ILIKE $%d OR u.username ILIKE $%d OR t.remarks ILIKE $%d)", n, n, n))
	}
	if filter.ActorID != 0 {
		args = append(args, filter.ActorID)
		clauses = append(clauses, fmt.Sprintf("t.user_id = $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// ListTransactions returns one page of ledger entries, newest first, and the total match count.
func (r *Repository) ListTransactions(ctx context.Context, filter TransactionFilter, limit, offset int) ([]Transaction, int, error) {
	where, args := transactionWhere(filter)
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_transactions t
JOIN products p ON p.id = t.product_id
LEFT JOIN users u ON u.id = t.user_id`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, limit, offset)
	sql := transactionSelect + where + fmt.Sprintf(" ORDER BY t.created_at DESC, t.id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	txs, err := r.queryTransactions(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

// ProductTransactions returns the ledger for one product, newest first.
func (r *Repository) ProductTransactions(ctx context.Context, productID int64) ([]Transaction, error) {
	return r.queryTransactions(ctx, transactionSelect+` WHERE t.product_id=$1 ORDER BY t.created_at DESC, t.id DESC`, productID)
}

func (r *Repository) queryTransactions(ctx context.Context, sql string, args ...any) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	txs := []Transaction{}
	for rows.Next() {
		var t Transaction
		var direction string
		if err := rows.Scan(&t.ID, &t.ProductID, &t.ProductName, &direction, &t.Quantity, &t.ActorID, &t.ActorName, &t.Remarks, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Direction = Direction(direction)
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
