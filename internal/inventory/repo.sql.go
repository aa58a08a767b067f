package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/smartstock/smartstock/internal/shared"
)

const productColumns = `id, name, category, stock, price::float8, description, min_stock, created_at, updated_at`

type pgStockTx struct {
	tx pgx.Tx
}

// NewStockTx binds StockTx to an open pgx transaction.
func NewStockTx(tx pgx.Tx) StockTx {
	return &pgStockTx{tx: tx}
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Stock, &p.Price, &p.Description, &p.MinStock, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *pgStockTx) LockProduct(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
		}
		return Product{}, err
	}
	return p, nil
}

// LockProductByName serialises on the name with a transaction-scoped advisory
// lock first, so callers that insert on a miss cannot race each other.
func (r *pgStockTx) LockProductByName(ctx context.Context, name string) (Product, bool, error) {
	if _, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('products.name:' || $1))`, name); err != nil {
		return Product{}, false, fmt.Errorf("lock product name: %w", err)
	}
	p, err := scanProduct(r.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE name=$1 ORDER BY id LIMIT 1 FOR UPDATE`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, false, nil
		}
		return Product{}, false, err
	}
	return p, true, nil
}

func (r *pgStockTx) InsertProduct(ctx context.Context, p Product) (Product, error) {
	return scanProduct(r.tx.QueryRow(ctx, `INSERT INTO products (name, category, stock, price, description, min_stock, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW())
RETURNING `+productColumns, p.Name, p.Category, p.Stock, p.Price, p.Description, p.MinStock))
}

func (r *pgStockTx) UpdateProductDetails(ctx context.Context, p Product) error {
	tag, err := r.tx.Exec(ctx, `UPDATE products SET name=$2, category=$3, price=$4, description=$5, min_stock=$6, updated_at=NOW() WHERE id=$1`,
		p.ID, p.Name, p.Category, p.Price, p.Description, p.MinStock)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", p.ID, shared.ErrNotFound)
	}
	return nil
}

func (r *pgStockTx) AdjustStock(ctx context.Context, id int64, delta int) (int, error) {
	var stock int
	err := r.tx.QueryRow(ctx, `UPDATE products SET stock = stock + $2, updated_at = NOW()
WHERE id = $1 AND stock + $2 >= 0
RETURNING stock`, id, delta).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNegativeStock
		}
		return 0, err
	}
	return stock, nil
}

func (r *pgStockTx) AppendTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_transactions (product_id, direction, quantity, user_id, remarks, created_at)
VALUES ($1,$2,$3,$4,$5,NOW()) RETURNING id, created_at`,
		t.ProductID, string(t.Direction), t.Quantity, nullInt(t.ActorID), t.Remarks).Scan(&t.ID, &t.CreatedAt)
	return t, err
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
