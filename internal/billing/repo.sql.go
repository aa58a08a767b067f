package billing

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/smartstock/smartstock/internal/inventory"
)

type pgBillTx struct {
	inventory.StockTx
	tx pgx.Tx
}

func (r *pgBillTx) InsertBill(ctx context.Context, b Bill) (Bill, error) {
	var createdBy any
	if b.CreatedBy != 0 {
		createdBy = b.CreatedBy
	}
	err := r.tx.QueryRow(ctx, `INSERT INTO bills (customer_name, created_by, created_at)
VALUES ($1, $2, NOW()) RETURNING id, created_at`, b.CustomerName, createdBy).Scan(&b.ID, &b.CreatedAt)
	return b, err
}

func (r *pgBillTx) InsertBillItem(ctx context.Context, item BillItem) (BillItem, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO bill_items (bill_id, product_id, quantity, price)
VALUES ($1, $2, $3, $4) RETURNING id`, item.BillID, item.ProductID, item.Quantity, item.Price).Scan(&item.ID)
	return item, err
}
