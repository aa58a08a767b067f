package suppliers

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/smartstock/smartstock/internal/inventory"
)

const supplierSelect = `SELECT s.id, s.user_id, u.username, s.name, s.contact_person, s.phone, s.email, s.address, s.status, s.created_at
FROM suppliers s JOIN users u ON u.id = s.user_id`

const requestSelect = `SELECT r.id, r.supplier_id, s.name, r.product_name, r.description, r.price_per_unit::float8, r.quantity, r.status, r.created_at
FROM supplier_requests r JOIN suppliers s ON s.id = r.supplier_id`

const orderSelect = `SELECT o.id, o.supplier_id, s.name, o.product_id, p.name, o.quantity, o.status, o.created_at
FROM purchase_orders o
JOIN suppliers s ON s.id = o.supplier_id
JOIN products p ON p.id = o.product_id`

func scanSupplier(row pgx.Row, id int64) (Supplier, error) {
	var s Supplier
	var status string
	err := row.Scan(&s.ID, &s.UserID, &s.Username, &s.Name, &s.ContactPerson, &s.Phone, &s.Email, &s.Address, &status, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Supplier{}, notFound("supplier", id)
		}
		return Supplier{}, err
	}
	s.Status = Status(status)
	return s, nil
}

func scanRequest(row pgx.Row) (Request, error) {
	var r Request
	var status string
	if err := row.Scan(&r.ID, &r.SupplierID, &r.SupplierName, &r.ProductName, &r.Description, &r.PricePerUnit, &r.Quantity, &status, &r.CreatedAt); err != nil {
		return Request{}, err
	}
	r.Status = Status(status)
	return r, nil
}

func scanOrder(row pgx.Row) (PurchaseOrder, error) {
	var o PurchaseOrder
	var status string
	if err := row.Scan(&o.ID, &o.SupplierID, &o.SupplierName, &o.ProductID, &o.ProductName, &o.Quantity, &status, &o.CreatedAt); err != nil {
		return PurchaseOrder{}, err
	}
	o.Status = OrderStatus(status)
	return o, nil
}

type pgSupplierTx struct {
	inventory.StockTx
	tx pgx.Tx
}

func (r *pgSupplierTx) LockSupplier(ctx context.Context, id int64) (Supplier, error) {
	return scanSupplier(r.tx.QueryRow(ctx, supplierSelect+` WHERE s.id = $1 FOR UPDATE OF s`, id), id)
}

func (r *pgSupplierTx) SetSupplierStatus(ctx context.Context, id int64, status Status) error {
	return r.exec(ctx, "supplier", id, `UPDATE suppliers SET status = $2 WHERE id = $1`, id, string(status))
}

func (r *pgSupplierTx) LockRequest(ctx context.Context, id int64) (Request, error) {
	req, err := scanRequest(r.tx.QueryRow(ctx, requestSelect+` WHERE r.id = $1 FOR UPDATE OF r`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, notFound("supplier request", id)
	}
	return req, err
}

func (r *pgSupplierTx) SetRequestStatus(ctx context.Context, id int64, status Status) error {
	return r.exec(ctx, "supplier request", id, `UPDATE supplier_requests SET status = $2 WHERE id = $1`, id, string(status))
}

func (r *pgSupplierTx) InsertOrder(ctx context.Context, o PurchaseOrder) (PurchaseOrder, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_orders (supplier_id, product_id, quantity, status, created_at)
VALUES ($1, $2, $3, $4, NOW()) RETURNING id, created_at`,
		o.SupplierID, o.ProductID, o.Quantity, string(o.Status)).Scan(&o.ID, &o.CreatedAt)
	return o, err
}

func (r *pgSupplierTx) LockOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	o, err := scanOrder(r.tx.QueryRow(ctx, orderSelect+` WHERE o.id = $1 FOR UPDATE OF o`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, notFound("order", id)
	}
	return o, err
}

func (r *pgSupplierTx) SetOrderStatus(ctx context.Context, id int64, status OrderStatus) error {
	return r.exec(ctx, "order", id, `UPDATE purchase_orders SET status = $2 WHERE id = $1`, id, string(status))
}

func (r *pgSupplierTx) exec(ctx context.Context, kind string, id int64, sql string, args ...any) error {
	tag, err := r.tx.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(kind, id)
	}
	return nil
}
