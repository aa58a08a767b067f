package inventory

import (
	"context"
	"fmt"
)

// StockTx is the set of catalog and ledger writes available inside one
// database transaction. Billing and supplier workflows compose it with their
// own writes in the same transaction.
type StockTx interface {
	// LockProduct loads the product row and holds its lock until commit.
	LockProduct(ctx context.Context, id int64) (Product, error)
	// LockProductByName is LockProduct keyed by exact name; found is false when absent.
	LockProductByName(ctx context.Context, name string) (p Product, found bool, err error)
	InsertProduct(ctx context.Context, p Product) (Product, error)
	// UpdateProductDetails writes every column except stock.
	UpdateProductDetails(ctx context.Context, p Product) error
	// AdjustStock applies delta in a single statement and returns the new stock.
	// It fails with ErrNegativeStock instead of going below zero.
	AdjustStock(ctx context.Context, id int64, delta int) (int, error)
	AppendTransaction(ctx context.Context, t Transaction) (Transaction, error)
}

// Movement is a stock change applied through Move.
type Movement struct {
	Direction Direction
	Quantity  int
	ActorID   int64
	Remarks   string
}

// Move applies m to a product already locked in tx and records the ledger
// entry. Outbound moves larger than the locked stock fail with
// *InsufficientStockError and leave the row untouched.
func Move(ctx context.Context, tx StockTx, product Product, m Movement) (Product, Transaction, error) {
	if !m.Direction.Valid() {
		return product, Transaction{}, fmt.Errorf("inventory: unknown direction %q", m.Direction)
	}
	if m.Quantity <= 0 {
		return product, Transaction{}, fmt.Errorf("inventory: quantity must be positive, got %d", m.Quantity)
	}
	delta := m.Quantity
	if m.Direction == DirectionOut {
		if m.Quantity > product.Stock {
			return product, Transaction{}, &InsufficientStockError{Product: product.Name, Available: product.Stock, Requested: m.Quantity}
		}
		delta = -m.Quantity
	}
	stock, err := tx.AdjustStock(ctx, product.ID, delta)
	if err != nil {
		return product, Transaction{}, err
	}
	product.Stock = stock
	entry, err := tx.AppendTransaction(ctx, Transaction{
		ProductID:   product.ID,
		ProductName: product.Name,
		Direction:   m.Direction,
		Quantity:    m.Quantity,
		ActorID:     m.ActorID,
		Remarks:     m.Remarks,
	})
	if err != nil {
		return product, Transaction{}, err
	}
	return product, entry, nil
}
