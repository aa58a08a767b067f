package inventory

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Direction tells whether a ledger entry added or removed stock.
type Direction string

const (
	// DirectionIn represents an inbound movement.
	DirectionIn Direction = "in"
	// DirectionOut represents an outbound movement.
	DirectionOut Direction = "out"
)

// Valid reports whether d is in or out.
func (d Direction) Valid() bool {
	return d == DirectionIn || d == DirectionOut
}

// ParseDirection normalises user input; unknown values yield "".
func ParseDirection(raw string) Direction {
	d := Direction(strings.ToLower(strings.TrimSpace(raw)))
	if d.Valid() {
		return d
	}
	return ""
}

// DefaultMinStock is the reorder threshold given to new products.
const DefaultMinStock = 5

// Product is a catalog item with its on-hand stock.
type Product struct {
	ID          int64
	Name        string
	Category    string
	Stock       int
	Price       float64
	Description string
	MinStock    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsLowStock reports whether stock is at or below the reorder threshold.
func (p Product) IsLowStock() bool {
	return p.Stock <= p.MinStock
}

// Transaction is one append-only ledger entry.
type Transaction struct {
	ID          int64
	ProductID   int64
	ProductName string
	Direction   Direction
	Quantity    int
	ActorID     int64
	ActorName   string
	Remarks     string
	CreatedAt   time.Time
}

// Signed returns the stock delta carried by the entry.
func (t Transaction) Signed() int {
	if t.Direction == DirectionOut {
		return -t.Quantity
	}
	return t.Quantity
}

// ProductInput carries the editable product fields.
type ProductInput struct {
	Name        string  `form:"name" validate:"required,max=200"`
	Category    string  `form:"category" validate:"required,max=100"`
	Stock       int     `form:"stock" validate:"gte=0"`
	// StockWas is the stock shown when the edit form was opened. Updates
	// apply Stock - StockWas to the live figure.
	StockWas    int     `form:"stock_was" validate:"gte=0"`
	Price       float64 `form:"price" validate:"gte=0"`
	Description string  `form:"description"`
	MinStock    int     `form:"min_stock" validate:"gte=0"`
}

// TransactionInput describes a direct stock movement posted by an admin.
type TransactionInput struct {
	ProductID int64     `form:"product" validate:"required,gt=0"`
	Direction Direction `form:"type" validate:"required,oneof=in out"`
	Quantity  int       `form:"quantity" validate:"gt=0"`
	Remarks   string    `form:"remarks" validate:"max=500"`
	ActorID   int64     `form:"-"`
}

// TransactionFilter narrows the ledger listing.
type TransactionFilter struct {
	Direction Direction
	Query     string
	ActorID   int64
	Page      int
	PerPage   int
}

// Overview aggregates catalog figures for dashboards.
type Overview struct {
	ProductCount     int
	TotalStock       int
	TransactionCount int
}

// ErrInsufficientStock is matched by every InsufficientStockError.
var ErrInsufficientStock = errors.New("inventory: insufficient stock")

// ErrNegativeStock is returned when an adjustment would drive stock below zero.
var ErrNegativeStock = errors.New("inventory: negative stock not allowed")

// InsufficientStockError reports a movement larger than the available stock.
type InsufficientStockError struct {
	Product   string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for %s: available %d, requested %d", e.Product, e.Available, e.Requested)
}

// Is makes errors.Is(err, ErrInsufficientStock) succeed.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// UserMessage is shown on forms and flashes.
func (e *InsufficientStockError) UserMessage() string {
	return fmt.Sprintf("Not enough stock for %s. Available: %d, Requested: %d", e.Product, e.Available, e.Requested)
}
