package billing

import (
	"math"
	"time"
)

// IdempotencyModule scopes bill form keys in the idempotency store.
const IdempotencyModule = "billing"

// Bill is a committed sale with its line items.
type Bill struct {
	ID            int64
	CustomerName  string
	CreatedBy     int64
	CreatedByName string
	CreatedAt     time.Time
	Items         []BillItem
}

// Total sums quantity times the snapshotted unit price of every item.
func (b Bill) Total() float64 {
	var total float64
	for _, item := range b.Items {
		total += item.Subtotal()
	}
	return roundCents(total)
}

// BillItem is one line of a bill. Price is the unit price at billing time.
type BillItem struct {
	ID          int64
	BillID      int64
	ProductID   int64
	ProductName string
	Quantity    int
	Price       float64
}

// Subtotal returns quantity times unit price.
func (i BillItem) Subtotal() float64 {
	return roundCents(float64(i.Quantity) * i.Price)
}

// BillSummary is a bill row in the listing.
type BillSummary struct {
	ID            int64
	CustomerName  string
	CreatedByName string
	CreatedAt     time.Time
	ItemCount     int
	Total         float64
}

// LineInput requests a quantity of one product.
type LineInput struct {
	ProductID int64 `form:"product" validate:"required,gt=0"`
	Quantity  int   `form:"quantity" validate:"gt=0"`
}

// CreateBillInput is the payload of the bill workflow.
type CreateBillInput struct {
	CustomerName   string      `form:"customer_name" validate:"required,max=200"`
	Lines          []LineInput `form:"items" validate:"min=1,dive"`
	ActorID        int64       `form:"-"`
	IdempotencyKey string      `form:"-"`
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
