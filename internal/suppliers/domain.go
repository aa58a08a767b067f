package suppliers

import (
	"fmt"
	"strings"
	"time"

	"github.com/smartstock/smartstock/internal/inventory"
	"github.com/smartstock/smartstock/internal/shared"
)

// Status is the lifecycle state of supplier profiles and product requests.
// pending moves to approved or rejected exactly once.
type Status string

const (
	// StatusPending awaits an admin decision.
	StatusPending Status = "pending"
	// StatusApproved is terminal.
	StatusApproved Status = "approved"
	// StatusRejected is terminal.
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// Resolved reports whether s is terminal.
func (s Status) Resolved() bool {
	return s == StatusApproved || s == StatusRejected
}

// RequestCategory is given to catalog products created from supplier requests.
const RequestCategory = "Supplier"

// Supplier is the profile attached to a supplier user.
type Supplier struct {
	ID            int64
	UserID        int64
	Username      string
	Name          string
	ContactPerson string
	Phone         string
	Email         string
	Address       string
	Status        Status
	CreatedAt     time.Time
}

// SupplierResolution is the outcome of approving or rejecting a profile.
type SupplierResolution struct {
	Supplier        Supplier
	AlreadyResolved bool
}

// Request is a supplier's offer to deliver a quantity of a product.
type Request struct {
	ID           int64
	SupplierID   int64
	SupplierName string
	ProductName  string
	Description  string
	PricePerUnit float64
	Quantity     int
	Status       Status
	CreatedAt    time.Time
}

// RequestInput carries a new product request.
type RequestInput struct {
	SupplierID   int64   `form:"supplier" validate:"required,gt=0"`
	ProductName  string  `form:"product_name" validate:"required,max=200"`
	Description  string  `form:"description" validate:"max=2000"`
	PricePerUnit float64 `form:"price" validate:"gte=0"`
	Quantity     int     `form:"quantity" validate:"gt=0"`
}

// RequestFilter narrows request listings.
type RequestFilter struct {
	SupplierID int64
	Status     Status
}

// Resolution is the outcome of approving or rejecting a request.
type Resolution struct {
	Request         Request
	Status          Status
	AlreadyResolved bool
	// Product is the catalog row after an approval.
	Product inventory.Product
	// ProductCreated is true when the approval added a new catalog product.
	ProductCreated bool
}

// OrderStatus tracks purchase order progress. It only moves forward.
type OrderStatus string

const (
	// OrderPending is the initial state.
	OrderPending OrderStatus = "pending"
	// OrderDispatched means the supplier shipped the goods.
	OrderDispatched OrderStatus = "dispatched"
	// OrderDelivered is terminal.
	OrderDelivered OrderStatus = "delivered"
)

var orderRank = map[OrderStatus]int{OrderPending: 0, OrderDispatched: 1, OrderDelivered: 2}

// ParseOrderStatus normalises user input.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	s := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := orderRank[s]; !ok {
		return "", fmt.Errorf("%w: unknown order status %q", shared.ErrValidation, raw)
	}
	return s, nil
}

// CanAdvance reports whether an order in s may move to next.
func (s OrderStatus) CanAdvance(next OrderStatus) bool {
	from, ok := orderRank[s]
	if !ok {
		return false
	}
	to, ok := orderRank[next]
	return ok && to > from
}

// PurchaseOrder asks a supplier to deliver a product.
type PurchaseOrder struct {
	ID           int64
	SupplierID   int64
	SupplierName string
	ProductID    int64
	ProductName  string
	Quantity     int
	Status       OrderStatus
	CreatedAt    time.Time
}

// OrderInput carries a new purchase order.
type OrderInput struct {
	SupplierID int64 `form:"supplier" validate:"required,gt=0"`
	ProductID  int64 `form:"product" validate:"required,gt=0"`
	Quantity   int   `form:"quantity" validate:"gt=0"`
}

// OrderFilter narrows order listings. Limit 0 means no limit.
type OrderFilter struct {
	SupplierID int64
	Limit      int
}

// OrderStats counts a supplier's orders.
type OrderStats struct {
	Total     int
	Pending   int
	Delivered int
}

// Dashboard is the supplier landing page content.
type Dashboard struct {
	Supplier     Supplier
	Stats        OrderStats
	RecentOrders []PurchaseOrder
	Requests     []Request
}
