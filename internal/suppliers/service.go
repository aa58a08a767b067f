package suppliers

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/smartstock/smartstock/internal/inventory"
	"github.com/smartstock/smartstock/internal/shared"
)

// SupplierTx is the write set of one supplier workflow transaction.
type SupplierTx interface {
	inventory.StockTx
	LockSupplier(ctx context.Context, id int64) (Supplier, error)
	SetSupplierStatus(ctx context.Context, id int64, status Status) error
	LockRequest(ctx context.Context, id int64) (Request, error)
	SetRequestStatus(ctx context.Context, id int64, status Status) error
	InsertOrder(ctx context.Context, o PurchaseOrder) (PurchaseOrder, error)
	LockOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	SetOrderStatus(ctx context.Context, id int64, status OrderStatus) error
}

// RepositoryPort abstracts supplier persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, SupplierTx) error) error
	GetSupplier(ctx context.Context, id int64) (Supplier, error)
	ListSuppliers(ctx context.Context, status Status) ([]Supplier, error)
	CountSuppliers(ctx context.Context, status Status) (int, error)
	InsertRequest(ctx context.Context, r Request) (Request, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]Request, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]PurchaseOrder, error)
	OrderStats(ctx context.Context, supplierID int64) (OrderStats, error)
}

// ApprovalPort records approval decisions.
type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
}

// Service coordinates supplier approval, product requests and purchase orders.
type Service struct {
	repo      RepositoryPort
	approvals ApprovalPort
	audit     inventory.AuditPort
	observer  inventory.MovementObserver
	logger    *slog.Logger
	validate  *validator.Validate
}

// NewService builds Service. approvals, audit and observer may be nil.
func NewService(repo RepositoryPort, approvals ApprovalPort, audit inventory.AuditPort, observer inventory.MovementObserver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, approvals: approvals, audit: audit, observer: observer, logger: logger, validate: shared.NewValidator()}
}

// GetSupplier loads one profile.
func (s *Service) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	return s.repo.GetSupplier(ctx, id)
}

// ListSuppliers returns profiles, optionally restricted to one status.
func (s *Service) ListSuppliers(ctx context.Context, status Status) ([]Supplier, error) {
	if !status.Valid() {
		status = ""
	}
	return s.repo.ListSuppliers(ctx, status)
}

// PendingSupplierCount counts profiles awaiting a decision.
func (s *Service) PendingSupplierCount(ctx context.Context) (int, error) {
	return s.repo.CountSuppliers(ctx, StatusPending)
}

// ApproveSupplier moves a pending profile to approved.
func (s *Service) ApproveSupplier(ctx context.Context, id, actorID int64) (SupplierResolution, error) {
	return s.resolveSupplier(ctx, id, actorID, StatusApproved)
}

// RejectSupplier moves a pending profile to rejected.
func (s *Service) RejectSupplier(ctx context.Context, id, actorID int64) (SupplierResolution, error) {
	return s.resolveSupplier(ctx, id, actorID, StatusRejected)
}

func (s *Service) resolveSupplier(ctx context.Context, id, actorID int64, target Status) (SupplierResolution, error) {
	var res SupplierResolution
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx SupplierTx) error {
		sup, err := tx.LockSupplier(ctx, id)
		if err != nil {
			return err
		}
		if sup.Status.Resolved() {
			res = SupplierResolution{Supplier: sup, AlreadyResolved: true}
			return nil
		}
		if err := tx.SetSupplierStatus(ctx, id, target); err != nil {
			return err
		}
		sup.Status = target
		res = SupplierResolution{Supplier: sup}
		return nil
	})
	if err != nil {
		return SupplierResolution{}, err
	}
	if !res.AlreadyResolved {
		s.recordDecision(ctx, shared.ApprovalModuleSupplier, id, actorID, target, res.Supplier.Name)
		s.recordAudit(ctx, actorID, "supplier."+string(target), "supplier", id, map[string]any{"name": res.Supplier.Name})
	}
	return res, nil
}

// SubmitRequest records a pending product request. Suppliers submit for
// themselves; admin and staff name the supplier. The supplier must be approved.
func (s *Service) SubmitRequest(ctx context.Context, actor shared.Principal, input RequestInput) (Request, error) {
	switch {
	case actor.Is(shared.RoleSupplier):
		input.SupplierID = actor.SupplierID
	case actor.Is(shared.RoleAdmin, shared.RoleStaff):
	default:
		return Request{}, shared.ErrForbidden
	}
	input.ProductName = strings.TrimSpace(input.ProductName)
	input.Description = strings.TrimSpace(input.Description)
	if err := shared.ValidateStruct(s.validate, input); err != nil {
		return Request{}, err
	}
	sup, err := s.repo.GetSupplier(ctx, input.SupplierID)
	if err != nil {
		return Request{}, err
	}
	if sup.Status != StatusApproved {
		return Request{}, fmt.Errorf("%w: supplier %s is not approved", shared.ErrInvalidState, sup.Name)
	}
	req, err := s.repo.InsertRequest(ctx, Request{
		SupplierID:   sup.ID,
		ProductName:  input.ProductName,
		Description:  input.Description,
		PricePerUnit: input.PricePerUnit,
		Quantity:     input.Quantity,
		Status:       StatusPending,
	})
	if err != nil {
		return Request{}, err
	}
	req.SupplierName = sup.Name
	s.recordDecision(ctx, shared.ApprovalModuleSupplierRequest, req.ID, actor.ID, "", req.ProductName)
	return req, nil
}

// ListRequests returns requests newest first.
func (s *Service) ListRequests(ctx context.Context, filter RequestFilter) ([]Request, error) {
	if !filter.Status.Valid() {
		filter.Status = ""
	}
	return s.repo.ListRequests(ctx, filter)
}

// ApproveRequest approves a pending request and brings its goods into the
// catalog in the same transaction: an existing product with the exact name
// gains the quantity and takes the request price (and description when one
// is given); otherwise a product is created. One inbound ledger entry records
// the delivery. Resolved requests are reported back unchanged.
func (s *Service) ApproveRequest(ctx context.Context, id, actorID int64) (Resolution, error) {
	var res Resolution
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx SupplierTx) error {
		req, err := tx.LockRequest(ctx, id)
		if err != nil {
			return err
		}
		if req.Status.Resolved() {
			res = Resolution{Request: req, Status: req.Status, AlreadyResolved: true}
			return nil
		}
		if err := tx.SetRequestStatus(ctx, id, StatusApproved); err != nil {
			return err
		}
		req.Status = StatusApproved

		product, found, err := tx.LockProductByName(ctx, req.ProductName)
		if err != nil {
			return err
		}
		if found {
			product.Price = req.PricePerUnit
			if req.Description != "" {
				product.Description = req.Description
			}
			if err := tx.UpdateProductDetails(ctx, product); err != nil {
				return err
			}
		} else {
			product, err = tx.InsertProduct(ctx, inventory.Product{
				Name:        req.ProductName,
				Category:    RequestCategory,
				Price:       req.PricePerUnit,
				Description: req.Description,
				MinStock:    inventory.DefaultMinStock,
			})
			if err != nil {
				return err
			}
		}
		product, _, err = inventory.Move(ctx, tx, product, inventory.Movement{
			Direction: inventory.DirectionIn,
			Quantity:  req.Quantity,
			ActorID:   actorID,
			Remarks:   fmt.Sprintf("Supplier '%s' supplied %d unit(s).", req.SupplierName, req.Quantity),
		})
		if err != nil {
			return err
		}
		res = Resolution{Request: req, Status: StatusApproved, Product: product, ProductCreated: !found}
		return nil
	})
	if err != nil {
		return Resolution{}, err
	}
	if !res.AlreadyResolved {
		if s.observer != nil {
			s.observer.ObserveStockMovement(string(inventory.DirectionIn), res.Request.Quantity)
		}
		s.recordDecision(ctx, shared.ApprovalModuleSupplierRequest, id, actorID, StatusApproved, res.Request.ProductName)
		s.recordAudit(ctx, actorID, "supplier_request.approved", "supplier_request", id, map[string]any{
			"product_id": res.Product.ID,
			"quantity":   res.Request.Quantity,
			"created":    res.ProductCreated,
		})
	}
	return res, nil
}

// RejectRequest marks a pending request rejected without touching the catalog.
func (s *Service) RejectRequest(ctx context.Context, id, actorID int64) (Resolution, error) {
	var res Resolution
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx SupplierTx) error {
		req, err := tx.LockRequest(ctx, id)
		if err != nil {
			return err
		}
		if req.Status.Resolved() {
			res = Resolution{Request: req, Status: req.Status, AlreadyResolved: true}
			return nil
		}
		if err := tx.SetRequestStatus(ctx, id, StatusRejected); err != nil {
			return err
		}
		req.Status = StatusRejected
		res = Resolution{Request: req, Status: StatusRejected}
		return nil
	})
	if err != nil {
		return Resolution{}, err
	}
	if !res.AlreadyResolved {
		s.recordDecision(ctx, shared.ApprovalModuleSupplierRequest, id, actorID, StatusRejected, res.Request.ProductName)
		s.recordAudit(ctx, actorID, "supplier_request.rejected", "supplier_request", id, nil)
	}
	return res, nil
}

// CreateOrder places a pending purchase order with an approved supplier.
func (s *Service) CreateOrder(ctx context.Context, input OrderInput, actorID int64) (PurchaseOrder, error) {
	if err := shared.ValidateStruct(s.validate, input); err != nil {
		return PurchaseOrder{}, err
	}
	var order PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx SupplierTx) error {
		sup, err := tx.LockSupplier(ctx, input.SupplierID)
		if err != nil {
			return err
		}
		if sup.Status != StatusApproved {
			return fmt.Errorf("%w: supplier %s is not approved", shared.ErrInvalidState, sup.Name)
		}
		product, err := tx.LockProduct(ctx, input.ProductID)
		if err != nil {
			return err
		}
		order, err = tx.InsertOrder(ctx, PurchaseOrder{
			SupplierID: sup.ID,
			ProductID:  product.ID,
			Quantity:   input.Quantity,
			Status:     OrderPending,
		})
		if err != nil {
			return err
		}
		order.SupplierName = sup.Name
		order.ProductName = product.Name
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, actorID, "purchase_order.create", "purchase_order", order.ID, map[string]any{
		"supplier_id": order.SupplierID,
		"product_id":  order.ProductID,
		"quantity":    order.Quantity,
	})
	return order, nil
}

// UpdateOrderStatus lets the owning supplier advance an order. Orders of
// other suppliers are reported as not found.
func (s *Service) UpdateOrderStatus(ctx context.Context, actor shared.Principal, orderID int64, next OrderStatus) (PurchaseOrder, error) {
	if !actor.Is(shared.RoleSupplier) || actor.SupplierID == 0 {
		return PurchaseOrder{}, shared.ErrForbidden
	}
	var order PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx SupplierTx) error {
		current, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if current.SupplierID != actor.SupplierID {
			return fmt.Errorf("order %d: %w", orderID, shared.ErrNotFound)
		}
		if !current.Status.CanAdvance(next) {
			return fmt.Errorf("%w: order is %s and cannot move to %s", shared.ErrInvalidState, current.Status, next)
		}
		if err := tx.SetOrderStatus(ctx, orderID, next); err != nil {
			return err
		}
		current.Status = next
		order = current
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, actor.ID, "purchase_order."+string(next), "purchase_order", orderID, nil)
	return order, nil
}

// ListOrders returns orders newest first.
func (s *Service) ListOrders(ctx context.Context, filter OrderFilter) ([]PurchaseOrder, error) {
	return s.repo.ListOrders(ctx, filter)
}

// SupplierDashboard gathers the supplier landing page.
func (s *Service) SupplierDashboard(ctx context.Context, supplierID int64) (Dashboard, error) {
	sup, err := s.repo.GetSupplier(ctx, supplierID)
	if err != nil {
		return Dashboard{}, err
	}
	stats, err := s.repo.OrderStats(ctx, supplierID)
	if err != nil {
		return Dashboard{}, err
	}
	orders, err := s.repo.ListOrders(ctx, OrderFilter{SupplierID: supplierID, Limit: 5})
	if err != nil {
		return Dashboard{}, err
	}
	requests, err := s.repo.ListRequests(ctx, RequestFilter{SupplierID: supplierID})
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{Supplier: sup, Stats: stats, RecentOrders: orders, Requests: requests}, nil
}

func (s *Service) recordDecision(ctx context.Context, module string, id, actorID int64, status Status, note string) {
	if s.approvals == nil || actorID == 0 {
		return
	}
	action := shared.ApprovalSubmit
	switch status {
	case StatusApproved:
		action = shared.ApprovalApprove
	case StatusRejected:
		action = shared.ApprovalReject
	}
	if err := s.approvals.Record(ctx, shared.ApprovalLog{
		Module:  module,
		RefID:   shared.ApprovalRef(module, id),
		ActorID: actorID,
		Action:  action,
		Note:    note,
	}); err != nil {
		s.logger.Warn("record approval", slog.String("module", module), slog.Int64("ref", id), slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("record audit", slog.String("action", action), slog.Any("error", err))
	}
}
