package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/smartstock/smartstock/internal/inventory"
	"github.com/smartstock/smartstock/internal/shared"
)

// BillTx extends the inventory write set with bill writes. Every call made
// through one BillTx belongs to the same database transaction.
type BillTx interface {
	inventory.StockTx
	InsertBill(ctx context.Context, b Bill) (Bill, error)
	InsertBillItem(ctx context.Context, item BillItem) (BillItem, error)
}

// RepositoryPort abstracts bill persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, BillTx) error) error
	ListBills(ctx context.Context) ([]BillSummary, error)
	GetBill(ctx context.Context, id int64) (Bill, error)
	MaxBillID(ctx context.Context) (int64, error)
}

// IdempotencyPort guards against replayed bill forms.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// LowStockNotifier is told about products that reached their reorder
// threshold through a committed bill.
type LowStockNotifier interface {
	NotifyLowStock(ctx context.Context, product inventory.Product) error
}

// Observer receives bill outcome and stock movement counts.
type Observer interface {
	ObserveBill(outcome string)
	ObserveStockMovement(direction string, qty int)
}

// Outcome labels passed to Observer.ObserveBill.
const (
	OutcomeCommitted         = "committed"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeRejected          = "rejected"
	OutcomeFailed            = "failed"
)

// Service runs the bill workflow.
type Service struct {
	repo        RepositoryPort
	idempotency IdempotencyPort
	notifier    LowStockNotifier
	observer    Observer
	audit       inventory.AuditPort
	logger      *slog.Logger
	validate    *validator.Validate
}

// Options carries the optional collaborators of Service.
type Options struct {
	Idempotency IdempotencyPort
	Notifier    LowStockNotifier
	Observer    Observer
	Audit       inventory.AuditPort
	Logger      *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		idempotency: opts.Idempotency,
		notifier:    opts.Notifier,
		observer:    opts.Observer,
		audit:       opts.Audit,
		logger:      logger,
		validate:    shared.NewValidator(),
	}
}

// CreateBill commits a bill with its items, decrements stock and books one
// outbound ledger entry per line, or changes nothing at all. Lines are
// processed in request order; the first line short on stock aborts the bill
// with *inventory.InsufficientStockError.
func (s *Service) CreateBill(ctx context.Context, input CreateBillInput) (Bill, error) {
	input.CustomerName = strings.TrimSpace(input.CustomerName)
	if err := shared.ValidateStruct(s.validate, input); err != nil {
		s.observeOutcome(OutcomeRejected)
		return Bill{}, err
	}

	if input.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, IdempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				s.observeOutcome(OutcomeRejected)
			}
			return Bill{}, err
		}
	}

	var (
		bill    Bill
		touched []inventory.Product
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx BillTx) error {
		bill = Bill{}
		touched = touched[:0]
		header, err := tx.InsertBill(ctx, Bill{CustomerName: input.CustomerName, CreatedBy: input.ActorID})
		if err != nil {
			return fmt.Errorf("insert bill: %w", err)
		}
		bill = header
		remarks := fmt.Sprintf("Sale to %s on Bill #%d", input.CustomerName, header.ID)
		for _, line := range input.Lines {
			product, err := tx.LockProduct(ctx, line.ProductID)
			if err != nil {
				return err
			}
			if line.Quantity > product.Stock {
				return &inventory.InsufficientStockError{Product: product.Name, Available: product.Stock, Requested: line.Quantity}
			}
			item, err := tx.InsertBillItem(ctx, BillItem{
				BillID:      header.ID,
				ProductID:   product.ID,
				ProductName: product.Name,
				Quantity:    line.Quantity,
				Price:       product.Price,
			})
			if err != nil {
				return fmt.Errorf("insert bill item: %w", err)
			}
			product, _, err = inventory.Move(ctx, tx, product, inventory.Movement{
				Direction: inventory.DirectionOut,
				Quantity:  line.Quantity,
				ActorID:   input.ActorID,
				Remarks:   remarks,
			})
			if err != nil {
				return err
			}
			bill.Items = append(bill.Items, item)
			touched = append(touched, product)
		}
		return nil
	})
	if err != nil {
		s.release(ctx, input.IdempotencyKey)
		if errors.Is(err, inventory.ErrInsufficientStock) {
			s.observeOutcome(OutcomeInsufficientStock)
		} else {
			s.observeOutcome(OutcomeFailed)
		}
		return Bill{}, err
	}

	s.observeOutcome(OutcomeCommitted)
	for _, item := range bill.Items {
		if s.observer != nil {
			s.observer.ObserveStockMovement(string(inventory.DirectionOut), item.Quantity)
		}
	}
	s.notifyLowStock(ctx, touched)
	s.recordAudit(ctx, bill)
	return bill, nil
}

// NextInvoiceNumber returns the highest bill id plus one, or 1 when no bill
// exists. Concurrent bill creation can claim the number first; the value is
// for display only.
func (s *Service) NextInvoiceNumber(ctx context.Context) (int64, error) {
	highest, err := s.repo.MaxBillID(ctx)
	if err != nil {
		return 0, err
	}
	return highest + 1, nil
}

// ListBills returns every bill newest first.
func (s *Service) ListBills(ctx context.Context) ([]BillSummary, error) {
	return s.repo.ListBills(ctx)
}

// GetBill loads one bill with its items.
func (s *Service) GetBill(ctx context.Context, id int64) (Bill, error) {
	return s.repo.GetBill(ctx, id)
}

func (s *Service) release(ctx context.Context, key string) {
	if key == "" || s.idempotency == nil {
		return
	}
	if err := s.idempotency.Delete(context.WithoutCancel(ctx), key, IdempotencyModule); err != nil {
		s.logger.Warn("release idempotency key", slog.Any("error", err))
	}
}

func (s *Service) notifyLowStock(ctx context.Context, products []inventory.Product) {
	if s.notifier == nil {
		return
	}
	seen := make(map[int64]struct{}, len(products))
	for i := len(products) - 1; i >= 0; i-- {
		p := products[i]
		if _, dup := seen[p.ID]; dup || !p.IsLowStock() {
			continue
		}
		seen[p.ID] = struct{}{}
		if err := s.notifier.NotifyLowStock(ctx, p); err != nil {
			s.logger.Warn("notify low stock", slog.Int64("product_id", p.ID), slog.Any("error", err))
		}
	}
}

func (s *Service) recordAudit(ctx context.Context, bill Bill) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  bill.CreatedBy,
		Action:   "bill.create",
		Entity:   "bill",
		EntityID: strconv.FormatInt(bill.ID, 10),
		Meta:     map[string]any{"customer": bill.CustomerName, "items": len(bill.Items), "total": bill.Total()},
	}); err != nil {
		s.logger.Warn("record audit", slog.String("action", "bill.create"), slog.Any("error", err))
	}
}

func (s *Service) observeOutcome(outcome string) {
	if s.observer != nil {
		s.observer.ObserveBill(outcome)
	}
}
