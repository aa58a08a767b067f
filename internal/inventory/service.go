package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/smartstock/smartstock/internal/shared"
)

// TransactionsPerPage is the ledger listing page size.
const TransactionsPerPage = 10

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, StockTx) error) error
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	ListLowStock(ctx context.Context) ([]Product, error)
	DeleteProduct(ctx context.Context, id int64) (Product, error)
	Overview(ctx context.Context) (Overview, error)
	ListTransactions(ctx context.Context, filter TransactionFilter, limit, offset int) ([]Transaction, int, error)
	ProductTransactions(ctx context.Context, productID int64) ([]Transaction, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MovementObserver is told about every committed stock movement.
type MovementObserver interface {
	ObserveStockMovement(direction string, qty int)
}

// Service coordinates catalog maintenance and direct stock transactions.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	observer MovementObserver
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService builds Service. audit and observer may be nil.
func NewService(repo RepositoryPort, audit AuditPort, observer MovementObserver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, observer: observer, logger: logger, validate: shared.NewValidator()}
}

// TransactionPage is one page of the ledger listing.
type TransactionPage struct {
	Transactions []Transaction
	Pagination   shared.Pagination
	Filter       TransactionFilter
}

func normaliseProductInput(input ProductInput) ProductInput {
	input.Name = strings.TrimSpace(input.Name)
	input.Category = strings.TrimSpace(input.Category)
	input.Description = strings.TrimSpace(input.Description)
	return input
}

// CreateProduct adds a product. Opening stock is recorded as one inbound entry.
func (s *Service) CreateProduct(ctx context.Context, input ProductInput, actorID int64) (Product, error) {
	input = normaliseProductInput(input)
	if err := shared.ValidateStruct(s.validate, input); err != nil {
		return Product{}, err
	}
	var created Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx StockTx) error {
		p, err := tx.InsertProduct(ctx, Product{
			Name:        input.Name,
			Category:    input.Category,
			Price:       input.Price,
			Description: input.Description,
			MinStock:    input.MinStock,
		})
		if err != nil {
			return err
		}
		if input.Stock > 0 {
			p, _, err = Move(ctx, tx, p, Movement{Direction: DirectionIn, Quantity: input.Stock, ActorID: actorID, Remarks: "Opening stock"})
			if err != nil {
				return err
			}
		}
		created = p
		return nil
	})
	if err != nil {
		return Product{}, err
	}
	s.observe(DirectionIn, input.Stock)
	s.recordAudit(ctx, actorID, "product.create", created.ID, map[string]any{"name": created.Name, "stock": created.Stock})
	return created, nil
}

// UpdateProduct edits a product. The difference between input.Stock and
// input.StockWas is booked against the live stock as a ledger entry inside the
// same transaction, so movements committed while the form was open are kept.
// A decrease larger than the live stock fails with *InsufficientStockError.
func (s *Service) UpdateProduct(ctx context.Context, id int64, input ProductInput, actorID int64) (Product, error) {
	input = normaliseProductInput(input)
	if err := shared.ValidateStruct(s.validate, input); err != nil {
		return Product{}, err
	}
	var (
		updated Product
		delta   int
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx StockTx) error {
		current, err := tx.LockProduct(ctx, id)
		if err != nil {
			return err
		}
		next := current
		next.Name = input.Name
		next.Category = input.Category
		next.Price = input.Price
		next.Description = input.Description
		next.MinStock = input.MinStock
		if err := tx.UpdateProductDetails(ctx, next); err != nil {
			return err
		}
		delta = input.Stock - input.StockWas
		if delta != 0 {
			m := Movement{Direction: DirectionIn, Quantity: delta, ActorID: actorID, Remarks: "Manual stock edit"}
			if delta < 0 {
				m.Direction = DirectionOut
				m.Quantity = -delta
			}
			if next, _, err = Move(ctx, tx, next, m); err != nil {
				return err
			}
		}
		updated = next
		return nil
	})
	if err != nil {
		return Product{}, err
	}
	if delta > 0 {
		s.observe(DirectionIn, delta)
	} else if delta < 0 {
		s.observe(DirectionOut, -delta)
	}
	s.recordAudit(ctx, actorID, "product.update", updated.ID, map[string]any{"name": updated.Name, "stock_delta": delta})
	return updated, nil
}

// DeleteProduct removes a product together with its ledger.
func (s *Service) DeleteProduct(ctx context.Context, id int64, actorID int64) (Product, error) {
	p, err := s.repo.DeleteProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	s.recordAudit(ctx, actorID, "product.delete", p.ID, map[string]any{"name": p.Name, "stock": p.Stock})
	return p, nil
}

// PostTransaction applies a direct stock movement. Inbound always succeeds;
// outbound fails with *InsufficientStockError when stock is short.
func (s *Service) PostTransaction(ctx context.Context, input TransactionInput) (Transaction, error) {
	input.Remarks = strings.TrimSpace(input.Remarks)
	if err := shared.ValidateStruct(s.validate, input); err != nil {
		return Transaction{}, err
	}
	var entry Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx StockTx) error {
		product, err := tx.LockProduct(ctx, input.ProductID)
		if err != nil {
			return err
		}
		_, entry, err = Move(ctx, tx, product, Movement{
			Direction: input.Direction,
			Quantity:  input.Quantity,
			ActorID:   input.ActorID,
			Remarks:   input.Remarks,
		})
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	s.observe(entry.Direction, entry.Quantity)
	s.recordAudit(ctx, input.ActorID, "stock."+string(entry.Direction), entry.ProductID, map[string]any{
		"transaction_id": entry.ID,
		"quantity":       entry.Quantity,
	})
	return entry, nil
}

// GetProduct loads one product.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// ListProducts returns the catalog ordered by name.
func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	return s.repo.ListProducts(ctx)
}

// LowStock returns products at or below their reorder threshold.
func (s *Service) LowStock(ctx context.Context) ([]Product, error) {
	return s.repo.ListLowStock(ctx)
}

// Overview returns catalog counters.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	return s.repo.Overview(ctx)
}

// ListTransactions pages through the ledger, newest first.
func (s *Service) ListTransactions(ctx context.Context, filter TransactionFilter) (TransactionPage, error) {
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = TransactionsPerPage
	}
	filter.Query = strings.TrimSpace(filter.Query)
	if !filter.Direction.Valid() {
		filter.Direction = ""
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	txs, total, err := s.repo.ListTransactions(ctx, filter, perPage, (page-1)*perPage)
	if err != nil {
		return TransactionPage{}, err
	}
	pager := shared.NewPagination(page, perPage, total)
	if pager.Page != page {
		// past the last page
		txs, _, err = s.repo.ListTransactions(ctx, filter, perPage, pager.Offset())
		if err != nil {
			return TransactionPage{}, err
		}
	}
	filter.Page = pager.Page
	filter.PerPage = perPage
	return TransactionPage{Transactions: txs, Pagination: pager, Filter: filter}, nil
}

// RecentTransactions returns the latest limit entries, optionally for one actor.
func (s *Service) RecentTransactions(ctx context.Context, limit int, actorID int64) ([]Transaction, error) {
	txs, _, err := s.repo.ListTransactions(ctx, TransactionFilter{ActorID: actorID}, limit, 0)
	return txs, err
}

// StockHistory returns a product with its ledger.
func (s *Service) StockHistory(ctx context.Context, productID int64) (Product, []Transaction, error) {
	p, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return Product{}, nil, err
	}
	txs, err := s.repo.ProductTransactions(ctx, productID)
	if err != nil {
		return Product{}, nil, err
	}
	return p, txs, nil
}

func (s *Service) observe(direction Direction, qty int) {
	if s.observer != nil && qty > 0 {
		s.observer.ObserveStockMovement(string(direction), qty)
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, productID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "product",
		EntityID: strconv.FormatInt(productID, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("record audit", slog.String("action", action), slog.Any("error", fmt.Errorf("inventory: %w", err)))
	}
}
