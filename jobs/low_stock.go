package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/smartstock/smartstock/internal/inventory"
	jobmetrics "github.com/smartstock/smartstock/internal/jobs"
	"github.com/smartstock/smartstock/internal/shared"
)

// CatalogReader is the inventory surface the low-stock jobs read.
type CatalogReader interface {
	GetProduct(ctx context.Context, id int64) (inventory.Product, error)
	LowStock(ctx context.Context) ([]inventory.Product, error)
}

// AlertEnqueuer schedules low-stock alerts.
type AlertEnqueuer interface {
	EnqueueLowStock(ctx context.Context, product inventory.Product, source string) error
}

// LowStockJob handles alert and scan tasks.
type LowStockJob struct {
	Catalog  CatalogReader
	Enqueuer AlertEnqueuer
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewLowStockJob initialises the low-stock handlers.
func NewLowStockJob(catalog CatalogReader, enqueuer AlertEnqueuer, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockJob {
	return &LowStockJob{Catalog: catalog, Enqueuer: enqueuer, Logger: logger, Metrics: metrics}
}

// HandleAlert logs a restock warning for a product that is still low when
// the task runs. Products restocked or deleted in the meantime are skipped.
func (j *LowStockJob) HandleAlert(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Catalog == nil {
		return errors.New("low stock alert: handler not configured")
	}
	var payload LowStockAlertPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.ProductID <= 0 {
		return fmt.Errorf("low stock alert payload: %w", asynq.SkipRetry)
	}
	tracker := j.Metrics.Track(TaskLowStockAlert)
	defer func() { err = tracker.End(err) }()

	logger := j.logger().With(slog.Int64("product_id", payload.ProductID), slog.String("source", payload.Source))
	product, err := j.Catalog.GetProduct(ctx, payload.ProductID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			logger.Info("low stock alert skipped, product removed")
			return nil
		}
		return err
	}
	if !product.IsLowStock() {
		logger.Info("low stock alert skipped, product restocked", slog.Int("stock", product.Stock))
		return nil
	}
	logger.Warn("product below reorder threshold",
		slog.String("product", product.Name),
		slog.Int("stock", product.Stock),
		slog.Int("min_stock", product.MinStock),
	)
	j.Metrics.AddLowStockAlerts(payload.Source, 1)
	return nil
}

// HandleScan enqueues one alert per product at or below its threshold.
func (j *LowStockJob) HandleScan(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Catalog == nil || j.Enqueuer == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("low stock scan payload: %w", asynq.SkipRetry)
		}
	}
	tracker := j.Metrics.Track(TaskLowStockScan)
	defer func() { err = tracker.End(err) }()

	products, err := j.Catalog.LowStock(ctx)
	if err != nil {
		j.logger().Error("low stock scan failed", slog.Any("error", err))
		return err
	}
	var failed int
	for _, p := range products {
		if err := j.Enqueuer.EnqueueLowStock(ctx, p, SourceScan); err != nil {
			failed++
			j.logger().Warn("enqueue low stock alert", slog.Int64("product_id", p.ID), slog.Any("error", err))
		}
	}
	j.logger().Info("completed low stock scan",
		slog.String("trigger", payload.Trigger),
		slog.Int("products", len(products)),
		slog.Int("failed", failed),
	)
	if failed > 0 {
		return fmt.Errorf("low stock scan: %d of %d alerts not enqueued", failed, len(products))
	}
	return nil
}

func (j *LowStockJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
