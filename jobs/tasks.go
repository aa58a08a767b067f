package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/smartstock/smartstock/internal/inventory"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockAlert reports one product at or below its reorder threshold.
	TaskLowStockAlert = "inventory:low_stock_alert"
	// TaskLowStockScan sweeps the catalog for low-stock products.
	TaskLowStockScan = "inventory:low_stock_scan"
	// TaskIdempotencyCleanup prunes old duplicate-submit keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// Alert sources carried in LowStockAlertPayload.
const (
	SourceBill = "bill"
	SourceScan = "scan"
)

// LowStockAlertPayload describes a product that needs restocking.
type LowStockAlertPayload struct {
	ProductID int64     `json:"product_id"`
	Name      string    `json:"name"`
	Stock     int       `json:"stock"`
	MinStock  int       `json:"min_stock"`
	Source    string    `json:"source"`
	RaisedAt  time.Time `json:"raised_at"`
}

// NewLowStockAlertTask constructs an alert task for product.
func NewLowStockAlertTask(product inventory.Product, source string, at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockAlertPayload{
		ProductID: product.ID,
		Name:      product.Name,
		Stock:     product.Stock,
		MinStock:  product.MinStock,
		Source:    source,
		RaisedAt:  at.UTC(),
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockAlert, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// LowStockScanPayload carries scheduling metadata.
type LowStockScanPayload struct {
	Trigger string `json:"trigger"`
}

// NewLowStockScanTask builds the periodic scan task.
func NewLowStockScanTask(trigger string) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockScanPayload{Trigger: trigger})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleanupPayload sets how long processed keys are retained.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask builds the cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}
