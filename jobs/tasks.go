// Package jobs holds background task definitions and the asynq worker.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockSnapshot materialises on-hand balances for reporting.
	TaskStockSnapshot = "stock:snapshot"
	// TaskAuditRetention purges audit entries past the retention window.
	TaskAuditRetention = "audit:retention"
	// TaskIdempotencyCleanup removes expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// StockSnapshotPayload parameterises a snapshot run.
type StockSnapshotPayload struct {
	AsOf time.Time `json:"as_of"`
}

// NewStockSnapshotTask constructs a snapshot task.
func NewStockSnapshotTask(asOf time.Time) (*asynq.Task, error) {
	data, err := json.Marshal(StockSnapshotPayload{AsOf: asOf})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockSnapshot, data), nil
}

// RetentionPayload parameterises cleanup tasks.
type RetentionPayload struct {
	OlderThan time.Duration `json:"older_than"`
}

// NewAuditRetentionTask constructs an audit retention task.
func NewAuditRetentionTask(olderThan time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(RetentionPayload{OlderThan: olderThan})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRetention, data), nil
}

// NewIdempotencyCleanupTask constructs an idempotency cleanup task.
func NewIdempotencyCleanupTask(olderThan time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(RetentionPayload{OlderThan: olderThan})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
