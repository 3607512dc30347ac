package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-wms/meridian/internal/ledger"
)

// StockSnapshotJob materialises current on-hand balances into stock_snapshots.
type StockSnapshotJob struct {
	repo   *ledger.Repository
	logger *slog.Logger
}

// NewStockSnapshotJob constructs the job.
func NewStockSnapshotJob(repo *ledger.Repository, logger *slog.Logger) *StockSnapshotJob {
	return &StockSnapshotJob{repo: repo, logger: logger}
}

// Handle processes TaskStockSnapshot tasks.
func (j *StockSnapshotJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload StockSnapshotPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	asOf := payload.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	rows, err := j.repo.WriteSnapshots(ctx, asOf)
	if err != nil {
		j.logger.Error("stock snapshot failed", slog.Any("error", err))
		return err
	}
	j.logger.Info("stock snapshot written", slog.Int64("rows", rows), slog.Time("as_of", asOf))
	return nil
}
