package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridian-wms/meridian/internal/shared"
)

// AuditRetentionJob purges audit entries older than the retention window.
type AuditRetentionJob struct {
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewAuditRetentionJob constructs the job.
func NewAuditRetentionJob(audit *shared.AuditLogger, logger *slog.Logger) *AuditRetentionJob {
	return &AuditRetentionJob{audit: audit, logger: logger}
}

// Handle processes TaskAuditRetention tasks.
func (j *AuditRetentionJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload RetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	removed, err := j.audit.Purge(ctx, payload.OlderThan)
	if err != nil {
		j.logger.Error("audit retention failed", slog.Any("error", err))
		return err
	}
	j.logger.Info("audit retention complete", slog.Int64("removed", removed))
	return nil
}
