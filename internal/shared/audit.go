package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Audit actions recorded by the engine. Every posting attempt, denial and
// lock/override action produces exactly one entry.
const (
	AuditActionPost         = "POST"
	AuditActionPostDenied   = "POST_DENIED"
	AuditActionNegativeWarn = "NEGATIVE_WARN"
	AuditActionApprove      = "APPROVE"
	AuditActionReject       = "REJECT"
	AuditActionLock         = "LOCK"
	AuditActionUnlock       = "UNLOCK"
	AuditActionReserve      = "RESERVE"
	AuditActionRelease      = "RELEASE"
	AuditActionBlock        = "BLOCK"
)

// AuditLog represents a record stored in audit_log.
type AuditLog struct {
	ActorID    int64
	Action     string
	EntityType string
	EntityID   string
	Detail     map[string]any
	At         time.Time
}

// AuditLogger writes records into audit_log.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.EntityType == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity_type/entity_id")
	}
	detailJSON, err := json.Marshal(log.Detail)
	if err != nil {
		return err
	}
	at := log.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_log (entity_type, entity_id, action, actor, detail, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`, log.EntityType, log.EntityID, log.Action, log.ActorID, detailJSON, at)
	return err
}

// Purge removes entries older than the retention window.
func (l *AuditLogger) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	if l == nil {
		return 0, errors.New("audit logger not initialised")
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	tag, err := l.pool.Exec(ctx, `DELETE FROM audit_log WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
