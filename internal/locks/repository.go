package locks

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-wms/meridian/internal/ledger"
	"github.com/meridian-wms/meridian/internal/shared"
)

// PeriodStatusFor reads the status of the period containing date. A period
// with no row is implicitly OPEN. Runs on any Querier so the posting
// transaction sees a consistent snapshot.
func PeriodStatusFor(ctx context.Context, q ledger.Querier, scope shared.Scope, date time.Time) (PeriodStatus, error) {
	var status PeriodStatus
	err := q.QueryRow(ctx, `SELECT status FROM stock_periods
WHERE company_id=$1 AND branch_id=$2 AND year=$3 AND month=$4`,
		scope.CompanyID, scope.BranchID, date.Year(), int(date.Month())).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return PeriodOpen, nil
	}
	if err != nil {
		return "", err
	}
	return status, nil
}

// DocumentLocked reports whether the document has an active lock.
func DocumentLocked(ctx context.Context, q ledger.Querier, documentID int64) (bool, error) {
	var locked bool
	err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM doc_locks WHERE document_id=$1 AND released_at IS NULL)`,
		documentID).Scan(&locked)
	return locked, err
}

// Repository persists period and document locks.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetPeriod reads a period row, defaulting to OPEN when absent.
func (r *Repository) GetPeriod(ctx context.Context, scope shared.Scope, year, month int) (Period, error) {
	p := Period{Scope: scope, Year: year, Month: month, Status: PeriodOpen}
	err := r.pool.QueryRow(ctx, `SELECT id, status, COALESCE(locked_by, 0), locked_at FROM stock_periods
WHERE company_id=$1 AND branch_id=$2 AND year=$3 AND month=$4`,
		scope.CompanyID, scope.BranchID, year, month).
		Scan(&p.ID, &p.Status, &p.LockedBy, &p.LockedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return Period{}, err
	}
	return p, nil
}

// SetPeriodStatus upserts the period row with the new status.
func (r *Repository) SetPeriodStatus(ctx context.Context, scope shared.Scope, year, month int, status PeriodStatus, actorID int64) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO stock_periods (company_id, branch_id, year, month, status, locked_by, locked_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW())
ON CONFLICT (company_id, branch_id, year, month)
DO UPDATE SET status=$5, locked_by=$6, locked_at=NOW()`,
		scope.CompanyID, scope.BranchID, year, month, status, actorID)
	return err
}

// LockDocument inserts an active document lock.
func (r *Repository) LockDocument(ctx context.Context, lock DocLock) (DocLock, error) {
	locked, err := DocumentLocked(ctx, r.pool, lock.DocumentID)
	if err != nil {
		return DocLock{}, err
	}
	if locked {
		return DocLock{}, ErrAlreadyLocked
	}
	now := time.Now().UTC()
	err = r.pool.QueryRow(ctx, `INSERT INTO doc_locks (document_id, reason, locked_by, locked_at)
VALUES ($1,$2,$3,$4) RETURNING id`,
		lock.DocumentID, lock.Reason, lock.LockedBy, now).Scan(&lock.ID)
	if err != nil {
		return DocLock{}, err
	}
	lock.LockedAt = now
	return lock, nil
}

// UnlockDocument releases the active lock on a document.
func (r *Repository) UnlockDocument(ctx context.Context, documentID int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE doc_locks SET released_at=NOW() WHERE document_id=$1 AND released_at IS NULL`, documentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotLocked
	}
	return nil
}

// PeriodStatusFor satisfies the service CheckerPort outside a transaction.
func (r *Repository) PeriodStatus(ctx context.Context, scope shared.Scope, date time.Time) (PeriodStatus, error) {
	return PeriodStatusFor(ctx, r.pool, scope, date)
}

// DocumentLocked satisfies the service CheckerPort outside a transaction.
func (r *Repository) DocumentLock(ctx context.Context, documentID int64) (bool, error) {
	return DocumentLocked(ctx, r.pool, documentID)
}
