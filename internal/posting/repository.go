package posting

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-wms/meridian/internal/costing"
	"github.com/meridian-wms/meridian/internal/documents"
	"github.com/meridian-wms/meridian/internal/ledger"
	"github.com/meridian-wms/meridian/internal/locks"
	"github.com/meridian-wms/meridian/internal/masterdata/items"
	"github.com/meridian-wms/meridian/internal/permissions"
	"github.com/meridian-wms/meridian/internal/platform/db"
	"github.com/meridian-wms/meridian/internal/reservations"
	"github.com/meridian-wms/meridian/internal/shared"
)

// PgStore runs posting transactions against PostgreSQL at repeatable read.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore constructs PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// RunInTx implements Store.
func (s *PgStore) RunInTx(ctx context.Context, fn func(Tx) error) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

type pgTx struct {
	tx pgx.Tx
}

// GetDocumentForUpdate locks the document row, serialising concurrent posts
// of the same document, and loads its lines.
func (t *pgTx) GetDocumentForUpdate(ctx context.Context, scope shared.Scope, id int64) (documents.Document, error) {
	var doc documents.Document
	err := t.tx.QueryRow(ctx, `SELECT id, company_id, branch_id, doc_type, series, number, doc_date, status,
  warehouse_id, COALESCE(dest_warehouse_id, 0), landed_cost, tolerance_qty, external_ref, note, created_by
FROM documents WHERE id=$1 AND company_id=$2 AND branch_id=$3 FOR UPDATE`,
		id, scope.CompanyID, scope.BranchID).
		Scan(&doc.ID, &doc.Scope.CompanyID, &doc.Scope.BranchID, &doc.Type, &doc.Series, &doc.Number,
			&doc.DocDate, &doc.Status, &doc.WarehouseID, &doc.DestWarehouseID, &doc.LandedCost,
			&doc.ToleranceQty, &doc.ExternalRef, &doc.Note, &doc.CreatedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return documents.Document{}, documents.ErrNotFound
	}
	if err != nil {
		return documents.Document{}, err
	}

	rows, err := t.tx.Query(ctx, `SELECT id, line_no, item_id, location_id, COALESCE(dest_location_id, 0),
  COALESCE(lot_id, 0), COALESCE(serial_id, 0), qty, unit_cost, counted_qty
FROM document_lines WHERE document_id=$1 ORDER BY line_no`, doc.ID)
	if err != nil {
		return documents.Document{}, err
	}
	defer rows.Close()
	for rows.Next() {
		line := documents.Line{DocumentID: doc.ID}
		if err := rows.Scan(&line.ID, &line.LineNo, &line.ItemID, &line.LocationID, &line.DestLocationID,
			&line.LotID, &line.SerialID, &line.Qty, &line.UnitCost, &line.CountedQty); err != nil {
			return documents.Document{}, err
		}
		doc.Lines = append(doc.Lines, line)
	}
	return doc, rows.Err()
}

// SetStatus flips the document status, guarded by the expected current value.
func (t *pgTx) SetStatus(ctx context.Context, id int64, from, to documents.Status, actorID int64) error {
	var tag = `UPDATE documents SET status=$3, updated_at=NOW() WHERE id=$1 AND status=$2`
	args := []any{id, from, to}
	if to == documents.StatusPosted {
		tag = `UPDATE documents SET status=$3, posted_by=$4, posted_at=NOW(), updated_at=NOW() WHERE id=$1 AND status=$2`
		args = append(args, actorID)
	}
	res, err := t.tx.Exec(ctx, tag, args...)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return documents.ErrInvalidTransition
	}
	return nil
}

func (t *pgTx) GetItem(ctx context.Context, itemID int64) (ItemInfo, error) {
	var info ItemInfo
	var method string
	err := t.tx.QueryRow(ctx, `SELECT track_lot, track_serial, cost_method FROM items WHERE id=$1`, itemID).
		Scan(&info.TrackLot, &info.TrackSerial, &method)
	if errors.Is(err, pgx.ErrNoRows) {
		return ItemInfo{}, shared.ErrNotFound
	}
	if err != nil {
		return ItemInfo{}, err
	}
	info.CostMethod = items.CostMethod(method)
	return info, nil
}

// LockStockKey takes a transaction-scoped advisory lock on one stock scope,
// released at commit or rollback. On-hand is an aggregate over the ledger
// with no scope row to lock FOR UPDATE, and repeatable read alone lets two
// writers both read the pre-commit balance.
func (t *pgTx) LockStockKey(ctx context.Context, key ledger.StockKey) error {
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key.CacheKey())
	return err
}

func (t *pgTx) OnHand(ctx context.Context, key ledger.StockKey) (decimal.Decimal, error) {
	return ledger.OnHand(ctx, t.tx, key)
}

func (t *pgTx) Holds(ctx context.Context, key ledger.StockKey) (reservations.Holds, error) {
	return reservations.ActiveHolds(ctx, t.tx, key)
}

func (t *pgTx) Layers(ctx context.Context, key ledger.StockKey) ([]costing.Layer, decimal.Decimal, error) {
	return ledger.Layers(ctx, t.tx, key)
}

func (t *pgTx) InsertEntries(ctx context.Context, entries []ledger.Entry) error {
	return ledger.InsertEntries(ctx, t.tx, entries)
}

func (t *pgTx) HasPostPermission(ctx context.Context, actorID, warehouseID int64) (bool, error) {
	return permissions.HasCapability(ctx, t.tx, actorID, warehouseID, permissions.CapabilityPost)
}

func (t *pgTx) PeriodStatus(ctx context.Context, scope shared.Scope, date time.Time) (locks.PeriodStatus, error) {
	return locks.PeriodStatusFor(ctx, t.tx, scope, date)
}

func (t *pgTx) DocumentLocked(ctx context.Context, id int64) (bool, error) {
	return locks.DocumentLocked(ctx, t.tx, id)
}

// RecordAudit writes the audit row inside the posting transaction so it
// commits or rolls back with the entries.
func (t *pgTx) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	detailJSON, err := json.Marshal(log.Detail)
	if err != nil {
		return err
	}
	at := log.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err = t.tx.Exec(ctx, `INSERT INTO audit_log (entity_type, entity_id, action, actor, detail, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`, log.EntityType, log.EntityID, log.Action, log.ActorID, detailJSON, at)
	return err
}
