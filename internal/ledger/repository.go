package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-wms/meridian/internal/costing"
)

// Querier is satisfied by both pgxpool.Pool and pgx.Tx, so the same queries
// serve plain reads and the posting transaction.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const scopeFilter = `company_id=$1 AND branch_id=$2 AND warehouse_id=$3 AND location_id=$4 AND item_id=$5
  AND ($6::bigint = 0 OR lot_id = $6) AND ($7::bigint = 0 OR serial_id = $7)`

func scopeArgs(key StockKey) []any {
	return []any{key.Scope.CompanyID, key.Scope.BranchID, key.WarehouseID, key.LocationID, key.ItemID, key.LotID, key.SerialID}
}

// InsertEntries appends ledger rows. Callers must run this inside the posting
// transaction; the ledger itself offers no standalone write path.
func InsertEntries(ctx context.Context, q Querier, entries []Entry) error {
	for i := range entries {
		e := &entries[i]
		err := q.QueryRow(ctx, `INSERT INTO stock_ledger
  (company_id, branch_id, warehouse_id, location_id, item_id, lot_id, serial_id, txn_date, qty, direction, cost, doc_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW()) RETURNING id`,
			e.Scope.CompanyID, e.Scope.BranchID, e.WarehouseID, e.LocationID, e.ItemID,
			nullID(e.LotID), nullID(e.SerialID), e.TxnDate, e.Qty, string(e.Direction), e.Cost, e.DocID,
		).Scan(&e.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

// OnHand aggregates the signed quantity for one scope.
func OnHand(ctx context.Context, q Querier, key StockKey) (decimal.Decimal, error) {
	var qty decimal.Decimal
	err := q.QueryRow(ctx, `SELECT COALESCE(SUM(CASE direction WHEN 'IN' THEN qty ELSE -qty END), 0)
FROM stock_ledger WHERE `+scopeFilter, scopeArgs(key)...).Scan(&qty)
	return qty, err
}

// Layers returns the inbound layers for a scope ordered oldest-first
// (txn_date, then ledger id on equal dates) plus the total outbound quantity
// already consumed from it.
func Layers(ctx context.Context, q Querier, key StockKey) ([]costing.Layer, decimal.Decimal, error) {
	rows, err := q.Query(ctx, `SELECT txn_date, qty, cost FROM stock_ledger
WHERE `+scopeFilter+` AND direction='IN' ORDER BY txn_date ASC, id ASC`, scopeArgs(key)...)
	if err != nil {
		return nil, decimal.Zero, err
	}
	defer rows.Close()
	var layers []costing.Layer
	for rows.Next() {
		var l costing.Layer
		if err := rows.Scan(&l.Date, &l.Qty, &l.UnitCost); err != nil {
			return nil, decimal.Zero, err
		}
		layers = append(layers, l)
	}
	if err := rows.Err(); err != nil {
		return nil, decimal.Zero, err
	}

	var consumed decimal.Decimal
	err = q.QueryRow(ctx, `SELECT COALESCE(SUM(qty), 0) FROM stock_ledger
WHERE `+scopeFilter+` AND direction='OUT'`, scopeArgs(key)...).Scan(&consumed)
	if err != nil {
		return nil, decimal.Zero, err
	}
	return layers, consumed, nil
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

// Repository serves ledger reads outside the posting transaction.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// OnHand aggregates current balance for the scope.
func (r *Repository) OnHand(ctx context.Context, key StockKey) (decimal.Decimal, error) {
	if r == nil {
		return decimal.Zero, errors.New("ledger repository not initialised")
	}
	return OnHand(ctx, r.pool, key)
}

// StockCard lists entries for a scope ordered by transaction date.
func (r *Repository) StockCard(ctx context.Context, filter CardFilter) ([]Entry, error) {
	if r == nil {
		return nil, errors.New("ledger repository not initialised")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, warehouse_id, location_id, item_id, COALESCE(lot_id,0), COALESCE(serial_id,0),
  txn_date, qty, direction, cost, doc_id, created_at
FROM stock_ledger
WHERE company_id=$1 AND branch_id=$2 AND warehouse_id=$3 AND location_id=$4 AND item_id=$5
  AND txn_date BETWEEN COALESCE($6, '-infinity') AND COALESCE($7, 'infinity')
ORDER BY txn_date ASC, id ASC
LIMIT $8`,
		filter.Scope.CompanyID, filter.Scope.BranchID, filter.WarehouseID, filter.LocationID, filter.ItemID,
		nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var direction string
		if err := rows.Scan(&e.ID, &e.WarehouseID, &e.LocationID, &e.ItemID, &e.LotID, &e.SerialID,
			&e.TxnDate, &e.Qty, &direction, &e.Cost, &e.DocID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Scope = filter.Scope
		e.Direction = Direction(direction)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// WriteSnapshots materialises current balances into stock_snapshots for
// reporting. Invoked by the nightly worker job.
func (r *Repository) WriteSnapshots(ctx context.Context, asOf time.Time) (int64, error) {
	if r == nil {
		return 0, errors.New("ledger repository not initialised")
	}
	tag, err := r.pool.Exec(ctx, `INSERT INTO stock_snapshots
  (company_id, branch_id, warehouse_id, location_id, item_id, lot_id, serial_id, qty, as_of)
SELECT company_id, branch_id, warehouse_id, location_id, item_id, COALESCE(lot_id,0), COALESCE(serial_id,0),
  SUM(CASE direction WHEN 'IN' THEN qty ELSE -qty END), $1
FROM stock_ledger
GROUP BY company_id, branch_id, warehouse_id, location_id, item_id, COALESCE(lot_id,0), COALESCE(serial_id,0)`, asOf)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
