package reservations

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-wms/meridian/internal/ledger"
)

// ActiveHolds sums active reservation and block quantities for a scope.
// Shared with the posting transaction via the Querier abstraction so the
// available-to-ship check sees the same snapshot as the ledger reads.
func ActiveHolds(ctx context.Context, q ledger.Querier, key ledger.StockKey) (Holds, error) {
	var holds Holds
	err := q.QueryRow(ctx, `SELECT
  COALESCE((SELECT SUM(qty) FROM reservations WHERE company_id=$1 AND branch_id=$2 AND warehouse_id=$3 AND location_id=$4 AND item_id=$5 AND released_at IS NULL), 0),
  COALESCE((SELECT SUM(qty) FROM blocks WHERE company_id=$1 AND branch_id=$2 AND warehouse_id=$3 AND location_id=$4 AND item_id=$5 AND released_at IS NULL), 0)`,
		key.Scope.CompanyID, key.Scope.BranchID, key.WarehouseID, key.LocationID, key.ItemID).
		Scan(&holds.Reserved, &holds.Blocked)
	return holds, err
}

// Repository persists reservations and blocks in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateReservation inserts a reservation row.
func (r *Repository) CreateReservation(ctx context.Context, res Reservation) (Reservation, error) {
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, `INSERT INTO reservations
  (company_id, branch_id, warehouse_id, location_id, item_id, lot_id, serial_id, qty, note, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id`,
		res.Scope.CompanyID, res.Scope.BranchID, res.WarehouseID, res.LocationID, res.ItemID,
		nullID(res.LotID), nullID(res.SerialID), res.Qty, res.Note, res.CreatedBy, now).Scan(&res.ID)
	if err != nil {
		return Reservation{}, err
	}
	res.CreatedAt = now
	return res, nil
}

// ReleaseReservation marks a reservation released.
func (r *Repository) ReleaseReservation(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE reservations SET released_at=NOW() WHERE id=$1 AND released_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateBlock inserts a block row.
func (r *Repository) CreateBlock(ctx context.Context, block Block) (Block, error) {
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, `INSERT INTO blocks
  (company_id, branch_id, warehouse_id, location_id, item_id, lot_id, serial_id, qty, reason, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id`,
		block.Scope.CompanyID, block.Scope.BranchID, block.WarehouseID, block.LocationID, block.ItemID,
		nullID(block.LotID), nullID(block.SerialID), block.Qty, block.Reason, block.CreatedBy, now).Scan(&block.ID)
	if err != nil {
		return Block{}, err
	}
	block.CreatedAt = now
	return block, nil
}

// ReleaseBlock marks a block released.
func (r *Repository) ReleaseBlock(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE blocks SET released_at=NOW() WHERE id=$1 AND released_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Holds reads active hold totals outside a transaction.
func (r *Repository) Holds(ctx context.Context, key ledger.StockKey) (Holds, error) {
	if r == nil {
		return Holds{}, errors.New("reservations repository not initialised")
	}
	return ActiveHolds(ctx, r.pool, key)
}

// OnHand aggregates the scope balance, reused for the reservation cap check.
func (r *Repository) OnHand(ctx context.Context, key ledger.StockKey) (decimal.Decimal, error) {
	return ledger.OnHand(ctx, r.pool, key)
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
