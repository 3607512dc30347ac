package lots

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-wms/meridian/internal/shared"
)

// Repository persists lots and serials in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateLot inserts a lot row.
func (r *Repository) CreateLot(ctx context.Context, lot Lot) (Lot, error) {
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, `INSERT INTO lots (item_id, lot_no, expiry_date, created_at)
VALUES ($1,$2,$3,$4) RETURNING id`, lot.ItemID, lot.LotNo, lot.ExpiryDate, now).Scan(&lot.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return Lot{}, ErrDuplicate
		}
		return Lot{}, err
	}
	lot.CreatedAt = now
	return lot, nil
}

// CreateSerial inserts a serial row.
func (r *Repository) CreateSerial(ctx context.Context, serial Serial) (Serial, error) {
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, `INSERT INTO serials (item_id, serial_no, created_at)
VALUES ($1,$2,$3) RETURNING id`, serial.ItemID, serial.SerialNo, now).Scan(&serial.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return Serial{}, ErrDuplicate
		}
		return Serial{}, err
	}
	serial.CreatedAt = now
	return serial, nil
}

// GetLot fetches one lot by id.
func (r *Repository) GetLot(ctx context.Context, id int64) (Lot, error) {
	var lot Lot
	err := r.pool.QueryRow(ctx, `SELECT id, item_id, lot_no, expiry_date, created_at FROM lots WHERE id=$1`, id).
		Scan(&lot.ID, &lot.ItemID, &lot.LotNo, &lot.ExpiryDate, &lot.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lot{}, shared.ErrNotFound
		}
		return Lot{}, err
	}
	return lot, nil
}

// ListByItem lists all lots of an item ordered by expiry.
func (r *Repository) ListByItem(ctx context.Context, itemID int64) ([]Lot, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, item_id, lot_no, expiry_date, created_at
FROM lots WHERE item_id=$1 ORDER BY expiry_date ASC, id ASC`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Lot
	for rows.Next() {
		var lot Lot
		if err := rows.Scan(&lot.ID, &lot.ItemID, &lot.LotNo, &lot.ExpiryDate, &lot.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, lot)
	}
	return out, rows.Err()
}

// LotBalances aggregates per-lot on-hand for one item at one warehouse,
// ordered by expiry date then lot id.
func (r *Repository) LotBalances(ctx context.Context, scope shared.Scope, warehouseID, itemID int64) ([]LotBalance, error) {
	rows, err := r.pool.Query(ctx, `SELECT l.id, l.item_id, l.lot_no, l.expiry_date, l.created_at,
  COALESCE(SUM(CASE s.direction WHEN 'IN' THEN s.qty ELSE -s.qty END), 0) AS on_hand
FROM lots l
LEFT JOIN stock_ledger s ON s.lot_id = l.id
  AND s.company_id=$1 AND s.branch_id=$2 AND s.warehouse_id=$3
WHERE l.item_id=$4
GROUP BY l.id, l.item_id, l.lot_no, l.expiry_date, l.created_at
ORDER BY l.expiry_date ASC, l.id ASC`, scope.CompanyID, scope.BranchID, warehouseID, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var balances []LotBalance
	for rows.Next() {
		var b LotBalance
		if err := rows.Scan(&b.Lot.ID, &b.Lot.ItemID, &b.Lot.LotNo, &b.Lot.ExpiryDate, &b.Lot.CreatedAt, &b.OnHand); err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
