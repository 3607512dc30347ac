package locations

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-wms/meridian/internal/masterdata/shared"
)

type Repository interface {
	ListByWarehouse(ctx context.Context, warehouseID int64) ([]Location, error)
	Get(ctx context.Context, id int64) (Location, error)
	Create(ctx context.Context, location Location) (Location, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) ListByWarehouse(ctx context.Context, warehouseID int64) ([]Location, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, warehouse_id, code, name, created_at
FROM locations WHERE warehouse_id=$1 ORDER BY code ASC`, warehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var locations []Location
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.WarehouseID, &l.Code, &l.Name, &l.CreatedAt); err != nil {
			return nil, err
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Location, error) {
	var l Location
	err := r.pool.QueryRow(ctx, `SELECT id, warehouse_id, code, name, created_at FROM locations WHERE id=$1`, id).
		Scan(&l.ID, &l.WarehouseID, &l.Code, &l.Name, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Location{}, shared.ErrNotFound
		}
		return Location{}, err
	}
	return l, nil
}

func (r *repository) Create(ctx context.Context, location Location) (Location, error) {
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, `INSERT INTO locations (warehouse_id, code, name, created_at)
VALUES ($1,$2,$3,$4) RETURNING id`, location.WarehouseID, location.Code, location.Name, now).Scan(&location.ID)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return Location{}, shared.ErrDuplicate
		}
		return Location{}, err
	}
	location.CreatedAt = now
	return location, nil
}
