package units

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-wms/meridian/internal/masterdata/shared"
)

type Repository interface {
	List(ctx context.Context) ([]Unit, error)
	Create(ctx context.Context, unit Unit) (Unit, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context) ([]Unit, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, created_at FROM units ORDER BY code ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var units []Unit
	for rows.Next() {
		var u Unit
		if err := rows.Scan(&u.ID, &u.Code, &u.Name, &u.CreatedAt); err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

func (r *repository) Create(ctx context.Context, unit Unit) (Unit, error) {
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, `INSERT INTO units (code, name, created_at) VALUES ($1,$2,$3) RETURNING id`,
		unit.Code, unit.Name, now).Scan(&unit.ID)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return Unit{}, shared.ErrDuplicate
		}
		return Unit{}, err
	}
	unit.CreatedAt = now
	return unit, nil
}
