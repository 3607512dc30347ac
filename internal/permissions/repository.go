package permissions

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-wms/meridian/internal/ledger"
)

// HasCapability checks one grant on any Querier so the posting transaction can
// run the gate against the same snapshot as its ledger reads.
func HasCapability(ctx context.Context, q ledger.Querier, actorID, warehouseID int64, cap Capability) (bool, error) {
	var ok bool
	err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM warehouse_permissions
WHERE actor_id=$1 AND warehouse_id=$2 AND capability=$3)`,
		actorID, warehouseID, cap).Scan(&ok)
	return ok, err
}

// Repository persists warehouse permission grants.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a grant. Unique on (actor_id, warehouse_id, capability).
func (r *Repository) Create(ctx context.Context, grant Grant) (Grant, error) {
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, `INSERT INTO warehouse_permissions (actor_id, warehouse_id, capability, granted_by, granted_at)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		grant.ActorID, grant.WarehouseID, grant.Capability, grant.GrantedBy, now).Scan(&grant.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Grant{}, ErrDuplicate
		}
		return Grant{}, err
	}
	grant.GrantedAt = now
	return grant, nil
}

// Delete removes a grant.
func (r *Repository) Delete(ctx context.Context, actorID, warehouseID int64, cap Capability) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM warehouse_permissions
WHERE actor_id=$1 AND warehouse_id=$2 AND capability=$3`,
		actorID, warehouseID, cap)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByActor returns all grants for an actor.
func (r *Repository) ListByActor(ctx context.Context, actorID int64) ([]Grant, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, actor_id, warehouse_id, capability, granted_by, granted_at
FROM warehouse_permissions WHERE actor_id=$1 ORDER BY warehouse_id, capability`, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.ID, &g.ActorID, &g.WarehouseID, &g.Capability, &g.GrantedBy, &g.GrantedAt); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// Has satisfies the service port outside a transaction.
func (r *Repository) Has(ctx context.Context, actorID, warehouseID int64, cap Capability) (bool, error) {
	return HasCapability(ctx, r.pool, actorID, warehouseID, cap)
}
