package reservations

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-wms/meridian/internal/ledger"
	"github.com/meridian-wms/meridian/internal/shared"
)

// RepositoryPort abstracts hold persistence for the service.
type RepositoryPort interface {
	CreateReservation(ctx context.Context, res Reservation) (Reservation, error)
	ReleaseReservation(ctx context.Context, id int64) error
	CreateBlock(ctx context.Context, block Block) (Block, error)
	ReleaseBlock(ctx context.Context, id int64) error
	Holds(ctx context.Context, key ledger.StockKey) (Holds, error)
	OnHand(ctx context.Context, key ledger.StockKey) (decimal.Decimal, error)
}

// AuditPort records hold lifecycle events.
type AuditPort interface {
	Record(ctx context.Context, entry shared.AuditLog) error
}

// Service enforces the reservation cap and records hold audit events.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Reserve creates a reservation after checking the active total stays within
// on-hand. Blocks do not count against the cap; they constrain shipping only.
func (s *Service) Reserve(ctx context.Context, res Reservation) (Reservation, error) {
	if err := res.StockKey.Validate(); err != nil {
		return Reservation{}, err
	}
	if !res.Qty.IsPositive() {
		return Reservation{}, ErrInvalidQuantity
	}
	actorID, err := shared.ActorFromContext(ctx)
	if err != nil {
		return Reservation{}, err
	}
	onHand, err := s.repo.OnHand(ctx, res.StockKey)
	if err != nil {
		return Reservation{}, err
	}
	holds, err := s.repo.Holds(ctx, res.StockKey)
	if err != nil {
		return Reservation{}, err
	}
	if holds.Reserved.Add(res.Qty).GreaterThan(onHand) {
		return Reservation{}, ErrExceedsOnHand
	}
	res.CreatedBy = actorID
	created, err := s.repo.CreateReservation(ctx, res)
	if err != nil {
		return Reservation{}, err
	}
	s.recordAudit(ctx, actorID, shared.AuditActionReserve, "reservation", created.ID, map[string]any{
		"item_id": created.ItemID,
		"qty":     created.Qty.String(),
	})
	return created, nil
}

// Release releases a reservation. Releasing twice returns ErrNotFound.
func (s *Service) Release(ctx context.Context, id int64) error {
	actorID, err := shared.ActorFromContext(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.ReleaseReservation(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, shared.AuditActionRelease, "reservation", id, nil)
	return nil
}

// CreateBlock places a hard exclusion on stock. Blocks may exceed on-hand;
// damaged quantity can be recorded before a count adjusts the balance.
func (s *Service) CreateBlock(ctx context.Context, block Block) (Block, error) {
	if err := block.StockKey.Validate(); err != nil {
		return Block{}, err
	}
	if !block.Qty.IsPositive() {
		return Block{}, ErrInvalidQuantity
	}
	actorID, err := shared.ActorFromContext(ctx)
	if err != nil {
		return Block{}, err
	}
	block.CreatedBy = actorID
	created, err := s.repo.CreateBlock(ctx, block)
	if err != nil {
		return Block{}, err
	}
	s.recordAudit(ctx, actorID, shared.AuditActionBlock, "block", created.ID, map[string]any{
		"item_id": created.ItemID,
		"qty":     created.Qty.String(),
		"reason":  created.Reason,
	})
	return created, nil
}

// ReleaseBlock lifts a block.
func (s *Service) ReleaseBlock(ctx context.Context, id int64) error {
	actorID, err := shared.ActorFromContext(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.ReleaseBlock(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, shared.AuditActionRelease, "block", id, nil)
	return nil
}

// Available returns on-hand minus active holds, the quantity a shipment may
// take from this scope.
func (s *Service) Available(ctx context.Context, key ledger.StockKey) (decimal.Decimal, error) {
	if err := key.Validate(); err != nil {
		return decimal.Zero, err
	}
	onHand, err := s.repo.OnHand(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	holds, err := s.repo.Holds(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	return onHand.Sub(holds.Total()), nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entityType string, entityID int64, detail map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   strconv.FormatInt(entityID, 10),
		Detail:     detail,
		At:         time.Now().UTC(),
	})
}
