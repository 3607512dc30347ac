package permissions

import (
	"context"
	"errors"

	"github.com/meridian-wms/meridian/internal/shared"
)

// RepositoryPort abstracts grant persistence for the service.
type RepositoryPort interface {
	Create(ctx context.Context, grant Grant) (Grant, error)
	Delete(ctx context.Context, actorID, warehouseID int64, cap Capability) error
	ListByActor(ctx context.Context, actorID int64) ([]Grant, error)
	Has(ctx context.Context, actorID, warehouseID int64, cap Capability) (bool, error)
}

// Service manages warehouse permission grants and answers capability checks.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Grant assigns a capability to an actor on a warehouse.
func (s *Service) Grant(ctx context.Context, actorID, warehouseID int64, cap Capability) (Grant, error) {
	if actorID <= 0 || warehouseID <= 0 {
		return Grant{}, errors.New("permissions: actor and warehouse required")
	}
	if !cap.Valid() {
		return Grant{}, errors.New("permissions: unknown capability")
	}
	grantedBy, err := shared.ActorFromContext(ctx)
	if err != nil {
		return Grant{}, err
	}
	return s.repo.Create(ctx, Grant{ActorID: actorID, WarehouseID: warehouseID, Capability: cap, GrantedBy: grantedBy})
}

// Revoke removes a grant.
func (s *Service) Revoke(ctx context.Context, actorID, warehouseID int64, cap Capability) error {
	if !cap.Valid() {
		return errors.New("permissions: unknown capability")
	}
	return s.repo.Delete(ctx, actorID, warehouseID, cap)
}

// ListByActor returns all grants of one actor.
func (s *Service) ListByActor(ctx context.Context, actorID int64) ([]Grant, error) {
	if actorID <= 0 {
		return nil, errors.New("permissions: actor required")
	}
	return s.repo.ListByActor(ctx, actorID)
}

// CanView reports whether the actor may read stock for a warehouse. A POST
// grant implies view.
func (s *Service) CanView(ctx context.Context, actorID, warehouseID int64) (bool, error) {
	ok, err := s.repo.Has(ctx, actorID, warehouseID, CapabilityView)
	if err != nil || ok {
		return ok, err
	}
	return s.repo.Has(ctx, actorID, warehouseID, CapabilityPost)
}

// CanPost reports whether the actor may post documents touching a warehouse.
func (s *Service) CanPost(ctx context.Context, actorID, warehouseID int64) (bool, error) {
	return s.repo.Has(ctx, actorID, warehouseID, CapabilityPost)
}

// RequirePost returns ErrDenied unless the actor holds the POST capability.
func (s *Service) RequirePost(ctx context.Context, actorID, warehouseID int64) error {
	ok, err := s.CanPost(ctx, actorID, warehouseID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDenied
	}
	return nil
}
