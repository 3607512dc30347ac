package permissions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-wms/meridian/internal/shared"
)

type grantKey struct {
	actorID     int64
	warehouseID int64
	cap         Capability
}

type memoryRepo struct {
	grants map[grantKey]Grant
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{grants: make(map[grantKey]Grant)}
}

func (r *memoryRepo) Create(ctx context.Context, grant Grant) (Grant, error) {
	key := grantKey{grant.ActorID, grant.WarehouseID, grant.Capability}
	if _, ok := r.grants[key]; ok {
		return Grant{}, ErrDuplicate
	}
	r.nextID++
	grant.ID = r.nextID
	r.grants[key] = grant
	return grant, nil
}

func (r *memoryRepo) Delete(ctx context.Context, actorID, warehouseID int64, cap Capability) error {
	key := grantKey{actorID, warehouseID, cap}
	if _, ok := r.grants[key]; !ok {
		return ErrNotFound
	}
	delete(r.grants, key)
	return nil
}

func (r *memoryRepo) ListByActor(ctx context.Context, actorID int64) ([]Grant, error) {
	var out []Grant
	for _, g := range r.grants {
		if g.ActorID == actorID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *memoryRepo) Has(ctx context.Context, actorID, warehouseID int64, cap Capability) (bool, error) {
	_, ok := r.grants[grantKey{actorID, warehouseID, cap}]
	return ok, nil
}

func testCtx() context.Context {
	return shared.ContextWithActor(context.Background(), 1)
}

func TestGrantAndCheck(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := testCtx()

	_, err := svc.Grant(ctx, 5, 2, CapabilityPost)
	require.NoError(t, err)

	ok, err := svc.CanPost(ctx, 5, 2)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.CanPost(ctx, 5, 3)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPostGrantImpliesView(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := testCtx()

	_, err := svc.Grant(ctx, 5, 2, CapabilityPost)
	require.NoError(t, err)

	ok, err := svc.CanView(ctx, 5, 2)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestViewGrantDoesNotAllowPost(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := testCtx()

	_, err := svc.Grant(ctx, 5, 2, CapabilityView)
	require.NoError(t, err)

	require.ErrorIs(t, svc.RequirePost(ctx, 5, 2), ErrDenied)
}

func TestRevoke(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := testCtx()

	_, err := svc.Grant(ctx, 5, 2, CapabilityView)
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(ctx, 5, 2, CapabilityView))

	ok, err := svc.CanView(ctx, 5, 2)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDuplicateGrant(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := testCtx()

	_, err := svc.Grant(ctx, 5, 2, CapabilityView)
	require.NoError(t, err)
	_, err = svc.Grant(ctx, 5, 2, CapabilityView)
	require.ErrorIs(t, err, ErrDuplicate)
}
