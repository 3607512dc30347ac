package reservations

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-wms/meridian/internal/ledger"
	"github.com/meridian-wms/meridian/internal/shared"
)

type memoryRepo struct {
	reservations map[int64]Reservation
	blocks       map[int64]Block
	released     map[int64]bool
	onHand       decimal.Decimal
	nextID       int64
}

func newMemoryRepo(onHand decimal.Decimal) *memoryRepo {
	return &memoryRepo{
		reservations: make(map[int64]Reservation),
		blocks:       make(map[int64]Block),
		released:     make(map[int64]bool),
		onHand:       onHand,
	}
}

func (r *memoryRepo) CreateReservation(ctx context.Context, res Reservation) (Reservation, error) {
	r.nextID++
	res.ID = r.nextID
	r.reservations[res.ID] = res
	return res, nil
}

func (r *memoryRepo) ReleaseReservation(ctx context.Context, id int64) error {
	if _, ok := r.reservations[id]; !ok || r.released[id] {
		return ErrNotFound
	}
	r.released[id] = true
	return nil
}

func (r *memoryRepo) CreateBlock(ctx context.Context, block Block) (Block, error) {
	r.nextID++
	block.ID = r.nextID
	r.blocks[block.ID] = block
	return block, nil
}

func (r *memoryRepo) ReleaseBlock(ctx context.Context, id int64) error {
	if _, ok := r.blocks[id]; !ok || r.released[id] {
		return ErrNotFound
	}
	r.released[id] = true
	return nil
}

func (r *memoryRepo) Holds(ctx context.Context, key ledger.StockKey) (Holds, error) {
	var holds Holds
	for id, res := range r.reservations {
		if !r.released[id] {
			holds.Reserved = holds.Reserved.Add(res.Qty)
		}
	}
	for id, block := range r.blocks {
		if !r.released[id] {
			holds.Blocked = holds.Blocked.Add(block.Qty)
		}
	}
	return holds, nil
}

func (r *memoryRepo) OnHand(ctx context.Context, key ledger.StockKey) (decimal.Decimal, error) {
	return r.onHand, nil
}

func testKey() ledger.StockKey {
	return ledger.StockKey{
		Scope:       shared.Scope{CompanyID: 1, BranchID: 1},
		WarehouseID: 1,
		LocationID:  1,
		ItemID:      1,
	}
}

func testCtx() context.Context {
	return shared.ContextWithActor(context.Background(), 7)
}

func TestReserveWithinOnHand(t *testing.T) {
	repo := newMemoryRepo(decimal.NewFromInt(10))
	svc := NewService(repo, nil)

	res, err := svc.Reserve(testCtx(), Reservation{StockKey: testKey(), Qty: decimal.NewFromInt(6)})
	require.NoError(t, err)
	require.NotZero(t, res.ID)
	require.Equal(t, int64(7), res.CreatedBy)
}

func TestReserveRejectsExceedingOnHand(t *testing.T) {
	repo := newMemoryRepo(decimal.NewFromInt(10))
	svc := NewService(repo, nil)
	ctx := testCtx()

	_, err := svc.Reserve(ctx, Reservation{StockKey: testKey(), Qty: decimal.NewFromInt(6)})
	require.NoError(t, err)
	_, err = svc.Reserve(ctx, Reservation{StockKey: testKey(), Qty: decimal.NewFromInt(5)})
	require.ErrorIs(t, err, ErrExceedsOnHand)
}

func TestReserveRejectsNonPositiveQty(t *testing.T) {
	repo := newMemoryRepo(decimal.NewFromInt(10))
	svc := NewService(repo, nil)

	_, err := svc.Reserve(testCtx(), Reservation{StockKey: testKey(), Qty: decimal.Zero})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestReleaseTwiceFails(t *testing.T) {
	repo := newMemoryRepo(decimal.NewFromInt(10))
	svc := NewService(repo, nil)
	ctx := testCtx()

	res, err := svc.Reserve(ctx, Reservation{StockKey: testKey(), Qty: decimal.NewFromInt(2)})
	require.NoError(t, err)
	require.NoError(t, svc.Release(ctx, res.ID))
	require.ErrorIs(t, svc.Release(ctx, res.ID), ErrNotFound)
}

func TestBlockMayExceedOnHand(t *testing.T) {
	repo := newMemoryRepo(decimal.NewFromInt(3))
	svc := NewService(repo, nil)

	block, err := svc.CreateBlock(testCtx(), Block{StockKey: testKey(), Qty: decimal.NewFromInt(5), Reason: "damage"})
	require.NoError(t, err)
	require.NotZero(t, block.ID)
}

func TestAvailableSubtractsReservationsAndBlocks(t *testing.T) {
	repo := newMemoryRepo(decimal.NewFromInt(10))
	svc := NewService(repo, nil)
	ctx := testCtx()

	_, err := svc.Reserve(ctx, Reservation{StockKey: testKey(), Qty: decimal.NewFromInt(4)})
	require.NoError(t, err)
	_, err = svc.CreateBlock(ctx, Block{StockKey: testKey(), Qty: decimal.NewFromInt(3), Reason: "qa"})
	require.NoError(t, err)

	available, err := svc.Available(ctx, testKey())
	require.NoError(t, err)
	require.True(t, available.Equal(decimal.NewFromInt(3)), "got %s", available)
}

func TestReserveRequiresActor(t *testing.T) {
	repo := newMemoryRepo(decimal.NewFromInt(10))
	svc := NewService(repo, nil)

	_, err := svc.Reserve(context.Background(), Reservation{StockKey: testKey(), Qty: decimal.NewFromInt(1)})
	require.Error(t, err)
}
