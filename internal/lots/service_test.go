package lots

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-wms/meridian/internal/shared"
)

type memoryRepo struct {
	lots     map[int64]Lot
	balances map[int64]decimal.Decimal
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{lots: make(map[int64]Lot), balances: make(map[int64]decimal.Decimal)}
}

func (r *memoryRepo) CreateLot(ctx context.Context, lot Lot) (Lot, error) {
	for _, existing := range r.lots {
		if existing.ItemID == lot.ItemID && existing.LotNo == lot.LotNo {
			return Lot{}, ErrDuplicate
		}
	}
	r.nextID++
	lot.ID = r.nextID
	r.lots[lot.ID] = lot
	return lot, nil
}

func (r *memoryRepo) CreateSerial(ctx context.Context, serial Serial) (Serial, error) {
	r.nextID++
	serial.ID = r.nextID
	return serial, nil
}

func (r *memoryRepo) GetLot(ctx context.Context, id int64) (Lot, error) {
	lot, ok := r.lots[id]
	if !ok {
		return Lot{}, shared.ErrNotFound
	}
	return lot, nil
}

func (r *memoryRepo) ListByItem(ctx context.Context, itemID int64) ([]Lot, error) {
	var out []Lot
	for _, lot := range r.lots {
		if lot.ItemID == itemID {
			out = append(out, lot)
		}
	}
	return out, nil
}

func (r *memoryRepo) LotBalances(ctx context.Context, scope shared.Scope, warehouseID, itemID int64) ([]LotBalance, error) {
	var out []LotBalance
	for _, lot := range r.lots {
		if lot.ItemID == itemID {
			out = append(out, LotBalance{Lot: lot, OnHand: r.balances[lot.ID]})
		}
	}
	return out, nil
}

func testScope() shared.Scope {
	return shared.Scope{CompanyID: 1, BranchID: 1}
}

func TestPickLotFEFO(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	early, err := svc.CreateLot(ctx, Lot{ItemID: 1, LotNo: "A", ExpiryDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	late, err := svc.CreateLot(ctx, Lot{ItemID: 1, LotNo: "B", ExpiryDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	repo.balances[early.ID] = decimal.NewFromInt(3)
	repo.balances[late.ID] = decimal.NewFromInt(10)

	picked, err := svc.PickLotFEFO(ctx, testScope(), 1, 1)
	require.NoError(t, err)
	require.Equal(t, early.ID, picked.ID)
}

func TestPickLotFEFOSkipsExhausted(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	early, err := svc.CreateLot(ctx, Lot{ItemID: 1, LotNo: "A", ExpiryDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	late, err := svc.CreateLot(ctx, Lot{ItemID: 1, LotNo: "B", ExpiryDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	repo.balances[early.ID] = decimal.Zero
	repo.balances[late.ID] = decimal.NewFromInt(4)

	picked, err := svc.PickLotFEFO(ctx, testScope(), 1, 1)
	require.NoError(t, err)
	require.Equal(t, late.ID, picked.ID)
}

func TestPickLotFEFONoEligible(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	_, err := svc.PickLotFEFO(context.Background(), testScope(), 1, 1)
	require.ErrorIs(t, err, ErrNoEligibleLot)
}

func TestCreateLotRejectsDuplicateNo(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.CreateLot(ctx, Lot{ItemID: 1, LotNo: "A", ExpiryDate: time.Now()})
	require.NoError(t, err)
	_, err = svc.CreateLot(ctx, Lot{ItemID: 1, LotNo: "A", ExpiryDate: time.Now()})
	require.ErrorIs(t, err, ErrDuplicate)
}
