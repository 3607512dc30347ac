package lots

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/meridian-wms/meridian/internal/shared"
)

// RepositoryPort abstracts the registry persistence for the service.
type RepositoryPort interface {
	CreateLot(ctx context.Context, lot Lot) (Lot, error)
	CreateSerial(ctx context.Context, serial Serial) (Serial, error)
	GetLot(ctx context.Context, id int64) (Lot, error)
	ListByItem(ctx context.Context, itemID int64) ([]Lot, error)
	LotBalances(ctx context.Context, scope shared.Scope, warehouseID, itemID int64) ([]LotBalance, error)
}

// Service coordinates lot/serial registration and FEFO picking.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateLot registers a new lot for a lot-tracked item.
func (s *Service) CreateLot(ctx context.Context, lot Lot) (Lot, error) {
	if lot.ItemID <= 0 {
		return Lot{}, errors.New("lots: item required")
	}
	if strings.TrimSpace(lot.LotNo) == "" {
		return Lot{}, errors.New("lots: lot number required")
	}
	if lot.ExpiryDate.IsZero() {
		return Lot{}, errors.New("lots: expiry date required")
	}
	return s.repo.CreateLot(ctx, lot)
}

// CreateSerial registers a new serial for a serial-tracked item.
func (s *Service) CreateSerial(ctx context.Context, serial Serial) (Serial, error) {
	if serial.ItemID <= 0 {
		return Serial{}, errors.New("lots: item required")
	}
	if strings.TrimSpace(serial.SerialNo) == "" {
		return Serial{}, errors.New("lots: serial number required")
	}
	return s.repo.CreateSerial(ctx, serial)
}

// ListByItem lists lots of an item.
func (s *Service) ListByItem(ctx context.Context, itemID int64) ([]Lot, error) {
	if itemID <= 0 {
		return nil, errors.New("lots: item required")
	}
	return s.repo.ListByItem(ctx, itemID)
}

// PickLotFEFO returns the lot with the earliest expiry among lots holding
// positive on-hand at the warehouse. Used by picking flows that do not pin a
// specific lot.
func (s *Service) PickLotFEFO(ctx context.Context, scope shared.Scope, warehouseID, itemID int64) (Lot, error) {
	if err := scope.Validate(); err != nil {
		return Lot{}, err
	}
	if warehouseID <= 0 || itemID <= 0 {
		return Lot{}, errors.New("lots: warehouse and item required")
	}
	balances, err := s.repo.LotBalances(ctx, scope, warehouseID, itemID)
	if err != nil {
		return Lot{}, err
	}
	var best *LotBalance
	for i := range balances {
		b := &balances[i]
		if !b.OnHand.IsPositive() {
			continue
		}
		if best == nil || b.Lot.ExpiryDate.Before(best.Lot.ExpiryDate) {
			best = b
		}
	}
	if best == nil {
		return Lot{}, ErrNoEligibleLot
	}
	return best.Lot, nil
}

// Expired reports whether the lot is past its expiry at the given time.
func Expired(lot Lot, at time.Time) bool {
	return !lot.ExpiryDate.IsZero() && lot.ExpiryDate.Before(at)
}
