package items

import (
	"context"
	"errors"
	"fmt"

	"github.com/meridian-wms/meridian/internal/masterdata/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Item, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Item, error) {
	if id <= 0 {
		return Item{}, errors.New("invalid item ID")
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, item Item) (Item, error) {
	if item.CostMethod == "" {
		item.CostMethod = CostMethodFIFO
	}
	if err := s.validate(item); err != nil {
		return Item{}, err
	}
	return s.repo.Create(ctx, item)
}

// Update rejects tracking-flag changes once lots or serials exist for the
// item: movements already reference that identity discipline.
func (s *Service) Update(ctx context.Context, id int64, item Item) error {
	if id <= 0 {
		return errors.New("invalid item ID")
	}
	if err := s.validate(item); err != nil {
		return err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.TrackLot != item.TrackLot || current.TrackSerial != item.TrackSerial {
		referenced, err := s.repo.TrackingReferenced(ctx, id)
		if err != nil {
			return err
		}
		if referenced {
			return fmt.Errorf("%w: tracking flags are immutable once lots or serials exist", shared.ErrReferenced)
		}
	}
	return s.repo.Update(ctx, id, item)
}
