package locations

import (
	"context"
	"errors"
	"strings"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListByWarehouse(ctx context.Context, warehouseID int64) ([]Location, error) {
	if warehouseID <= 0 {
		return nil, errors.New("invalid warehouse ID")
	}
	return s.repo.ListByWarehouse(ctx, warehouseID)
}

func (s *Service) Get(ctx context.Context, id int64) (Location, error) {
	if id <= 0 {
		return Location{}, errors.New("invalid location ID")
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, location Location) (Location, error) {
	if location.WarehouseID <= 0 {
		return Location{}, errors.New("warehouse is required")
	}
	if strings.TrimSpace(location.Code) == "" {
		return Location{}, errors.New("location code is required")
	}
	return s.repo.Create(ctx, location)
}
