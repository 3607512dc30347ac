package units

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

func (s *Service) List(ctx context.Context) ([]Unit, error) {
	return s.repo.List(ctx)
}

func (s *Service) Create(ctx context.Context, unit Unit) (Unit, error) {
	if strings.TrimSpace(unit.Code) == "" {
		return Unit{}, errors.New("unit code is required")
	}
	return s.repo.Create(ctx, unit)
}
