package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// ReaderPort abstracts ledger reads for the service.
type ReaderPort interface {
	OnHand(ctx context.Context, key StockKey) (decimal.Decimal, error)
	StockCard(ctx context.Context, filter CardFilter) ([]Entry, error)
}

// Service serves on-hand projections and stock cards. On-hand reads go
// through a short-TTL redis cache; concurrent misses for the same scope are
// collapsed with singleflight.
type Service struct {
	repo   ReaderPort
	cache  *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// NewService builds Service. cache may be nil, in which case every read hits
// the ledger directly.
func NewService(repo ReaderPort, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Service{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// OnHand returns the current balance for a scope.
func (s *Service) OnHand(ctx context.Context, key StockKey) (decimal.Decimal, error) {
	if err := key.Validate(); err != nil {
		return decimal.Zero, err
	}
	if s.cache == nil {
		return s.repo.OnHand(ctx, key)
	}
	cacheKey := key.CacheKey()
	if raw, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
		if qty, perr := decimal.NewFromString(raw); perr == nil {
			return qty, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		s.logger.Warn("on-hand cache read", slog.Any("error", err))
	}

	v, err, _ := s.group.Do(cacheKey, func() (any, error) {
		qty, err := s.repo.OnHand(ctx, key)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, cacheKey, qty.String(), s.ttl).Err(); err != nil {
			s.logger.Warn("on-hand cache write", slog.Any("error", err))
		}
		return qty, nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return v.(decimal.Decimal), nil
}

// Invalidate drops cached balances for the given scopes. The posting engine
// calls this after a successful commit.
func (s *Service) Invalidate(ctx context.Context, keys []StockKey) error {
	if s.cache == nil || len(keys) == 0 {
		return nil
	}
	cacheKeys := make([]string, 0, len(keys))
	for _, key := range keys {
		cacheKeys = append(cacheKeys, key.CacheKey())
	}
	if err := s.cache.Del(ctx, cacheKeys...).Err(); err != nil {
		s.logger.Warn("on-hand cache invalidate", slog.Any("error", err))
		return err
	}
	return nil
}

// StockCard lists entries for a scope.
func (s *Service) StockCard(ctx context.Context, filter CardFilter) ([]Entry, error) {
	if err := filter.Scope.Validate(); err != nil {
		return nil, err
	}
	if filter.WarehouseID <= 0 || filter.LocationID <= 0 || filter.ItemID <= 0 {
		return nil, errors.New("ledger: warehouse, location and item required")
	}
	return s.repo.StockCard(ctx, filter)
}
