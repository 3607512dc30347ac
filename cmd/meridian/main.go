package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/meridian-wms/meridian/internal/app"
	"github.com/meridian-wms/meridian/internal/documents"
	"github.com/meridian-wms/meridian/internal/ledger"
	"github.com/meridian-wms/meridian/internal/locks"
	"github.com/meridian-wms/meridian/internal/lots"
	"github.com/meridian-wms/meridian/internal/masterdata"
	"github.com/meridian-wms/meridian/internal/masterdata/categories"
	"github.com/meridian-wms/meridian/internal/masterdata/items"
	"github.com/meridian-wms/meridian/internal/masterdata/locations"
	"github.com/meridian-wms/meridian/internal/masterdata/units"
	"github.com/meridian-wms/meridian/internal/masterdata/warehouses"
	"github.com/meridian-wms/meridian/internal/observability"
	"github.com/meridian-wms/meridian/internal/permissions"
	"github.com/meridian-wms/meridian/internal/platform/cache"
	"github.com/meridian-wms/meridian/internal/platform/db"
	"github.com/meridian-wms/meridian/internal/posting"
	"github.com/meridian-wms/meridian/internal/reservations"
	"github.com/meridian-wms/meridian/internal/shared"
)

// itemFlags adapts the items service to the documents item port.
type itemFlags struct {
	items *items.Service
}

func (a itemFlags) TrackingFlags(ctx context.Context, _ shared.Scope, itemID int64) (bool, bool, error) {
	item, err := a.items.Get(ctx, itemID)
	if err != nil {
		return false, false, err
	}
	return item.TrackLot, item.TrackSerial, nil
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, on-hand cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	warehousesService := warehouses.NewService(warehouses.NewRepository(pool))
	locationsService := locations.NewService(locations.NewRepository(pool))
	itemsService := items.NewService(items.NewRepository(pool))
	unitsService := units.NewService(units.NewRepository(pool))
	categoriesService := categories.NewService(categories.NewRepository(pool))

	lotsService := lots.NewService(lots.NewRepository(pool))
	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, redisClient, cfg.OnHandCacheTTL, logger)
	reservationsService := reservations.NewService(reservations.NewRepository(pool), auditLogger)
	locksService := locks.NewService(locks.NewRepository(pool), auditLogger)
	permissionsService := permissions.NewService(permissions.NewRepository(pool))
	documentsService := documents.NewService(documents.NewRepository(pool), itemFlags{items: itemsService})
	postingService := posting.NewService(logger, posting.NewPgStore(pool), cfg.Policy(),
		auditLogger, ledgerService, idempotencyStore)

	router := app.NewRouter(app.RouterParams{
		Logger: logger,
		Config: cfg,
		MasterDataHandler: &masterdata.Handler{
			Warehouses: warehouses.NewHandler(logger, warehousesService),
			Locations:  locations.NewHandler(logger, locationsService),
			Items:      items.NewHandler(logger, itemsService),
			Units:      units.NewHandler(logger, unitsService),
			Categories: categories.NewHandler(logger, categoriesService),
		},
		LotsHandler:         lots.NewHandler(logger, lotsService),
		LedgerHandler:       ledger.NewHandler(logger, ledgerService),
		ReservationsHandler: reservations.NewHandler(logger, reservationsService),
		LocksHandler:        locks.NewHandler(logger, locksService),
		PermissionsHandler:  permissions.NewHandler(logger, permissionsService),
		DocumentsHandler:    documents.NewHandler(logger, documentsService),
		PostingHandler:      posting.NewHandler(logger, postingService),
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AppRequestTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	}()

	logger.Info("listening", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server run", slog.Any("error", err))
		os.Exit(1)
	}
}
