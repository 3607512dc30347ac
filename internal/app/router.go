package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-wms/meridian/internal/documents"
	"github.com/meridian-wms/meridian/internal/ledger"
	"github.com/meridian-wms/meridian/internal/locks"
	"github.com/meridian-wms/meridian/internal/lots"
	"github.com/meridian-wms/meridian/internal/masterdata"
	"github.com/meridian-wms/meridian/internal/observability"
	"github.com/meridian-wms/meridian/internal/permissions"
	"github.com/meridian-wms/meridian/internal/posting"
	"github.com/meridian-wms/meridian/internal/reservations"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger              *slog.Logger
	Config              *Config
	MasterDataHandler   *masterdata.Handler
	LotsHandler         *lots.Handler
	LedgerHandler       *ledger.Handler
	ReservationsHandler *reservations.Handler
	LocksHandler        *locks.Handler
	PermissionsHandler  *permissions.Handler
	DocumentsHandler    *documents.Handler
	PostingHandler      *posting.Handler
	Metrics             *observability.Metrics
}

// NewRouter constructs the chi.Router for the JSON API.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		if params.MasterDataHandler != nil {
			api.Route("/masterdata", params.MasterDataHandler.MountRoutes)
		}
		if params.LotsHandler != nil {
			api.Route("/tracking", params.LotsHandler.MountRoutes)
		}
		if params.LedgerHandler != nil {
			api.Route("/stock", params.LedgerHandler.MountRoutes)
		}
		if params.ReservationsHandler != nil {
			api.Route("/holds", params.ReservationsHandler.MountRoutes)
		}
		if params.LocksHandler != nil {
			api.Route("/locks", params.LocksHandler.MountRoutes)
		}
		if params.PermissionsHandler != nil {
			api.Route("/permissions", params.PermissionsHandler.MountRoutes)
		}
		api.Route("/documents", func(docs chi.Router) {
			if params.DocumentsHandler != nil {
				params.DocumentsHandler.MountRoutes(docs)
			}
			if params.PostingHandler != nil {
				params.PostingHandler.MountRoutes(docs)
			}
		})
	})

	return r
}
