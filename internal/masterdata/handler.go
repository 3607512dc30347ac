// Package masterdata aggregates the registry sub-modules under one route tree.
package masterdata

import (
	"github.com/go-chi/chi/v5"

	"github.com/meridian-wms/meridian/internal/masterdata/categories"
	"github.com/meridian-wms/meridian/internal/masterdata/items"
	"github.com/meridian-wms/meridian/internal/masterdata/locations"
	"github.com/meridian-wms/meridian/internal/masterdata/units"
	"github.com/meridian-wms/meridian/internal/masterdata/warehouses"
)

// Handler mounts all master data routes.
type Handler struct {
	Warehouses *warehouses.Handler
	Locations  *locations.Handler
	Items      *items.Handler
	Units      *units.Handler
	Categories *categories.Handler
}

// MountRoutes registers master data routes.
func (h *Handler) MountRoutes(r chi.Router) {
	if h.Warehouses != nil {
		r.Route("/warehouses", h.Warehouses.MountRoutes)
	}
	if h.Locations != nil {
		r.Route("/locations", h.Locations.MountRoutes)
	}
	if h.Items != nil {
		r.Route("/items", h.Items.MountRoutes)
	}
	if h.Units != nil {
		r.Route("/units", h.Units.MountRoutes)
	}
	if h.Categories != nil {
		r.Route("/categories", h.Categories.MountRoutes)
	}
}
