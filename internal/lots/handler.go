package lots

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-wms/meridian/internal/platform/httpx"
	"github.com/meridian-wms/meridian/internal/shared"
)

// Handler wires lot/serial registry endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the registry handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers lot/serial routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/lots", h.handleCreateLot)
	r.Get("/lots", h.handleListLots)
	r.Get("/lots/pick-fefo", h.handlePickFEFO)
	r.Post("/serials", h.handleCreateSerial)
}

type lotRequest struct {
	ItemID     int64  `json:"item_id" validate:"required,gt=0"`
	LotNo      string `json:"lot_no" validate:"required,max=64"`
	ExpiryDate string `json:"expiry_date" validate:"required"`
}

func (h *Handler) handleCreateLot(w http.ResponseWriter, r *http.Request) {
	var req lotRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	expiry, err := time.Parse("2006-01-02", req.ExpiryDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid expiry date")
		return
	}
	lot, err := h.service.CreateLot(r.Context(), Lot{ItemID: req.ItemID, LotNo: req.LotNo, ExpiryDate: expiry})
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			httpx.Problem(w, http.StatusConflict, "Duplicate", "lot number already exists for item")
			return
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusCreated, lot)
}

func (h *Handler) handleListLots(w http.ResponseWriter, r *http.Request) {
	itemID, _ := strconv.ParseInt(r.URL.Query().Get("item_id"), 10, 64)
	lotsList, err := h.service.ListByItem(r.Context(), itemID)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, lotsList)
}

func (h *Handler) handlePickFEFO(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scope := shared.Scope{
		CompanyID: parseID(q.Get("company_id")),
		BranchID:  parseID(q.Get("branch_id")),
	}
	warehouseID := parseID(q.Get("warehouse_id"))
	itemID := parseID(q.Get("item_id"))

	lot, err := h.service.PickLotFEFO(r.Context(), scope, warehouseID, itemID)
	if err != nil {
		if errors.Is(err, ErrNoEligibleLot) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "no lot with positive on-hand")
			return
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, lot)
}

type serialRequest struct {
	ItemID   int64  `json:"item_id" validate:"required,gt=0"`
	SerialNo string `json:"serial_no" validate:"required,max=64"`
}

func (h *Handler) handleCreateSerial(w http.ResponseWriter, r *http.Request) {
	var req serialRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	serial, err := h.service.CreateSerial(r.Context(), Serial{ItemID: req.ItemID, SerialNo: req.SerialNo})
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			httpx.Problem(w, http.StatusConflict, "Duplicate", "serial number already exists for item")
			return
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusCreated, serial)
}

func parseID(raw string) int64 {
	id, _ := strconv.ParseInt(raw, 10, 64)
	return id
}
