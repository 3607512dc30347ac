package reservations

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-wms/meridian/internal/ledger"
	"github.com/meridian-wms/meridian/internal/platform/httpx"
	"github.com/meridian-wms/meridian/internal/shared"
)

// Handler exposes reservation and block endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the holds handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers hold routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/reservations", h.handleReserve)
	r.Delete("/reservations/{id}", h.handleRelease)
	r.Post("/blocks", h.handleCreateBlock)
	r.Delete("/blocks/{id}", h.handleReleaseBlock)
	r.Get("/available", h.handleAvailable)
}

type holdRequest struct {
	CompanyID   int64  `json:"company_id" validate:"required,gt=0"`
	BranchID    int64  `json:"branch_id" validate:"required,gt=0"`
	WarehouseID int64  `json:"warehouse_id" validate:"required,gt=0"`
	LocationID  int64  `json:"location_id" validate:"required,gt=0"`
	ItemID      int64  `json:"item_id" validate:"required,gt=0"`
	LotID       int64  `json:"lot_id"`
	SerialID    int64  `json:"serial_id"`
	Qty         string `json:"qty" validate:"required"`
	Note        string `json:"note" validate:"max=255"`
	Reason      string `json:"reason" validate:"max=255"`
}

func (h *Handler) decodeHold(r *http.Request) (ledger.StockKey, decimal.Decimal, holdRequest, error) {
	var req holdRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return ledger.StockKey{}, decimal.Zero, req, errors.New("invalid json body")
	}
	if err := h.validate.Struct(req); err != nil {
		return ledger.StockKey{}, decimal.Zero, req, err
	}
	qty, err := decimal.NewFromString(req.Qty)
	if err != nil {
		return ledger.StockKey{}, decimal.Zero, req, errors.New("invalid qty")
	}
	key := ledger.StockKey{
		Scope:       shared.Scope{CompanyID: req.CompanyID, BranchID: req.BranchID},
		WarehouseID: req.WarehouseID,
		LocationID:  req.LocationID,
		ItemID:      req.ItemID,
		LotID:       req.LotID,
		SerialID:    req.SerialID,
	}
	return key, qty, req, nil
}

func (h *Handler) handleReserve(w http.ResponseWriter, r *http.Request) {
	key, qty, req, err := h.decodeHold(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	res, err := h.service.Reserve(r.Context(), Reservation{StockKey: key, Qty: qty, Note: req.Note})
	if err != nil {
		switch {
		case errors.Is(err, ErrExceedsOnHand):
			httpx.Problem(w, http.StatusConflict, "Conflict", "reserved quantity exceeds on-hand")
		case errors.Is(err, ErrInvalidQuantity):
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		default:
			h.logger.Error("reserve failed", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "could not create reservation")
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	if err := h.service.Release(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "reservation not found or already released")
			return
		}
		h.logger.Error("release failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "could not release reservation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCreateBlock(w http.ResponseWriter, r *http.Request) {
	key, qty, req, err := h.decodeHold(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	block, err := h.service.CreateBlock(r.Context(), Block{StockKey: key, Qty: qty, Reason: req.Reason})
	if err != nil {
		if errors.Is(err, ErrInvalidQuantity) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		h.logger.Error("block failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "could not create block")
		return
	}
	httpx.JSON(w, http.StatusCreated, block)
}

func (h *Handler) handleReleaseBlock(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	if err := h.service.ReleaseBlock(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "block not found or already released")
			return
		}
		h.logger.Error("release block failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "could not release block")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAvailable(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := ledger.StockKey{
		Scope: shared.Scope{
			CompanyID: parseID(q.Get("company_id")),
			BranchID:  parseID(q.Get("branch_id")),
		},
		WarehouseID: parseID(q.Get("warehouse_id")),
		LocationID:  parseID(q.Get("location_id")),
		ItemID:      parseID(q.Get("item_id")),
		LotID:       parseID(q.Get("lot_id")),
		SerialID:    parseID(q.Get("serial_id")),
	}
	available, err := h.service.Available(r.Context(), key)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"available": available.String()})
}

func parseID(raw string) int64 {
	id, _ := strconv.ParseInt(raw, 10, 64)
	return id
}
