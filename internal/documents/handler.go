package documents

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-wms/meridian/internal/platform/httpx"
	"github.com/meridian-wms/meridian/internal/shared"
)

// Handler exposes draft document endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the documents handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers document routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Put("/{id}", h.handleUpdate)
}

type lineRequest struct {
	ItemID         int64  `json:"item_id" validate:"required,gt=0"`
	LocationID     int64  `json:"location_id" validate:"required,gt=0"`
	DestLocationID int64  `json:"dest_location_id"`
	LotID          int64  `json:"lot_id"`
	SerialID       int64  `json:"serial_id"`
	Qty            string `json:"qty"`
	UnitCost       string `json:"unit_cost"`
	CountedQty     string `json:"counted_qty"`
}

type documentRequest struct {
	CompanyID       int64         `json:"company_id" validate:"required,gt=0"`
	BranchID        int64         `json:"branch_id" validate:"required,gt=0"`
	Type            string        `json:"type" validate:"required,oneof=GRN SHIP TRF COUNT"`
	Series          string        `json:"series" validate:"max=16"`
	DocDate         string        `json:"doc_date" validate:"required"`
	WarehouseID     int64         `json:"warehouse_id" validate:"required,gt=0"`
	DestWarehouseID int64         `json:"dest_warehouse_id"`
	LandedCost      string        `json:"landed_cost"`
	ToleranceQty    string        `json:"tolerance_qty"`
	Note            string        `json:"note" validate:"max=500"`
	Lines           []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

func parseDecimal(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

func (h *Handler) decodeDocument(r *http.Request) (Document, error) {
	var req documentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return Document{}, errors.New("invalid json body")
	}
	if err := h.validate.Struct(req); err != nil {
		return Document{}, err
	}
	docDate, err := time.Parse("2006-01-02", req.DocDate)
	if err != nil {
		return Document{}, errors.New("invalid doc_date")
	}
	landedCost, err := parseDecimal(req.LandedCost)
	if err != nil {
		return Document{}, errors.New("invalid landed_cost")
	}
	tolerance, err := parseDecimal(req.ToleranceQty)
	if err != nil {
		return Document{}, errors.New("invalid tolerance_qty")
	}
	doc := Document{
		Scope:           shared.Scope{CompanyID: req.CompanyID, BranchID: req.BranchID},
		Type:            DocType(req.Type),
		Series:          req.Series,
		DocDate:         docDate,
		WarehouseID:     req.WarehouseID,
		DestWarehouseID: req.DestWarehouseID,
		LandedCost:      landedCost,
		ToleranceQty:    tolerance,
		Note:            req.Note,
	}
	for _, lr := range req.Lines {
		qty, err := parseDecimal(lr.Qty)
		if err != nil {
			return Document{}, errors.New("invalid line qty")
		}
		unitCost, err := parseDecimal(lr.UnitCost)
		if err != nil {
			return Document{}, errors.New("invalid line unit_cost")
		}
		counted, err := parseDecimal(lr.CountedQty)
		if err != nil {
			return Document{}, errors.New("invalid line counted_qty")
		}
		doc.Lines = append(doc.Lines, Line{
			ItemID:         lr.ItemID,
			LocationID:     lr.LocationID,
			DestLocationID: lr.DestLocationID,
			LotID:          lr.LotID,
			SerialID:       lr.SerialID,
			Qty:            qty,
			UnitCost:       unitCost,
			CountedQty:     counted,
		})
	}
	return doc, nil
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	doc, err := h.decodeDocument(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.Create(r.Context(), doc)
	if err != nil {
		h.respondError(w, err, "could not create document")
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	scope, id, err := scopeAndID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	doc, err := h.service.Get(r.Context(), scope, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "document not found")
			return
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scope := shared.Scope{
		CompanyID: parseInt64(q.Get("company_id")),
		BranchID:  parseInt64(q.Get("branch_id")),
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	docs, err := h.service.List(r.Context(), scope, DocType(q.Get("type")), Status(q.Get("status")), limit, offset)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, docs)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	doc, err := h.decodeDocument(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	doc.ID = id
	updated, err := h.service.Update(r.Context(), doc)
	if err != nil {
		h.respondError(w, err, "could not update document")
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) respondError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "document not found")
	case errors.Is(err, ErrNotDraft):
		httpx.Problem(w, http.StatusConflict, "Conflict", "document is not a draft")
	case errors.Is(err, ErrNoLines), errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("document operation failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	}
}

func scopeAndID(r *http.Request) (shared.Scope, int64, error) {
	q := r.URL.Query()
	scope := shared.Scope{
		CompanyID: parseInt64(q.Get("company_id")),
		BranchID:  parseInt64(q.Get("branch_id")),
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return scope, 0, errors.New("invalid id")
	}
	return scope, id, nil
}

func parseInt64(raw string) int64 {
	id, _ := strconv.ParseInt(raw, 10, 64)
	return id
}
