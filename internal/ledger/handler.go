package ledger

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-wms/meridian/internal/platform/httpx"
	"github.com/meridian-wms/meridian/internal/shared"
)

// Handler wires HTTP endpoints for ledger reads.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/on-hand", h.handleOnHand)
	r.Get("/card", h.handleStockCard)
}

type onHandResponse struct {
	Qty string `json:"qty"`
}

func (h *Handler) handleOnHand(w http.ResponseWriter, r *http.Request) {
	key, err := parseStockKey(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	qty, err := h.service.OnHand(r.Context(), key)
	if err != nil {
		h.logger.Error("on-hand query", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, onHandResponse{Qty: qty.String()})
}

type cardEntryResponse struct {
	ID        int64  `json:"id"`
	TxnDate   string `json:"txn_date"`
	Qty       string `json:"qty"`
	Direction string `json:"direction"`
	Cost      string `json:"cost"`
	DocID     int64  `json:"doc_id"`
}

func (h *Handler) handleStockCard(w http.ResponseWriter, r *http.Request) {
	key, err := parseStockKey(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	q := r.URL.Query()
	filter := CardFilter{
		Scope:       key.Scope,
		WarehouseID: key.WarehouseID,
		LocationID:  key.LocationID,
		ItemID:      key.ItemID,
	}
	if from := q.Get("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid from date")
			return
		}
		filter.From = t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid to date")
			return
		}
		filter.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}

	entries, err := h.service.StockCard(r.Context(), filter)
	if err != nil {
		h.logger.Error("stock card query", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]cardEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, cardEntryResponse{
			ID:        e.ID,
			TxnDate:   e.TxnDate.Format(time.RFC3339),
			Qty:       e.Qty.String(),
			Direction: string(e.Direction),
			Cost:      e.Cost.String(),
			DocID:     e.DocID,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func parseStockKey(r *http.Request) (StockKey, error) {
	q := r.URL.Query()
	key := StockKey{
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
	return key, key.Validate()
}

func parseID(raw string) int64 {
	id, _ := strconv.ParseInt(raw, 10, 64)
	return id
}
