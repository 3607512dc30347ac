package locks

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-wms/meridian/internal/platform/httpx"
	"github.com/meridian-wms/meridian/internal/shared"
)

// Handler exposes period and document lock endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the locks handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers lock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/periods/lock", h.handleLockPeriod)
	r.Post("/periods/reopen", h.handleReopenPeriod)
	r.Get("/periods", h.handleGetPeriod)
	r.Post("/documents/{id}/lock", h.handleLockDocument)
	r.Delete("/documents/{id}/lock", h.handleUnlockDocument)
}

type periodRequest struct {
	CompanyID int64 `json:"company_id" validate:"required,gt=0"`
	BranchID  int64 `json:"branch_id" validate:"required,gt=0"`
	Year      int   `json:"year" validate:"required,gte=2000,lte=2200"`
	Month     int   `json:"month" validate:"required,gte=1,lte=12"`
	Override  bool  `json:"override"`
}

func (h *Handler) decodePeriod(r *http.Request) (periodRequest, error) {
	var req periodRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return req, errors.New("invalid json body")
	}
	if err := h.validate.Struct(req); err != nil {
		return req, err
	}
	return req, nil
}

func (h *Handler) handleLockPeriod(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodePeriod(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	period, err := h.service.LockPeriod(r.Context(), shared.Scope{CompanyID: req.CompanyID, BranchID: req.BranchID}, req.Year, req.Month)
	if err != nil {
		if errors.Is(err, ErrAlreadyLocked) {
			httpx.Problem(w, http.StatusConflict, "Conflict", "period already locked")
			return
		}
		h.logger.Error("lock period failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}

func (h *Handler) handleReopenPeriod(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodePeriod(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	period, err := h.service.ReopenPeriod(r.Context(), shared.Scope{CompanyID: req.CompanyID, BranchID: req.BranchID}, req.Year, req.Month, req.Override)
	if err != nil {
		if errors.Is(err, ErrNotLocked) {
			httpx.Problem(w, http.StatusConflict, "Conflict", "period is not locked")
			return
		}
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}

func (h *Handler) handleGetPeriod(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scope := shared.Scope{
		CompanyID: parseInt64(q.Get("company_id")),
		BranchID:  parseInt64(q.Get("branch_id")),
	}
	year, _ := strconv.Atoi(q.Get("year"))
	month, _ := strconv.Atoi(q.Get("month"))
	period, err := h.service.GetPeriod(r.Context(), scope, year, month)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}

type docLockRequest struct {
	Reason string `json:"reason" validate:"max=255"`
}

func (h *Handler) handleLockDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	var req docLockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid json body")
		return
	}
	lock, err := h.service.LockDocument(r.Context(), id, req.Reason)
	if err != nil {
		if errors.Is(err, ErrAlreadyLocked) {
			httpx.Problem(w, http.StatusConflict, "Conflict", "document already locked")
			return
		}
		h.logger.Error("lock document failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusCreated, lock)
}

func (h *Handler) handleUnlockDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	if err := h.service.UnlockDocument(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotLocked) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "document is not locked")
			return
		}
		h.logger.Error("unlock document failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseInt64(raw string) int64 {
	id, _ := strconv.ParseInt(raw, 10, 64)
	return id
}
