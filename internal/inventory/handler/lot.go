package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/farmflow/farmflow-backend/internal/inventory/repository"
	"github.com/farmflow/farmflow-backend/internal/inventory/service"
	"github.com/farmflow/farmflow-backend/pkg/errors"
	"github.com/farmflow/farmflow-backend/pkg/httputil"
	"github.com/farmflow/farmflow-backend/pkg/logger"
)

// LotHandler handles lot endpoints
type LotHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewLotHandler creates a new lot handler
func NewLotHandler(svc *service.InventoryService, log *logger.Logger) *LotHandler {
	return &LotHandler{
		service: svc,
		logger:  log,
	}
}

// ListByProduct lists a product's lots in expiry order
func (h *LotHandler) ListByProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	activeOnly := r.URL.Query().Get("active") == "true"

	lots, err := h.service.ListLots(r.Context(), productID, activeOnly)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lots)
}

// Get gets a lot with its expiry classification
func (h *LotHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	lot, err := h.service.GetLot(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lot)
}

// Create receives a new lot for a product
func (h *LotHandler) Create(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")

	var req struct {
		StockID         string `json:"stock_id" validate:"required,uuid"`
		LotNumber       string `json:"lot_number" validate:"required"`
		Quantity        int    `json:"quantity" validate:"required,gt=0"`
		ManufactureDate string `json:"manufacture_date" validate:"required"`
		ExpiryDate      string `json:"expiry_date" validate:"required"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	manufactureDate, err := time.Parse("2006-01-02", req.ManufactureDate)
	if err != nil {
		httputil.Error(w, errors.Validation(map[string]string{
			"manufacture_date": "must be a date in YYYY-MM-DD format",
		}))
		return
	}
	expiryDate, err := time.Parse("2006-01-02", req.ExpiryDate)
	if err != nil {
		httputil.Error(w, errors.Validation(map[string]string{
			"expiry_date": "must be a date in YYYY-MM-DD format",
		}))
		return
	}

	lot := &repository.Lot{
		ProductID:       productID,
		StockID:         req.StockID,
		LotNumber:       req.LotNumber,
		InitialQuantity: req.Quantity,
		ManufactureDate: manufactureDate,
		ExpiryDate:      expiryDate,
	}

	if err := h.service.CreateLot(r.Context(), lot); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, lot)
}

// Adjust corrects a lot's remaining quantity after a stocktake
func (h *LotHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Quantity int `json:"quantity" validate:"min=0"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	lot, err := h.service.AdjustLot(r.Context(), id, req.Quantity)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lot)
}

// Delete removes a lot from the warehouse
func (h *LotHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteLot(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
