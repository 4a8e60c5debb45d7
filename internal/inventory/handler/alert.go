package handler

import (
	"net/http"
	"strconv"

	"github.com/farmflow/farmflow-backend/internal/inventory/repository"
	"github.com/farmflow/farmflow-backend/internal/inventory/service"
	"github.com/farmflow/farmflow-backend/pkg/httputil"
	"github.com/farmflow/farmflow-backend/pkg/logger"
)

// AlertHandler handles expiry alert endpoints
type AlertHandler struct {
	alertRepo *repository.AlertRepository
	scanner   *service.AlertScanner
	logger    *logger.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(alertRepo *repository.AlertRepository, scanner *service.AlertScanner, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		alertRepo: alertRepo,
		scanner:   scanner,
		logger:    log,
	}
}

// List lists active alerts, optionally filtered by tier and product
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	tier := r.URL.Query().Get("tier")
	productID := r.URL.Query().Get("product_id")

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	alerts, total, err := h.alertRepo.List(r.Context(), tier, productID, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}

	httputil.JSONWithMeta(w, http.StatusOK, alerts, &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

// Scan triggers an expiry scan on demand
func (h *AlertHandler) Scan(w http.ResponseWriter, r *http.Request) {
	stats, err := h.scanner.Scan(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, stats)
}

// Cleanup triggers the recovered-lot cleanup on demand
func (h *AlertHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	cleared, err := h.scanner.Cleanup(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]int{"cleared": cleared})
}
