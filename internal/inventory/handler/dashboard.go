package handler

import (
	"net/http"

	"github.com/farmflow/farmflow-backend/internal/inventory/service"
	"github.com/farmflow/farmflow-backend/pkg/httputil"
	"github.com/farmflow/farmflow-backend/pkg/logger"
)

// DashboardHandler handles the warehouse overview endpoint
type DashboardHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(svc *service.InventoryService, log *logger.Logger) *DashboardHandler {
	return &DashboardHandler{
		service: svc,
		logger:  log,
	}
}

// GetStats returns the warehouse expiry overview
func (h *DashboardHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Dashboard(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, stats)
}
