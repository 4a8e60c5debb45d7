package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/farmflow/farmflow-backend/internal/inventory/service"
	"github.com/farmflow/farmflow-backend/pkg/httputil"
	"github.com/farmflow/farmflow-backend/pkg/logger"
)

// AllocationHandler handles allocation preview and commit endpoints
type AllocationHandler struct {
	service *service.AllocationService
	logger  *logger.Logger
}

// NewAllocationHandler creates a new allocation handler
func NewAllocationHandler(svc *service.AllocationService, log *logger.Logger) *AllocationHandler {
	return &AllocationHandler{
		service: svc,
		logger:  log,
	}
}

// Preview builds a FEFO allocation plan without touching stock
func (h *AllocationHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"product_id" validate:"required,uuid"`
		Quantity  int    `json:"quantity" validate:"required,gt=0"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	plan, err := h.service.Allocate(r.Context(), req.ProductID, req.Quantity)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, plan)
}

// Commit applies a previously previewed allocation plan
func (h *AllocationHandler) Commit(w http.ResponseWriter, r *http.Request) {
	var plan service.AllocationPlan
	if err := httputil.DecodeJSON(r, &plan); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&plan); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.Commit(r.Context(), &plan); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{
		"plan_id": plan.PlanID,
		"status":  "committed",
	})
}

// Get returns the journal rows of a committed plan
func (h *AllocationHandler) Get(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "planID")

	allocs, err := h.service.GetCommitted(r.Context(), planID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, allocs)
}
