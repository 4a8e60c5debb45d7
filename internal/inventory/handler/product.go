package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/farmflow/farmflow-backend/internal/inventory/repository"
	"github.com/farmflow/farmflow-backend/internal/inventory/service"
	"github.com/farmflow/farmflow-backend/pkg/httputil"
	"github.com/farmflow/farmflow-backend/pkg/logger"
)

// ProductHandler handles product and stock endpoints
type ProductHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewProductHandler creates a new product handler
func NewProductHandler(svc *service.InventoryService, log *logger.Logger) *ProductHandler {
	return &ProductHandler{
		service: svc,
		logger:  log,
	}
}

// List lists all products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, products)
}

// Get gets a product by ID
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, product)
}

// Create creates a new product
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string          `json:"name" validate:"required"`
		SKU       string          `json:"sku" validate:"required"`
		Category  string          `json:"category"`
		Unit      string          `json:"unit"`
		UnitPrice decimal.Decimal `json:"unit_price"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	product := &repository.Product{
		Name:      req.Name,
		SKU:       req.SKU,
		Category:  req.Category,
		Unit:      req.Unit,
		UnitPrice: req.UnitPrice,
	}
	if product.Category == "" {
		product.Category = "produce"
	}
	if product.Unit == "" {
		product.Unit = "unit"
	}

	if err := h.service.CreateProduct(r.Context(), product); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, product)
}

// ListStocks lists a product's stock locations
func (h *ProductHandler) ListStocks(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")

	stocks, err := h.service.ListStocks(r.Context(), productID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, stocks)
}

// CreateStock creates a stock location for a product
func (h *ProductHandler) CreateStock(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")

	var req struct {
		Location string `json:"location" validate:"required"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	stock := &repository.Stock{
		ProductID: productID,
		Location:  req.Location,
	}

	if err := h.service.CreateStock(r.Context(), stock); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, stock)
}
