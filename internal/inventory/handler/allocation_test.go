package handler_test

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmflow/farmflow-backend/internal/inventory/events"
	"github.com/farmflow/farmflow-backend/internal/inventory/handler"
	"github.com/farmflow/farmflow-backend/internal/inventory/repository"
	"github.com/farmflow/farmflow-backend/internal/inventory/service"
	"github.com/farmflow/farmflow-backend/pkg/logger"
	"github.com/farmflow/farmflow-backend/pkg/messaging"
	"github.com/farmflow/farmflow-backend/pkg/testutil"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()

	var err error
	suite, err = testutil.NewIntegrationSuite(ctx)
	if err != nil {
		log.Fatalf("failed to create integration suite: %v", err)
	}
	defer testutil.TerminateContainer(ctx)

	os.Exit(m.Run())
}

// newTestRouter wires the allocation routes the way the service binary does.
func newTestRouter() (chi.Router, *testutil.MockPublisher) {
	testLogger := logger.New("inventory-test", "test")
	pub := testutil.NewMockPublisher()
	publisher := events.NewWithPublisher(pub, testLogger)

	productRepo := repository.NewProductRepository(suite.DB)
	lotRepo := repository.NewLotRepository(suite.DB)
	allocationRepo := repository.NewAllocationRepository(suite.DB)

	svc := service.NewAllocationService(productRepo, lotRepo, allocationRepo, publisher, testLogger)
	h := handler.NewAllocationHandler(svc, testLogger)

	r := chi.NewRouter()
	r.Post("/allocations/preview", h.Preview)
	r.Post("/allocations/commit", h.Commit)
	r.Get("/allocations/{planID}", h.Get)
	return r, pub
}

// seedProduct creates a product with one stock location.
func seedProduct(t *testing.T, ctx context.Context, name string) (*repository.Product, *repository.Stock) {
	t.Helper()
	productRepo := repository.NewProductRepository(suite.DB)

	product := &repository.Product{
		Name:      name,
		SKU:       testutil.UniqueName("SKU"),
		Category:  "dairy",
		Unit:      "liter",
		UnitPrice: decimal.NewFromFloat(1.89),
	}
	require.NoError(t, productRepo.Create(ctx, product))

	stock := &repository.Stock{
		ProductID: product.ID,
		Location:  "cold-room-1",
	}
	require.NoError(t, productRepo.CreateStock(ctx, stock))

	return product, stock
}

// seedLot creates a lot expiring the given number of days from now.
func seedLot(t *testing.T, ctx context.Context, product *repository.Product, stock *repository.Stock, lotNumber string, quantity, daysOut int) *repository.Lot {
	t.Helper()
	lotRepo := repository.NewLotRepository(suite.DB)

	expiry := time.Now().UTC().AddDate(0, 0, daysOut)
	lot := &repository.Lot{
		ProductID:         product.ID,
		StockID:           stock.ID,
		LotNumber:         lotNumber,
		InitialQuantity:   quantity,
		RemainingQuantity: quantity,
		ManufactureDate:   expiry.AddDate(0, 0, -120),
		ExpiryDate:        expiry,
	}
	require.NoError(t, lotRepo.Create(ctx, lot))
	return lot
}

type envelope struct {
	Success bool `json:"success"`
	Data    struct {
		PlanID    string `json:"plan_id"`
		ProductID string `json:"product_id"`
		Requested int    `json:"requested"`
		Lines     []struct {
			LotID     string `json:"lot_id"`
			LotNumber string `json:"lot_number"`
			Quantity  int    `json:"quantity"`
		} `json:"lines"`
	} `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func TestAllocationEndpoints_PreviewCommitGet(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.ResetInventory(t, ctx)

	product, stock := seedProduct(t, ctx, "Whole Milk 1L")
	early := seedLot(t, ctx, product, stock, "MILK-001", 5, 10)
	late := seedLot(t, ctx, product, stock, "MILK-002", 20, 40)

	router, pub := newTestRouter()

	// Preview picks the soonest-expiring lot first
	req := testutil.NewHTTPRequest("POST", "/allocations/preview", map[string]interface{}{
		"product_id": product.ID,
		"quantity":   12,
	})
	rr := testutil.ExecuteRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusOK)

	var preview envelope
	testutil.ParseJSONBody(t, rr, &preview)
	require.Len(t, preview.Data.Lines, 2)
	assert.Equal(t, early.ID, preview.Data.Lines[0].LotID)
	assert.Equal(t, 5, preview.Data.Lines[0].Quantity)
	assert.Equal(t, late.ID, preview.Data.Lines[1].LotID)
	assert.Equal(t, 7, preview.Data.Lines[1].Quantity)

	// Preview alone must not move stock
	lotRepo := repository.NewLotRepository(suite.DB)
	unchanged, err := lotRepo.GetByID(ctx, early.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, unchanged.RemainingQuantity)

	// Commit the plan as returned
	req = testutil.NewHTTPRequest("POST", "/allocations/commit", rawPlan(t, rr))
	rr = testutil.ExecuteRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusOK)

	deducted, err := lotRepo.GetByID(ctx, early.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, deducted.RemainingQuantity)

	deducted, err = lotRepo.GetByID(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, 13, deducted.RemainingQuantity)

	pub.AssertEventPublished(t, messaging.EventStockDeducted)

	// Journal is readable back by plan ID
	req = testutil.NewHTTPRequest("GET", fmt.Sprintf("/allocations/%s", preview.Data.PlanID), nil)
	rr = testutil.ExecuteRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertBodyContains(t, rr, preview.Data.PlanID)
}

func TestAllocationEndpoints_CommitReplayRejected(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.ResetInventory(t, ctx)

	product, stock := seedProduct(t, ctx, "Greek Yogurt 500g")
	seedLot(t, ctx, product, stock, "YOG-001", 30, 25)

	router, _ := newTestRouter()

	req := testutil.NewHTTPRequest("POST", "/allocations/preview", map[string]interface{}{
		"product_id": product.ID,
		"quantity":   10,
	})
	rr := testutil.ExecuteRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusOK)
	plan := rawPlan(t, rr)

	req = testutil.NewHTTPRequest("POST", "/allocations/commit", plan)
	rr = testutil.ExecuteRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusOK)

	req = testutil.NewHTTPRequest("POST", "/allocations/commit", plan)
	rr = testutil.ExecuteRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusConflict)

	var resp envelope
	testutil.ParseJSONBody(t, rr, &resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "COMMIT_CONFLICT", resp.Error.Code)
}

func TestAllocationEndpoints_SanitaryHold(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.ResetInventory(t, ctx)

	product, stock := seedProduct(t, ctx, "Baby Spinach 200g")
	seedLot(t, ctx, product, stock, "SPN-001", 4, -2)
	seedLot(t, ctx, product, stock, "SPN-002", 50, 15)

	router, _ := newTestRouter()

	req := testutil.NewHTTPRequest("POST", "/allocations/preview", map[string]interface{}{
		"product_id": product.ID,
		"quantity":   10,
	})
	rr := testutil.ExecuteRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusConflict)

	var resp envelope
	testutil.ParseJSONBody(t, rr, &resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "SANITARY_HOLD", resp.Error.Code)
	assert.Equal(t, "4", resp.Error.Details["expired_quantity"])
}

func TestAllocationEndpoints_InsufficientStock(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.ResetInventory(t, ctx)

	product, stock := seedProduct(t, ctx, "Strawberries 250g")
	seedLot(t, ctx, product, stock, "STR-001", 6, 5)

	router, _ := newTestRouter()

	req := testutil.NewHTTPRequest("POST", "/allocations/preview", map[string]interface{}{
		"product_id": product.ID,
		"quantity":   10,
	})
	rr := testutil.ExecuteRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusConflict)

	var resp envelope
	testutil.ParseJSONBody(t, rr, &resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INSUFFICIENT_STOCK", resp.Error.Code)
	assert.Equal(t, "6", resp.Error.Details["available"])
	assert.Equal(t, "10", resp.Error.Details["requested"])
}

func TestAllocationEndpoints_PreviewValidation(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.ResetInventory(t, ctx)

	router, _ := newTestRouter()

	req := testutil.NewHTTPRequest("POST", "/allocations/preview", map[string]interface{}{
		"product_id": "not-a-uuid",
		"quantity":   0,
	})
	rr := testutil.ExecuteRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}

// rawPlan re-decodes a preview response into the commit payload shape.
func rawPlan(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp struct {
		Data map[string]interface{} `json:"data"`
	}
	testutil.ParseJSONBody(t, rr, &resp)
	require.NotEmpty(t, resp.Data)
	return resp.Data
}
