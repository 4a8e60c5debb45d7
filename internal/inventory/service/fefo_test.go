package service

import (
	"context"
	"sort"
	"time"

	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmflow/farmflow-backend/internal/inventory/events"
	"github.com/farmflow/farmflow-backend/internal/inventory/repository"
	"github.com/farmflow/farmflow-backend/pkg/errors"
	"github.com/farmflow/farmflow-backend/pkg/logger"
	"github.com/farmflow/farmflow-backend/pkg/messaging"
	"github.com/farmflow/farmflow-backend/pkg/testutil"
)

type fakeProductStore struct {
	ids map[string]bool
}

func (f *fakeProductStore) Exists(_ context.Context, id string) (bool, error) {
	return f.ids[id], nil
}

type fakeLotStore struct {
	lots []*repository.Lot
}

func (f *fakeLotStore) GetByID(_ context.Context, id string) (*repository.Lot, error) {
	for _, lot := range f.lots {
		if lot.ID == id {
			return lot, nil
		}
	}
	return nil, errors.NotFound("lot")
}

func (f *fakeLotStore) ListActiveFEFO(_ context.Context, productID string, asOf time.Time) ([]*repository.Lot, error) {
	var active []*repository.Lot
	for _, lot := range f.lots {
		if lot.ProductID == productID && lot.RemainingQuantity > 0 && !lot.ExpiryDate.Before(asOf) {
			active = append(active, lot)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if !active[i].ExpiryDate.Equal(active[j].ExpiryDate) {
			return active[i].ExpiryDate.Before(active[j].ExpiryDate)
		}
		return active[i].ID < active[j].ID
	})
	return active, nil
}

func (f *fakeLotStore) ExpiredQuantity(_ context.Context, productID string, asOf time.Time) (int, error) {
	total := 0
	for _, lot := range f.lots {
		if lot.ProductID == productID && lot.RemainingQuantity > 0 && lot.ExpiryDate.Before(asOf) {
			total += lot.RemainingQuantity
		}
	}
	return total, nil
}

func (f *fakeLotStore) GetForUpdateTx(ctx context.Context, _ *sqlx.Tx, id string) (*repository.Lot, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeLotStore) DeductTx(_ context.Context, _ *sqlx.Tx, id string, quantity int) error {
	for _, lot := range f.lots {
		if lot.ID == id {
			lot.RemainingQuantity -= quantity
			if lot.RemainingQuantity < 0 {
				lot.RemainingQuantity = 0
			}
			return nil
		}
	}
	return errors.NotFound("lot")
}

func (f *fakeLotStore) Transaction(_ context.Context, fn func(*sqlx.Tx) error) error {
	return fn(nil)
}

func (f *fakeLotStore) ListWithStock(_ context.Context) ([]*repository.Lot, error) {
	var withStock []*repository.Lot
	for _, lot := range f.lots {
		if lot.RemainingQuantity > 0 {
			withStock = append(withStock, lot)
		}
	}
	return withStock, nil
}

type fakeAllocStore struct {
	journal map[string]map[string]int
}

func newFakeAllocStore() *fakeAllocStore {
	return &fakeAllocStore{journal: map[string]map[string]int{}}
}

func (f *fakeAllocStore) InsertTx(_ context.Context, _ *sqlx.Tx, alloc *repository.LotAllocation) error {
	plan, ok := f.journal[alloc.PlanID]
	if !ok {
		plan = map[string]int{}
		f.journal[alloc.PlanID] = plan
	}
	if _, dup := plan[alloc.LotID]; dup {
		return errors.Conflict("this allocation plan has already been committed")
	}
	plan[alloc.LotID] = alloc.Quantity
	return nil
}

func (f *fakeAllocStore) PlanExists(_ context.Context, planID string) (bool, error) {
	_, ok := f.journal[planID]
	return ok, nil
}

func (f *fakeAllocStore) ListByPlan(_ context.Context, planID string) ([]*repository.LotAllocation, error) {
	var allocs []*repository.LotAllocation
	for lotID, qty := range f.journal[planID] {
		allocs = append(allocs, &repository.LotAllocation{PlanID: planID, LotID: lotID, Quantity: qty})
	}
	return allocs, nil
}

const (
	testProductID = "7f1d2c3a-9b4e-4f1a-8c6d-0123456789ab"
	testStockID   = "2a9e8f7c-1b3d-4e5f-a6c7-fedcba987654"
)

func testNow() time.Time {
	return time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
}

func testLot(id, lotNumber string, remaining, daysOut int) *repository.Lot {
	expiry := testNow().AddDate(0, 0, daysOut)
	return &repository.Lot{
		ID:                id,
		ProductID:         testProductID,
		StockID:           testStockID,
		LotNumber:         lotNumber,
		InitialQuantity:   remaining,
		RemainingQuantity: remaining,
		ManufactureDate:   expiry.AddDate(0, 0, -120),
		ExpiryDate:        time.Date(expiry.Year(), expiry.Month(), expiry.Day(), 0, 0, 0, 0, time.UTC),
	}
}

func newAllocationFixture(lots ...*repository.Lot) (*AllocationService, *fakeLotStore, *fakeAllocStore, *testutil.MockPublisher) {
	log := logger.New("inventory-test", "test")
	mockPub := testutil.NewMockPublisher()
	publisher := events.NewWithPublisher(mockPub, log)

	lotStore := &fakeLotStore{lots: lots}
	allocStore := newFakeAllocStore()
	products := &fakeProductStore{ids: map[string]bool{testProductID: true}}

	svc := NewAllocationService(products, lotStore, allocStore, publisher, log)
	svc.now = testNow

	return svc, lotStore, allocStore, mockPub
}

func TestAllocateFEFOOrder(t *testing.T) {
	svc, _, _, _ := newAllocationFixture(
		testLot("lot-2", "MLK-2025-044", 20, 50),
		testLot("lot-1", "MLK-2025-031", 5, 10),
	)

	plan, err := svc.Allocate(context.Background(), testProductID, 12)
	require.NoError(t, err)

	require.Len(t, plan.Lines, 2)
	assert.Equal(t, "lot-1", plan.Lines[0].LotID)
	assert.Equal(t, 5, plan.Lines[0].Quantity)
	assert.Equal(t, "lot-2", plan.Lines[1].LotID)
	assert.Equal(t, 7, plan.Lines[1].Quantity)
	assert.Equal(t, 12, plan.Requested)
	assert.NotEmpty(t, plan.PlanID)
}

func TestAllocateTieBreakByID(t *testing.T) {
	svc, _, _, _ := newAllocationFixture(
		testLot("lot-b", "EGG-2025-002", 10, 20),
		testLot("lot-a", "EGG-2025-001", 10, 20),
	)

	plan, err := svc.Allocate(context.Background(), testProductID, 15)
	require.NoError(t, err)

	require.Len(t, plan.Lines, 2)
	assert.Equal(t, "lot-a", plan.Lines[0].LotID)
	assert.Equal(t, 10, plan.Lines[0].Quantity)
	assert.Equal(t, "lot-b", plan.Lines[1].LotID)
	assert.Equal(t, 5, plan.Lines[1].Quantity)
}

func TestAllocateExactFit(t *testing.T) {
	svc, _, _, _ := newAllocationFixture(
		testLot("lot-1", "CHE-2025-007", 8, 15),
	)

	plan, err := svc.Allocate(context.Background(), testProductID, 8)
	require.NoError(t, err)

	require.Len(t, plan.Lines, 1)
	assert.Equal(t, 8, plan.Lines[0].Quantity)
}

func TestAllocateLotExpiringTodayIsUsable(t *testing.T) {
	svc, _, _, _ := newAllocationFixture(
		testLot("lot-1", "YOG-2025-012", 4, 0),
	)

	plan, err := svc.Allocate(context.Background(), testProductID, 3)
	require.NoError(t, err)
	assert.Equal(t, "lot-1", plan.Lines[0].LotID)
}

func TestAllocateSanitaryHold(t *testing.T) {
	svc, _, _, _ := newAllocationFixture(
		testLot("lot-old", "MLK-2025-009", 3, -5),
		testLot("lot-new", "MLK-2025-031", 100, 40),
	)

	_, err := svc.Allocate(context.Background(), testProductID, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSanitaryHold))

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "SANITARY_HOLD", appErr.Code)
	assert.Equal(t, "3", appErr.Details["expired_quantity"])
}

func TestAllocateInsufficientStock(t *testing.T) {
	svc, _, _, _ := newAllocationFixture(
		testLot("lot-1", "MLK-2025-031", 5, 10),
	)

	_, err := svc.Allocate(context.Background(), testProductID, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "5", appErr.Details["available"])
	assert.Equal(t, "10", appErr.Details["requested"])
}

func TestAllocateDrainedLotsAreSkipped(t *testing.T) {
	drained := testLot("lot-0", "MLK-2025-001", 10, 5)
	drained.RemainingQuantity = 0

	svc, _, _, _ := newAllocationFixture(
		drained,
		testLot("lot-1", "MLK-2025-031", 6, 10),
	)

	plan, err := svc.Allocate(context.Background(), testProductID, 6)
	require.NoError(t, err)
	require.Len(t, plan.Lines, 1)
	assert.Equal(t, "lot-1", plan.Lines[0].LotID)
}

func TestAllocateInvalidQuantity(t *testing.T) {
	svc, _, _, _ := newAllocationFixture()

	_, err := svc.Allocate(context.Background(), testProductID, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))

	_, err = svc.Allocate(context.Background(), testProductID, -4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}

func TestAllocateUnknownProduct(t *testing.T) {
	svc, _, _, _ := newAllocationFixture()

	_, err := svc.Allocate(context.Background(), "0e0e0e0e-0e0e-4e0e-8e0e-0e0e0e0e0e0e", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestCommitDeductsAndJournals(t *testing.T) {
	svc, lotStore, allocStore, mockPub := newAllocationFixture(
		testLot("lot-1", "MLK-2025-031", 5, 10),
		testLot("lot-2", "MLK-2025-044", 20, 50),
	)

	plan, err := svc.Allocate(context.Background(), testProductID, 12)
	require.NoError(t, err)

	require.NoError(t, svc.Commit(context.Background(), plan))

	lot1, _ := lotStore.GetByID(context.Background(), "lot-1")
	lot2, _ := lotStore.GetByID(context.Background(), "lot-2")
	assert.Equal(t, 0, lot1.RemainingQuantity)
	assert.Equal(t, 13, lot2.RemainingQuantity)

	journal, err := allocStore.ListByPlan(context.Background(), plan.PlanID)
	require.NoError(t, err)
	assert.Len(t, journal, 2)

	mockPub.AssertEventPublished(t, messaging.EventStockDeducted)
}

func TestCommitTwiceIsRejected(t *testing.T) {
	svc, _, _, _ := newAllocationFixture(
		testLot("lot-1", "MLK-2025-031", 10, 10),
	)

	plan, err := svc.Allocate(context.Background(), testProductID, 4)
	require.NoError(t, err)

	require.NoError(t, svc.Commit(context.Background(), plan))

	err = svc.Commit(context.Background(), plan)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCommitConflict))
}

func TestCommitStalePlanIsRejected(t *testing.T) {
	svc, lotStore, _, mockPub := newAllocationFixture(
		testLot("lot-1", "MLK-2025-031", 10, 10),
	)

	plan, err := svc.Allocate(context.Background(), testProductID, 8)
	require.NoError(t, err)

	// Another order drains the lot before this plan lands.
	require.NoError(t, lotStore.DeductTx(context.Background(), nil, "lot-1", 7))

	err = svc.Commit(context.Background(), plan)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
	mockPub.AssertNoEventsPublished(t)
}

func TestCommitEmptyPlan(t *testing.T) {
	svc, _, _, _ := newAllocationFixture()

	err := svc.Commit(context.Background(), &AllocationPlan{PlanID: "p1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))

	err = svc.Commit(context.Background(), nil)
	require.Error(t, err)
}

func TestGetCommitted(t *testing.T) {
	svc, _, _, _ := newAllocationFixture(
		testLot("lot-1", "MLK-2025-031", 10, 10),
	)

	plan, err := svc.Allocate(context.Background(), testProductID, 4)
	require.NoError(t, err)
	require.NoError(t, svc.Commit(context.Background(), plan))

	journal, err := svc.GetCommitted(context.Background(), plan.PlanID)
	require.NoError(t, err)
	assert.Len(t, journal, 1)

	_, err = svc.GetCommitted(context.Background(), "missing-plan")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
