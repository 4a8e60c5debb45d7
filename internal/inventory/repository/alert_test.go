package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmflow/farmflow-backend/internal/inventory/repository"
	"github.com/farmflow/farmflow-backend/pkg/errors"
	"github.com/farmflow/farmflow-backend/pkg/testutil"
)

func createTestAlert(t *testing.T, ctx context.Context, lotID, tier string, days int) *repository.ExpiryAlert {
	t.Helper()
	alertRepo := repository.NewAlertRepository(suite.DB)

	alert := &repository.ExpiryAlert{
		LotID:           lotID,
		Tier:            tier,
		DaysUntilExpiry: days,
	}
	require.NoError(t, alertRepo.Create(ctx, alert))
	return alert
}

func TestAlertRepository_CreateAndExists(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.ResetInventory(t, ctx)

	product, stock := createTestProduct(t, ctx, "Goat Cheese")
	lot := createTestLot(t, ctx, product.ID, stock.ID, "CHE-2025-007", 10, 25)

	alert := createTestAlert(t, ctx, lot.ID, "CRITICAL", 25)
	assert.NotEmpty(t, alert.ID)
	assert.False(t, alert.CreatedAt.IsZero())

	alertRepo := repository.NewAlertRepository(suite.DB)

	exists, err := alertRepo.ExistsForLotAtTier(ctx, lot.ID, "CRITICAL")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = alertRepo.ExistsForLotAtTier(ctx, lot.ID, "WATCH")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAlertRepository_InvalidTierRejected(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.ResetInventory(t, ctx)

	product, stock := createTestProduct(t, ctx, "Goat Cheese")
	lot := createTestLot(t, ctx, product.ID, stock.ID, "CHE-2025-007", 10, 25)

	alertRepo := repository.NewAlertRepository(suite.DB)
	err := alertRepo.Create(ctx, &repository.ExpiryAlert{
		LotID:           lot.ID,
		Tier:            "URGENT",
		DaysUntilExpiry: 25,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestAlertRepository_DeleteForLot(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.ResetInventory(t, ctx)

	product, stock := createTestProduct(t, ctx, "Goat Cheese")
	lot := createTestLot(t, ctx, product.ID, stock.ID, "CHE-2025-007", 10, 45)
	createTestAlert(t, ctx, lot.ID, "ELEVATED", 45)

	alertRepo := repository.NewAlertRepository(suite.DB)

	deleted, err := alertRepo.DeleteForLot(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	deleted, err = alertRepo.DeleteForLot(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}

func TestAlertRepository_ListFiltersAndOrders(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.ResetInventory(t, ctx)

	product, stock := createTestProduct(t, ctx, "Goat Cheese")
	watchLot := createTestLot(t, ctx, product.ID, stock.ID, "CHE-2025-001", 10, 75)
	expiredLot := createTestLot(t, ctx, product.ID, stock.ID, "CHE-2025-002", 5, -3)
	criticalLot := createTestLot(t, ctx, product.ID, stock.ID, "CHE-2025-003", 8, 12)

	createTestAlert(t, ctx, watchLot.ID, "WATCH", 75)
	createTestAlert(t, ctx, expiredLot.ID, "EXPIRED", -3)
	createTestAlert(t, ctx, criticalLot.ID, "CRITICAL", 12)

	alertRepo := repository.NewAlertRepository(suite.DB)

	alerts, total, err := alertRepo.List(ctx, "", "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, alerts, 3)
	assert.Equal(t, "EXPIRED", alerts[0].Tier)
	assert.Equal(t, "CRITICAL", alerts[1].Tier)
	assert.Equal(t, "WATCH", alerts[2].Tier)
	assert.Equal(t, product.Name, alerts[0].ProductName)

	critical, total, err := alertRepo.List(ctx, "CRITICAL", "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, critical, 1)
	assert.Equal(t, criticalLot.ID, critical[0].LotID)

	byProduct, total, err := alertRepo.List(ctx, "", product.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, byProduct, 2)
}

func TestAlertRepository_CountsAndAtRisk(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.ResetInventory(t, ctx)

	product, stock := createTestProduct(t, ctx, "Goat Cheese")
	watchLot := createTestLot(t, ctx, product.ID, stock.ID, "CHE-2025-001", 10, 75)
	expiredLot := createTestLot(t, ctx, product.ID, stock.ID, "CHE-2025-002", 5, -3)
	criticalLot := createTestLot(t, ctx, product.ID, stock.ID, "CHE-2025-003", 8, 12)

	createTestAlert(t, ctx, watchLot.ID, "WATCH", 75)
	createTestAlert(t, ctx, expiredLot.ID, "EXPIRED", -3)
	createTestAlert(t, ctx, criticalLot.ID, "CRITICAL", 12)

	alertRepo := repository.NewAlertRepository(suite.DB)

	counts, err := alertRepo.CountsByTier(ctx)
	require.NoError(t, err)
	byTier := map[string]int64{}
	for _, c := range counts {
		byTier[c.Tier] = c.Count
	}
	assert.Equal(t, int64(1), byTier["WATCH"])
	assert.Equal(t, int64(1), byTier["CRITICAL"])
	assert.Equal(t, int64(1), byTier["EXPIRED"])

	atRisk, err := alertRepo.AtRiskQuantity(ctx)
	require.NoError(t, err)
	assert.Equal(t, 13, atRisk)
}

func TestAlertRepository_DeleteRecovered(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := context.Background()
	suite.ResetInventory(t, ctx)

	product, stock := createTestProduct(t, ctx, "Goat Cheese")
	recovered := createTestLot(t, ctx, product.ID, stock.ID, "CHE-2025-001", 10, 200)
	urgent := createTestLot(t, ctx, product.ID, stock.ID, "CHE-2025-002", 8, 12)

	// The recovered lot's alert is stale: its expiry was corrected to 200
	// days out after the alert was raised.
	createTestAlert(t, ctx, recovered.ID, "CRITICAL", 12)
	createTestAlert(t, ctx, urgent.ID, "CRITICAL", 12)

	alertRepo := repository.NewAlertRepository(suite.DB)
	horizon := time.Now().UTC().AddDate(0, 0, 90)

	cleared, err := alertRepo.DeleteRecovered(ctx, horizon)
	require.NoError(t, err)
	require.Len(t, cleared, 1)
	assert.Equal(t, recovered.ID, cleared[0].LotID)
	assert.Equal(t, product.ID, cleared[0].ProductID)
	assert.Equal(t, "CRITICAL", cleared[0].Tier)

	exists, err := alertRepo.ExistsForLotAtTier(ctx, urgent.ID, "CRITICAL")
	require.NoError(t, err)
	assert.True(t, exists)
}
