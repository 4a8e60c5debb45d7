package service

import (
	"context"
	"time"

	"github.com/farmflow/farmflow-backend/internal/inventory/events"
	"github.com/farmflow/farmflow-backend/internal/inventory/repository"
	"github.com/farmflow/farmflow-backend/pkg/errors"
	"github.com/farmflow/farmflow-backend/pkg/logger"
)

// LotView is a lot annotated with its current expiry classification
type LotView struct {
	repository.Lot
	Tier            Tier `json:"tier"`
	DaysUntilExpiry int  `json:"days_until_expiry"`
}

// DashboardStats summarizes the warehouse expiry posture
type DashboardStats struct {
	LotsWithStock    int64                       `json:"lots_with_stock"`
	AlertsByTier     map[string]int64            `json:"alerts_by_tier"`
	AtRiskQuantity   int                         `json:"at_risk_quantity"`
	ExpiredQuantity  int                         `json:"expired_quantity"`
	TotalProducts    int                         `json:"total_products"`
	CriticalProducts []*repository.ProductAtRisk `json:"critical_products"`
	GeneratedAt      time.Time                   `json:"generated_at"`
}

// InventoryService handles products, stocks and the lot lifecycle
type InventoryService struct {
	productRepo *repository.ProductRepository
	lotRepo     *repository.LotRepository
	alertRepo   *repository.AlertRepository
	publisher   *events.InventoryEventPublisher
	logger      *logger.Logger
	now         func() time.Time
}

// NewInventoryService creates a new inventory service
func NewInventoryService(
	productRepo *repository.ProductRepository,
	lotRepo *repository.LotRepository,
	alertRepo *repository.AlertRepository,
	publisher *events.InventoryEventPublisher,
	log *logger.Logger,
) *InventoryService {
	return &InventoryService{
		productRepo: productRepo,
		lotRepo:     lotRepo,
		alertRepo:   alertRepo,
		publisher:   publisher,
		logger:      log,
		now:         time.Now,
	}
}

// CreateProduct creates a new product
func (s *InventoryService) CreateProduct(ctx context.Context, product *repository.Product) error {
	if product.Name == "" || product.SKU == "" {
		return errors.Validation(map[string]string{
			"name": "name and sku are required",
		})
	}
	return s.productRepo.Create(ctx, product)
}

// GetProduct gets a product by ID
func (s *InventoryService) GetProduct(ctx context.Context, id string) (*repository.Product, error) {
	return s.productRepo.GetByID(ctx, id)
}

// ListProducts lists all products
func (s *InventoryService) ListProducts(ctx context.Context) ([]*repository.Product, error) {
	return s.productRepo.List(ctx)
}

// CreateStock creates a stock location for a product
func (s *InventoryService) CreateStock(ctx context.Context, stock *repository.Stock) error {
	exists, err := s.productRepo.Exists(ctx, stock.ProductID)
	if err != nil {
		return err
	}
	if !exists {
		return errors.NotFound("product")
	}
	return s.productRepo.CreateStock(ctx, stock)
}

// ListStocks lists stock locations for a product
func (s *InventoryService) ListStocks(ctx context.Context, productID string) ([]*repository.Stock, error) {
	return s.productRepo.ListStocksByProduct(ctx, productID)
}

// CreateLot receives a new lot into the warehouse. The lot starts with
// its full quantity remaining.
func (s *InventoryService) CreateLot(ctx context.Context, lot *repository.Lot) error {
	if lot.InitialQuantity <= 0 {
		return errors.Validation(map[string]string{
			"initial_quantity": "must be positive",
		})
	}
	if lot.ExpiryDate.Before(lot.ManufactureDate) {
		return errors.Validation(map[string]string{
			"manufacture_date": "must not be after the expiry date",
		})
	}

	exists, err := s.productRepo.Exists(ctx, lot.ProductID)
	if err != nil {
		return err
	}
	if !exists {
		return errors.NotFound("product")
	}

	stock, err := s.productRepo.GetStock(ctx, lot.StockID)
	if err != nil {
		return err
	}
	if stock.ProductID != lot.ProductID {
		return errors.BadRequest("stock location belongs to a different product")
	}

	lot.RemainingQuantity = lot.InitialQuantity

	if err := s.lotRepo.Create(ctx, lot); err != nil {
		return err
	}

	s.publisher.PublishLotReceived(ctx, lot)

	s.logger.Info().
		Str("lot_id", lot.ID).
		Str("product_id", lot.ProductID).
		Str("lot_number", lot.LotNumber).
		Int("quantity", lot.InitialQuantity).
		Msg("lot received")

	return nil
}

// GetLot gets a lot with its current classification
func (s *InventoryService) GetLot(ctx context.Context, id string) (*LotView, error) {
	lot, err := s.lotRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.toView(lot), nil
}

// ListLots lists a product's lots in expiry order, each annotated with
// its classification. With activeOnly set, drained and expired lots are
// left out.
func (s *InventoryService) ListLots(ctx context.Context, productID string, activeOnly bool) ([]*LotView, error) {
	exists, err := s.productRepo.Exists(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.NotFound("product")
	}

	var lots []*repository.Lot
	if activeOnly {
		lots, err = s.lotRepo.ListActiveFEFO(ctx, productID, startOfDayUTC(s.now()))
	} else {
		lots, err = s.lotRepo.ListByProduct(ctx, productID)
	}
	if err != nil {
		return nil, err
	}

	views := make([]*LotView, 0, len(lots))
	for _, lot := range lots {
		views = append(views, s.toView(lot))
	}
	return views, nil
}

// AdjustLot sets a lot's remaining quantity to an exact value, the
// correction path for count discrepancies found during stocktakes.
func (s *InventoryService) AdjustLot(ctx context.Context, id string, quantity int) (*LotView, error) {
	lot, err := s.lotRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if quantity < 0 || quantity > lot.InitialQuantity {
		return nil, errors.Validation(map[string]string{
			"quantity": "must be between 0 and the lot's initial quantity",
		})
	}

	if err := s.lotRepo.AdjustRemaining(ctx, id, quantity); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("lot_id", lot.ID).
		Str("lot_number", lot.LotNumber).
		Int("from", lot.RemainingQuantity).
		Int("to", quantity).
		Msg("lot quantity adjusted")

	lot.RemainingQuantity = quantity
	return s.toView(lot), nil
}

// DeleteLot removes a lot. Lots drawn on by committed allocations are
// protected by the journal's foreign key and cannot be removed.
func (s *InventoryService) DeleteLot(ctx context.Context, id string) error {
	lot, err := s.lotRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.lotRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.publisher.PublishLotDeleted(ctx, lot)

	s.logger.Info().
		Str("lot_id", lot.ID).
		Str("lot_number", lot.LotNumber).
		Msg("lot deleted")

	return nil
}

// Dashboard builds the warehouse expiry overview
func (s *InventoryService) Dashboard(ctx context.Context) (*DashboardStats, error) {
	lots, err := s.lotRepo.ListWithStock(ctx)
	if err != nil {
		return nil, err
	}

	counts, err := s.alertRepo.CountsByTier(ctx)
	if err != nil {
		return nil, err
	}

	atRisk, err := s.alertRepo.AtRiskQuantity(ctx)
	if err != nil {
		return nil, err
	}

	expired, err := s.lotRepo.TotalExpiredQuantity(ctx, startOfDayUTC(s.now()))
	if err != nil {
		return nil, err
	}

	critical, err := s.alertRepo.CriticalProducts(ctx)
	if err != nil {
		return nil, err
	}

	products, err := s.productRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	byTier := map[string]int64{}
	for _, c := range counts {
		byTier[c.Tier] = c.Count
	}

	return &DashboardStats{
		LotsWithStock:    int64(len(lots)),
		AlertsByTier:     byTier,
		AtRiskQuantity:   atRisk,
		ExpiredQuantity:  expired,
		TotalProducts:    len(products),
		CriticalProducts: critical,
		GeneratedAt:      s.now().UTC(),
	}, nil
}

func (s *InventoryService) toView(lot *repository.Lot) *LotView {
	days := DaysUntil(s.now(), lot.ExpiryDate)
	return &LotView{
		Lot:             *lot,
		Tier:            Classify(days),
		DaysUntilExpiry: days,
	}
}
