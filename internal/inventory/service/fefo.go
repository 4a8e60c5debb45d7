package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/farmflow/farmflow-backend/internal/inventory/events"
	"github.com/farmflow/farmflow-backend/internal/inventory/repository"
	"github.com/farmflow/farmflow-backend/pkg/errors"
	"github.com/farmflow/farmflow-backend/pkg/logger"
	"github.com/farmflow/farmflow-backend/pkg/messaging"
)

// ProductStore is the product access the allocation service needs
type ProductStore interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// LotStore is the lot access the allocation service needs
type LotStore interface {
	GetByID(ctx context.Context, id string) (*repository.Lot, error)
	ListActiveFEFO(ctx context.Context, productID string, asOf time.Time) ([]*repository.Lot, error)
	ExpiredQuantity(ctx context.Context, productID string, asOf time.Time) (int, error)
	GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*repository.Lot, error)
	DeductTx(ctx context.Context, tx *sqlx.Tx, id string, quantity int) error
	Transaction(ctx context.Context, fn func(*sqlx.Tx) error) error
}

// AllocationStore is the journal access the allocation service needs
type AllocationStore interface {
	InsertTx(ctx context.Context, tx *sqlx.Tx, alloc *repository.LotAllocation) error
	PlanExists(ctx context.Context, planID string) (bool, error)
	ListByPlan(ctx context.Context, planID string) ([]*repository.LotAllocation, error)
}

// AllocationLine is one lot draw within an allocation plan
type AllocationLine struct {
	LotID      string    `json:"lot_id" validate:"required,uuid"`
	LotNumber  string    `json:"lot_number"`
	Quantity   int       `json:"quantity" validate:"required,gt=0"`
	ExpiryDate time.Time `json:"expiry_date"`
}

// AllocationPlan is a proposed draw-down of lots for a requested quantity.
// A plan is a pure preview until it is committed.
type AllocationPlan struct {
	PlanID    string           `json:"plan_id" validate:"required,uuid"`
	ProductID string           `json:"product_id" validate:"required,uuid"`
	Requested int              `json:"requested" validate:"required,gt=0"`
	Lines     []AllocationLine `json:"lines" validate:"required,min=1,dive"`
	CreatedAt time.Time        `json:"created_at"`
}

// AllocationService builds and commits first-expired-first-out allocation
// plans.
type AllocationService struct {
	products  ProductStore
	lots      LotStore
	allocs    AllocationStore
	publisher *events.InventoryEventPublisher
	logger    *logger.Logger
	now       func() time.Time
}

// NewAllocationService creates a new allocation service
func NewAllocationService(
	products ProductStore,
	lots LotStore,
	allocs AllocationStore,
	publisher *events.InventoryEventPublisher,
	log *logger.Logger,
) *AllocationService {
	return &AllocationService{
		products:  products,
		lots:      lots,
		allocs:    allocs,
		publisher: publisher,
		logger:    log,
		now:       time.Now,
	}
}

// Allocate builds a FEFO allocation plan for the requested quantity.
//
// Expired stock is a hard stop: as long as any expired quantity remains in
// the warehouse for this product, no plan is produced until it is cleared.
// Active lots are walked soonest-expiry-first and each contributes up to
// its remaining quantity. Plans are all-or-nothing; a shortfall yields an
// insufficient stock error, never a partial plan.
func (s *AllocationService) Allocate(ctx context.Context, productID string, quantity int) (*AllocationPlan, error) {
	if quantity <= 0 {
		return nil, errors.BadRequest("requested quantity must be positive")
	}

	exists, err := s.products.Exists(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.NotFound("product")
	}

	now := s.now()
	today := startOfDayUTC(now)

	expired, err := s.lots.ExpiredQuantity(ctx, productID, today)
	if err != nil {
		return nil, err
	}
	if expired > 0 {
		return nil, errors.SanitaryHold(productID, expired)
	}

	lots, err := s.lots.ListActiveFEFO(ctx, productID, today)
	if err != nil {
		return nil, err
	}

	available := 0
	for _, lot := range lots {
		available += lot.RemainingQuantity
	}
	if available < quantity {
		return nil, errors.InsufficientStock(productID, available, quantity)
	}

	plan := &AllocationPlan{
		PlanID:    uuid.New().String(),
		ProductID: productID,
		Requested: quantity,
		CreatedAt: now.UTC(),
	}

	needed := quantity
	for _, lot := range lots {
		if needed == 0 {
			break
		}

		take := lot.RemainingQuantity
		if take > needed {
			take = needed
		}

		plan.Lines = append(plan.Lines, AllocationLine{
			LotID:      lot.ID,
			LotNumber:  lot.LotNumber,
			Quantity:   take,
			ExpiryDate: lot.ExpiryDate,
		})
		needed -= take
	}

	s.logger.Debug().
		Str("plan_id", plan.PlanID).
		Str("product_id", productID).
		Int("requested", quantity).
		Int("lots", len(plan.Lines)).
		Msg("allocation plan built")

	return plan, nil
}

// Commit applies an allocation plan in a single transaction.
//
// Each lot row is locked and re-checked against the plan before deduction,
// so a plan built against stale state is rejected rather than silently
// over-drawing. The journal's primary key on (plan_id, lot_id) makes a
// second commit of the same plan fail with a conflict.
func (s *AllocationService) Commit(ctx context.Context, plan *AllocationPlan) error {
	if plan == nil || len(plan.Lines) == 0 {
		return errors.BadRequest("allocation plan has no lines")
	}
	if plan.PlanID == "" {
		return errors.BadRequest("allocation plan is missing its id")
	}

	committed, err := s.allocs.PlanExists(ctx, plan.PlanID)
	if err != nil {
		return err
	}
	if committed {
		return errors.CommitConflict("allocation plan has already been committed")
	}

	// Lock lots in a stable order to avoid deadlocks between
	// concurrent commits.
	lines := make([]AllocationLine, len(plan.Lines))
	copy(lines, plan.Lines)
	sort.Slice(lines, func(i, j int) bool { return lines[i].LotID < lines[j].LotID })

	err = s.lots.Transaction(ctx, func(tx *sqlx.Tx) error {
		for _, line := range lines {
			lot, err := s.lots.GetForUpdateTx(ctx, tx, line.LotID)
			if err != nil {
				if errors.Is(err, errors.ErrNotFound) {
					return errors.CommitConflict("allocation plan references a lot that no longer exists")
				}
				return err
			}

			if lot.RemainingQuantity < line.Quantity {
				return errors.Conflict("lot " + lot.LotNumber + " no longer holds the planned quantity; re-run allocation")
			}

			if err := s.allocs.InsertTx(ctx, tx, &repository.LotAllocation{
				PlanID:   plan.PlanID,
				LotID:    line.LotID,
				Quantity: line.Quantity,
			}); err != nil {
				if errors.Is(err, errors.ErrConflict) {
					return errors.CommitConflict("allocation plan has already been committed")
				}
				return err
			}

			if err := s.lots.DeductTx(ctx, tx, line.LotID, line.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	eventLines := make([]messaging.DeductionLine, 0, len(plan.Lines))
	total := 0
	for _, line := range plan.Lines {
		eventLines = append(eventLines, messaging.DeductionLine{
			LotID:     line.LotID,
			LotNumber: line.LotNumber,
			Quantity:  line.Quantity,
		})
		total += line.Quantity
	}
	s.publisher.PublishStockDeducted(ctx, plan.PlanID, plan.ProductID, total, eventLines)

	s.logger.Info().
		Str("plan_id", plan.PlanID).
		Str("product_id", plan.ProductID).
		Int("total", total).
		Msg("allocation plan committed")

	return nil
}

// GetCommitted returns the journal rows of a committed plan
func (s *AllocationService) GetCommitted(ctx context.Context, planID string) ([]*repository.LotAllocation, error) {
	allocs, err := s.allocs.ListByPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if len(allocs) == 0 {
		return nil, errors.NotFound("allocation plan")
	}
	return allocs, nil
}
