package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/farmflow/farmflow-backend/pkg/database"
)

// LotAllocation is one journal row of a committed allocation plan
type LotAllocation struct {
	PlanID      string    `db:"plan_id" json:"plan_id"`
	LotID       string    `db:"lot_id" json:"lot_id"`
	Quantity    int       `db:"quantity" json:"quantity"`
	CommittedAt time.Time `db:"committed_at" json:"committed_at"`
}

// AllocationRepository handles the allocation journal
type AllocationRepository struct {
	db *database.DB
}

// NewAllocationRepository creates a new allocation repository
func NewAllocationRepository(db *database.DB) *AllocationRepository {
	return &AllocationRepository{db: db}
}

// InsertTx writes one journal row within a transaction. The primary key
// on (plan_id, lot_id) makes a repeated commit of the same plan fail.
func (r *AllocationRepository) InsertTx(ctx context.Context, tx *sqlx.Tx, alloc *LotAllocation) error {
	query := `
		INSERT INTO lot_allocations (plan_id, lot_id, quantity)
		VALUES ($1, $2, $3)
		RETURNING committed_at
	`
	err := tx.QueryRowxContext(ctx, query,
		alloc.PlanID, alloc.LotID, alloc.Quantity,
	).Scan(&alloc.CommittedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// PlanExists checks whether a plan has already been committed
func (r *AllocationRepository) PlanExists(ctx context.Context, planID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM lot_allocations WHERE plan_id = $1)`
	if err := r.db.GetContext(ctx, &exists, query, planID); err != nil {
		return false, err
	}
	return exists, nil
}

// ListByPlan lists the journal rows of a committed plan
func (r *AllocationRepository) ListByPlan(ctx context.Context, planID string) ([]*LotAllocation, error) {
	var allocs []*LotAllocation
	query := `SELECT * FROM lot_allocations WHERE plan_id = $1 ORDER BY lot_id`
	if err := r.db.SelectContext(ctx, &allocs, query, planID); err != nil {
		return nil, err
	}
	return allocs, nil
}
