package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/farmflow/farmflow-backend/pkg/database"
	"github.com/farmflow/farmflow-backend/pkg/errors"
)

// Lot represents a received batch of produce with an expiry date
type Lot struct {
	ID                string    `db:"id" json:"id"`
	ProductID         string    `db:"product_id" json:"product_id"`
	StockID           string    `db:"stock_id" json:"stock_id"`
	LotNumber         string    `db:"lot_number" json:"lot_number"`
	InitialQuantity   int       `db:"initial_quantity" json:"initial_quantity"`
	RemainingQuantity int       `db:"remaining_quantity" json:"remaining_quantity"`
	ManufactureDate   time.Time `db:"manufacture_date" json:"manufacture_date"`
	ExpiryDate        time.Time `db:"expiry_date" json:"expiry_date"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// LotRepository handles lot persistence
type LotRepository struct {
	db *database.DB
}

// NewLotRepository creates a new lot repository
func NewLotRepository(db *database.DB) *LotRepository {
	return &LotRepository{db: db}
}

// Create creates a new lot
func (r *LotRepository) Create(ctx context.Context, lot *Lot) error {
	if lot.ID == "" {
		lot.ID = uuid.New().String()
	}

	query := `
		INSERT INTO lots (
			id, product_id, stock_id, lot_number,
			initial_quantity, remaining_quantity, manufacture_date, expiry_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		lot.ID, lot.ProductID, lot.StockID, lot.LotNumber,
		lot.InitialQuantity, lot.RemainingQuantity, lot.ManufactureDate, lot.ExpiryDate,
	).Scan(&lot.CreatedAt, &lot.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a lot by ID
func (r *LotRepository) GetByID(ctx context.Context, id string) (*Lot, error) {
	var lot Lot
	query := `SELECT * FROM lots WHERE id = $1`
	if err := r.db.GetContext(ctx, &lot, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("lot")
		}
		return nil, err
	}
	return &lot, nil
}

// ListByProduct lists all lots for a product, soonest expiry first
func (r *LotRepository) ListByProduct(ctx context.Context, productID string) ([]*Lot, error) {
	var lots []*Lot
	query := `
		SELECT * FROM lots
		WHERE product_id = $1
		ORDER BY expiry_date, id
	`
	if err := r.db.SelectContext(ctx, &lots, query, productID); err != nil {
		return nil, err
	}
	return lots, nil
}

// ListActiveFEFO lists unexpired lots with remaining stock in allocation
// order: soonest expiry first, id as the tie-break.
func (r *LotRepository) ListActiveFEFO(ctx context.Context, productID string, asOf time.Time) ([]*Lot, error) {
	var lots []*Lot
	query := `
		SELECT * FROM lots
		WHERE product_id = $1 AND remaining_quantity > 0 AND expiry_date >= $2
		ORDER BY expiry_date, id
	`
	if err := r.db.SelectContext(ctx, &lots, query, productID, asOf); err != nil {
		return nil, err
	}
	return lots, nil
}

// ExpiredQuantity returns the total remaining quantity sitting in expired
// lots for a product.
func (r *LotRepository) ExpiredQuantity(ctx context.Context, productID string, asOf time.Time) (int, error) {
	var total sql.NullInt64
	query := `
		SELECT SUM(remaining_quantity) FROM lots
		WHERE product_id = $1 AND remaining_quantity > 0 AND expiry_date < $2
	`
	if err := r.db.GetContext(ctx, &total, query, productID, asOf); err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return int(total.Int64), nil
}

// TotalExpiredQuantity returns the remaining quantity sitting in expired
// lots across the whole warehouse.
func (r *LotRepository) TotalExpiredQuantity(ctx context.Context, asOf time.Time) (int, error) {
	var total sql.NullInt64
	query := `
		SELECT SUM(remaining_quantity) FROM lots
		WHERE remaining_quantity > 0 AND expiry_date < $1
	`
	if err := r.db.GetContext(ctx, &total, query, asOf); err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return int(total.Int64), nil
}

// AdjustRemaining sets a lot's remaining quantity to an exact value. This
// is the admin correction path; normal deductions go through DeductTx.
func (r *LotRepository) AdjustRemaining(ctx context.Context, id string, quantity int) error {
	query := `
		UPDATE lots
		SET remaining_quantity = $2, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, quantity)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("lot")
	}

	return nil
}

// ListWithStock lists all lots that still hold stock, across all products.
// Used by the expiry scanner.
func (r *LotRepository) ListWithStock(ctx context.Context) ([]*Lot, error) {
	var lots []*Lot
	query := `
		SELECT * FROM lots
		WHERE remaining_quantity > 0
		ORDER BY expiry_date, id
	`
	if err := r.db.SelectContext(ctx, &lots, query); err != nil {
		return nil, err
	}
	return lots, nil
}

// Delete deletes a lot. Lots referenced by committed allocations are
// protected by a foreign key and cannot be removed.
func (r *LotRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM lots WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("lot")
	}

	return nil
}

// GetForUpdateTx locks a lot row within a transaction and returns its
// current state.
func (r *LotRepository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*Lot, error) {
	var lot Lot
	query := `SELECT * FROM lots WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &lot, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("lot")
		}
		return nil, err
	}
	return &lot, nil
}

// DeductTx deducts quantity from a locked lot, clamping at zero.
func (r *LotRepository) DeductTx(ctx context.Context, tx *sqlx.Tx, id string, quantity int) error {
	query := `
		UPDATE lots
		SET remaining_quantity = GREATEST(remaining_quantity - $2, 0), updated_at = NOW()
		WHERE id = $1
	`
	result, err := tx.ExecContext(ctx, query, id, quantity)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("lot")
	}

	return nil
}

// Transaction runs fn inside a database transaction
func (r *LotRepository) Transaction(ctx context.Context, fn func(*sqlx.Tx) error) error {
	return r.db.Transaction(ctx, fn)
}
