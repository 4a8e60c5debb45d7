package database

import (
	"strings"

	"github.com/lib/pq"

	"github.com/farmflow/farmflow-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	// Foreign key violation (23503)
	case "23503":
		return mapForeignKey(pqErr)

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "remaining_within_initial"):
		return errors.Validation(map[string]string{
			"remaining_quantity": "must be between 0 and the initial quantity",
		})

	case strings.Contains(constraint, "dates_ordered"):
		return errors.Validation(map[string]string{
			"manufacture_date": "must not be after the expiry date",
		})

	case strings.Contains(constraint, "quantity_positive"):
		return errors.Validation(map[string]string{
			"quantity": "must be positive",
		})

	case strings.Contains(constraint, "tier_valid"):
		return errors.Validation(map[string]string{
			"tier": "must be one of: WATCH, ELEVATED, CRITICAL, EXPIRED",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// mapForeignKey maps FK violations. The lot_allocations FK is how the schema
// blocks deleting a lot that has been drawn on by a committed allocation.
func mapForeignKey(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "lot_allocations"):
		return errors.Conflict("lot is referenced by committed allocations and cannot be deleted")
	default:
		return errors.BadRequest("referenced record does not exist")
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "lot_number"):
		return "a lot with this lot number already exists for this product"
	case strings.Contains(constraint, "lot_allocations"):
		return "this allocation plan has already been committed"
	default:
		return "a record with these values already exists"
	}
}
