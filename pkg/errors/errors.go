package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error types
var (
	ErrNotFound          = errors.New("resource not found")
	ErrBadRequest        = errors.New("bad request")
	ErrConflict          = errors.New("resource conflict")
	ErrInternal          = errors.New("internal server error")
	ErrValidation        = errors.New("validation error")
	ErrSanitaryHold      = errors.New("sanitary hold")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrCommitConflict    = errors.New("allocation commit conflict")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// Allocation error constructors.
//
// SanitaryHold and InsufficientStock carry the exact quantities involved so
// callers can report a precise rejection reason to the order workflow.

// SanitaryHold blocks allocation when expired stock with remaining quantity
// exists for the product. It requires manual intervention by a stock manager
// and is never routed around.
func SanitaryHold(productID string, expiredQuantity int) *AppError {
	return &AppError{
		Err:        ErrSanitaryHold,
		Code:       "SANITARY_HOLD",
		Message:    fmt.Sprintf("sanitary hold: %d expired units in stock, manual intervention required", expiredQuantity),
		StatusCode: http.StatusConflict,
		Details: map[string]string{
			"product_id":       productID,
			"expired_quantity": fmt.Sprintf("%d", expiredQuantity),
		},
	}
}

// InsufficientStock reports that the non-expired supply cannot cover the
// requested quantity.
func InsufficientStock(productID string, available, requested int) *AppError {
	return &AppError{
		Err:        ErrInsufficientStock,
		Code:       "INSUFFICIENT_STOCK",
		Message:    fmt.Sprintf("insufficient stock: %d available, %d requested", available, requested),
		StatusCode: http.StatusConflict,
		Details: map[string]string{
			"product_id": productID,
			"available":  fmt.Sprintf("%d", available),
			"requested":  fmt.Sprintf("%d", requested),
		},
	}
}

// CommitConflict aborts a whole plan commit: a referenced lot vanished, the
// plan was already committed, or a concurrent commit invalidated the plan.
func CommitConflict(message string) *AppError {
	return &AppError{
		Err:        ErrCommitConflict,
		Code:       "COMMIT_CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
