// Package errors provides categorized error types for the Kleo reward backend.
package errors

import (
	"fmt"
	"net/http"

	"github.com/kleo-network/kleo-backend/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryUserInput represents user input errors (4xx)
	CategoryUserInput ErrorCategory = "user_input"
	// CategoryValidation represents validation errors
	CategoryValidation ErrorCategory = "validation"
	// CategoryNotFound represents not found errors
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryDownstream represents classification worker rejections
	CategoryDownstream ErrorCategory = "downstream"
	// CategoryStore represents document store errors
	CategoryStore ErrorCategory = "store"
	// CategorySystem represents internal system errors (5xx)
	CategorySystem ErrorCategory = "system"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// NewInvalidAddressError creates an invalid wallet address error
func NewInvalidAddressError(address string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUserInput,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_ADDRESS",
		Message:    fmt.Sprintf("invalid wallet address: %s", address),
		Details: map[string]interface{}{
			"address": address,
		},
	}
}

// NewValidationError creates a validation error for a malformed field
func NewValidationError(field string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "VALIDATION_FAILED",
		Message:    fmt.Sprintf("invalid field '%s': %s", field, reason),
		Details: map[string]interface{}{
			"field":  field,
			"reason": reason,
		},
	}
}

// NewUserNotFoundError creates a not found error for a user address
func NewUserNotFoundError(address string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "USER_NOT_FOUND",
		Message:    fmt.Sprintf("user not found: %s", address),
		Details: map[string]interface{}{
			"address": address,
		},
	}
}

// NewDispatchRejectedError creates a downstream rejection error carrying the
// worker's status code and response body verbatim.
func NewDispatchRejectedError(statusCode int, body string) *CategorizedError {
	// Status 0 means the submission never reached the worker (timeout,
	// connection refused). Surface it as a bad gateway.
	httpStatus := statusCode
	if httpStatus < 100 {
		httpStatus = http.StatusBadGateway
	}
	return &CategorizedError{
		Category:   CategoryDownstream,
		StatusCode: httpStatus,
		Code:       "DISPATCH_REJECTED",
		Message:    "classification task was not accepted",
		Details: map[string]interface{}{
			"upstream_status": statusCode,
			"upstream_body":   body,
		},
	}
}

// NewStoreError wraps a document store failure
func NewStoreError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryStore,
		StatusCode: http.StatusInternalServerError,
		Code:       "STORE_FAILURE",
		Message:    fmt.Sprintf("store operation failed: %s", operation),
		Cause:      cause,
	}
}

// NewInternalError wraps an unexpected internal failure
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}
