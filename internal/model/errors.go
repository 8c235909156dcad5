package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases.
// Use errors.Is() to check against these.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrUpstreamError     = errors.New("upstream error")
	ErrRateLimited       = errors.New("rate limited")
	ErrStructural        = errors.New("malformed product structure")
	ErrNoVariantSelected = errors.New("no variant selected")
	ErrProductFetch      = errors.New("product fetch failed")
	ErrCartAdd           = errors.New("cart add failed")
)

// User-facing messages. Handlers surface these verbatim; diagnostics go to the log.
const (
	MsgSelectOptions = "Please select available options."
	MsgCartAdd       = "Could not add to cart. Please try again."
	MsgProductFetch  = "Sorry, we could not load this product."
)

// APIError represents a structured error for API responses.
// Implements error interface and supports unwrapping.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"` // HTTP status, not serialized
	Err        error  `json:"-"` // Wrapped error, not serialized
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// StructuralError reports a product whose option schema cannot drive option
// controls. Callers recover by treating the product as a single implicit variant.
type StructuralError struct {
	ProductID string
	Reason    string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("product %q: %s", e.ProductID, e.Reason)
}

func (e *StructuralError) Unwrap() error {
	return ErrStructural
}

// NewNotFoundError creates a 404 error for missing resources.
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: 404,
		Err:        ErrNotFound,
	}
}

// NewValidationError creates a 400 error for invalid input.
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:       "VALIDATION_ERROR",
		Message:    fmt.Sprintf("invalid %s: %s", field, reason),
		StatusCode: 400,
		Err:        ErrInvalidRequest,
	}
}

// NewUpstreamError creates a 502 error for backend failures.
func NewUpstreamError(service string, err error) *APIError {
	return &APIError{
		Code:       "UPSTREAM_ERROR",
		Message:    fmt.Sprintf("%s request failed", service),
		StatusCode: 502,
		Err:        fmt.Errorf("%w: %v", ErrUpstreamError, err),
	}
}

// NewRateLimitError creates a 429 error for rate limiting.
func NewRateLimitError(service string) *APIError {
	return &APIError{
		Code:       "RATE_LIMITED",
		Message:    fmt.Sprintf("%s rate limit exceeded, please retry later", service),
		StatusCode: 429,
		Err:        ErrRateLimited,
	}
}

// NewInternalError creates a 500 error for unexpected failures.
func NewInternalError(err error) *APIError {
	return &APIError{
		Code:       "INTERNAL_ERROR",
		Message:    "an internal error occurred",
		StatusCode: 500,
		Err:        err,
	}
}

// NewNoVariantSelectedError is returned when a submission has nothing to add.
// Raised before any network call.
func NewNoVariantSelectedError() *APIError {
	return &APIError{
		Code:       "NO_VARIANT_SELECTED",
		Message:    MsgSelectOptions,
		StatusCode: 422,
		Err:        ErrNoVariantSelected,
	}
}

// NewProductFetchError wraps a failed product load.
// A missing product keeps 404 so the widget can tell "gone" from "down".
func NewProductFetchError(ref string, err error) *APIError {
	status := 502
	if errors.Is(err, ErrNotFound) {
		status = 404
	}
	return &APIError{
		Code:       "PRODUCT_FETCH_FAILED",
		Message:    MsgProductFetch,
		StatusCode: status,
		Err:        fmt.Errorf("%w: %s: %v", ErrProductFetch, ref, err),
	}
}

// NewCartAddError wraps a failed add-to-cart mutation.
func NewCartAddError(variantID string, err error) *APIError {
	return &APIError{
		Code:       "CART_ADD_FAILED",
		Message:    MsgCartAdd,
		StatusCode: 502,
		Err:        fmt.Errorf("%w: variant %s: %v", ErrCartAdd, variantID, err),
	}
}
