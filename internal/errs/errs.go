// Package errs defines the error kinds surfaced by the order engine and how
// they map to stable codes and HTTP statuses.
package errs

import (
	"errors"
	"net/http"
)

// Business-rule kinds are expected outcomes and never retried. Store kinds are safe to retry.
var (
	ErrDuplicateOrder     = errors.New("an order already exists for today")
	ErrProductUnavailable = errors.New("product is not available")
	ErrStockExhausted     = errors.New("no stock remaining")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyProcessed   = errors.New("order already processed")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidInput       = errors.New("invalid input")
	ErrTransientStore     = errors.New("store unavailable")
	ErrConcurrentUpdate   = errors.New("concurrent update, retry")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrUnauthenticated    = errors.New("authentication required")
)

type kind struct {
	err    error
	code   string
	status int
}

// Ordered: the first matching sentinel wins.
var kinds = []kind{
	{ErrDuplicateOrder, "duplicate_order", http.StatusConflict},
	{ErrProductUnavailable, "product_unavailable", http.StatusBadRequest},
	{ErrStockExhausted, "stock_exhausted", http.StatusConflict},
	{ErrNotFound, "not_found", http.StatusNotFound},
	{ErrAlreadyProcessed, "already_processed", http.StatusConflict},
	{ErrForbidden, "forbidden", http.StatusForbidden},
	{ErrInvalidInput, "invalid_input", http.StatusBadRequest},
	{ErrRateLimited, "rate_limited", http.StatusTooManyRequests},
	{ErrUnauthenticated, "unauthenticated", http.StatusUnauthorized},
	{ErrConcurrentUpdate, "transient_store_failure", http.StatusServiceUnavailable},
	{ErrTransientStore, "transient_store_failure", http.StatusServiceUnavailable},
}

// Code returns the stable kind of err, or "internal_error".
func Code(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return "internal_error"
}

// HTTPStatus returns the HTTP status for err, or 500.
func HTTPStatus(err error) int {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}

// IsRetryable reports whether the caller may safely retry the operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientStore) || errors.Is(err, ErrConcurrentUpdate)
}

// Message returns the user-facing message for err.
func Message(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.err.Error()
		}
	}
	return "internal server error"
}
