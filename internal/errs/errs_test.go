package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeAndStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"duplicate", ErrDuplicateOrder, "duplicate_order", http.StatusConflict},
		{"wrapped stock", fmt.Errorf("order 4: %w", ErrStockExhausted), "stock_exhausted", http.StatusConflict},
		{"not found", ErrNotFound, "not_found", http.StatusNotFound},
		{"forbidden", ErrForbidden, "forbidden", http.StatusForbidden},
		{"invalid", fmt.Errorf("%w: quantity must be positive", ErrInvalidInput), "invalid_input", http.StatusBadRequest},
		{"transient", fmt.Errorf("%w: %w", ErrTransientStore, errors.New("dial tcp: timeout")), "transient_store_failure", http.StatusServiceUnavailable},
		{"version conflict", ErrConcurrentUpdate, "transient_store_failure", http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), "internal_error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, Code(tt.err))
			assert.Equal(t, tt.wantStatus, HTTPStatus(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("%w: %w", ErrTransientStore, errors.New("conn reset"))))
	assert.True(t, IsRetryable(ErrConcurrentUpdate))
	assert.False(t, IsRetryable(ErrDuplicateOrder))
	assert.False(t, IsRetryable(ErrAlreadyProcessed))
}

func TestMessage_HidesInternalErrors(t *testing.T) {
	assert.Equal(t, "internal server error", Message(errors.New("pq: relation does not exist")))
	assert.Equal(t, ErrAlreadyProcessed.Error(), Message(fmt.Errorf("order 9: %w", ErrAlreadyProcessed)))
}
