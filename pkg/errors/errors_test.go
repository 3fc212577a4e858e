package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinels_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrAlreadyExists, ErrInvalidInput, ErrUnauthorized,
		ErrForbidden, ErrInternal, ErrConflict, ErrServiceUnavail,
		ErrPaymentFailed, ErrGone,
	}

	for i := range sentinels {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotErrorIs(t, sentinels[i], sentinels[j])
		}
	}
}

func TestAppError_ErrorString(t *testing.T) {
	withCause := &AppError{Code: "INTERNAL_ERROR", Message: "checkout failed", Err: fmt.Errorf("db connection lost")}
	assert.Contains(t, withCause.Error(), "INTERNAL_ERROR")
	assert.Contains(t, withCause.Error(), "checkout failed")
	assert.Contains(t, withCause.Error(), "db connection lost")

	plain := &AppError{Code: "NOT_FOUND", Message: "order not found"}
	assert.Equal(t, "NOT_FOUND: order not found", plain.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	appErr := &AppError{Code: "NOT_FOUND", Message: "gone", Err: ErrNotFound}
	assert.ErrorIs(t, appErr, ErrNotFound)

	bare := &AppError{Code: "TEST", Message: "test"}
	assert.Nil(t, bare.Unwrap())
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		code     string
		status   int
		sentinel error
		contains []string
	}{
		{"NotFound", NotFound("order", "ord-404"), "NOT_FOUND", http.StatusNotFound, ErrNotFound, []string{"order", "ord-404"}},
		{"AlreadyExists", AlreadyExists("coupon", "code", "SAVE10"), "ALREADY_EXISTS", http.StatusConflict, ErrAlreadyExists, []string{"coupon", "code", "SAVE10"}},
		{"InvalidInput", InvalidInput("quantity must be positive"), "INVALID_INPUT", http.StatusBadRequest, ErrInvalidInput, []string{"quantity must be positive"}},
		{"Unauthorized", Unauthorized("invalid token"), "UNAUTHORIZED", http.StatusUnauthorized, ErrUnauthorized, nil},
		{"Forbidden", Forbidden("admin role required"), "FORBIDDEN", http.StatusForbidden, ErrForbidden, nil},
		{"PaymentFailed", PaymentFailed("card declined"), "PAYMENT_FAILED", http.StatusUnprocessableEntity, ErrPaymentFailed, nil},
		{"Gone", Gone("checkout session expired"), "GONE", http.StatusGone, ErrGone, nil},
		{"Conflict", Conflict("order already settled"), "CONFLICT", http.StatusConflict, ErrConflict, nil},
		{"ServiceUnavailable", ServiceUnavailable("gateway unreachable"), "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, ErrServiceUnavail, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.err)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.Status)
			assert.ErrorIs(t, tt.err, tt.sentinel)
			for _, s := range tt.contains {
				assert.Contains(t, tt.err.Message, s)
			}
		})
	}
}

func TestInternal_WrapsCause(t *testing.T) {
	err := Internal(fmt.Errorf("tx deadlock"))
	require.NotNil(t, err)
	assert.Equal(t, "INTERNAL_ERROR", err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.Contains(t, err.Error(), "tx deadlock")
}

func TestCodedConstructors(t *testing.T) {
	conflict := ConflictCode("IDEMPOTENCY_MISMATCH", "key reused with a different cart")
	assert.Equal(t, "IDEMPOTENCY_MISMATCH", conflict.Code)
	assert.Equal(t, http.StatusConflict, conflict.Status)
	assert.ErrorIs(t, conflict, ErrConflict)

	invalid := InvalidInputCode("COUPON_NOT_APPLICABLE", "coupon does not apply to this cart")
	assert.Equal(t, "COUPON_NOT_APPLICABLE", invalid.Code)
	assert.Equal(t, http.StatusBadRequest, invalid.Status)
	assert.ErrorIs(t, invalid, ErrInvalidInput)
}

func TestWithDetails(t *testing.T) {
	err := InvalidInput("stock too low").WithDetails(map[string]any{"variant_id": "var-1", "available": 2})
	require.NotNil(t, err.Details)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestWrap(t *testing.T) {
	wrapped := Wrap(ErrNotFound, "load order")
	assert.Contains(t, wrapped.Error(), "load order")
	assert.ErrorIs(t, wrapped, ErrNotFound)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{NotFound("order", "ord-1"), http.StatusNotFound},
		{ErrNotFound, http.StatusNotFound},
		{ErrAlreadyExists, http.StatusConflict},
		{ErrConflict, http.StatusConflict},
		{ErrInvalidInput, http.StatusBadRequest},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{ErrPaymentFailed, http.StatusUnprocessableEntity},
		{ErrGone, http.StatusGone},
		{ErrServiceUnavail, http.StatusServiceUnavailable},
		{fmt.Errorf("outer: %w", ErrNotFound), http.StatusNotFound},
		{errors.New("unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, HTTPStatus(tt.err), "error %v", tt.err)
	}
}
