package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Sentinel error identity ---

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrInvalidInput, ErrUnauthorized, ErrForbidden,
		ErrInternal, ErrConflict, ErrServiceUnavail, ErrNetwork, ErrServer,
	}

	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j],
				"sentinels %d and %d should be distinct", i, j)
		}
	}
}

// --- AppError behavior ---

func TestAppError_ErrorString_WithWrappedError(t *testing.T) {
	inner := fmt.Errorf("connection refused")
	appErr := &AppError{Code: "NETWORK_UNAVAILABLE", Message: "offline", Err: inner}
	assert.Contains(t, appErr.Error(), "NETWORK_UNAVAILABLE")
	assert.Contains(t, appErr.Error(), "offline")
	assert.Contains(t, appErr.Error(), "connection refused")
}

func TestAppError_ErrorString_WithoutWrappedError(t *testing.T) {
	appErr := &AppError{Code: "NOT_FOUND", Message: "cart not found"}
	assert.Equal(t, "NOT_FOUND: cart not found", appErr.Error())
}

func TestAppError_Unwrap_Nil(t *testing.T) {
	appErr := &AppError{Code: "TEST", Message: "test"}
	assert.Nil(t, appErr.Unwrap())
}

func TestAppError_CriticalAndRetryable(t *testing.T) {
	tests := []struct {
		kind      Kind
		critical  bool
		retryable bool
	}{
		{KindNetworkUnavailable, true, true},
		{KindServerUnavailable, true, true},
		{KindBadRequest, false, false},
		{KindUnauthorized, false, false},
		{KindForbidden, false, false},
		{KindNotFound, false, false},
		{KindServerError, false, true},
		{KindUnknown, false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			e := &AppError{Kind: tt.kind}
			assert.Equal(t, tt.critical, e.Critical())
			assert.Equal(t, tt.retryable, e.Retryable())
		})
	}
}

// --- Constructor functions ---

func TestNetworkUnavailable_KeepsOriginal(t *testing.T) {
	inner := fmt.Errorf("dial tcp: connection refused")
	err := NetworkUnavailable(inner)
	assert.Equal(t, KindNetworkUnavailable, err.Kind)
	assert.Equal(t, 0, err.Status)
	assert.True(t, errors.Is(err, ErrNetwork))
	assert.True(t, errors.Is(err, inner))
}

func TestServerUnavailable(t *testing.T) {
	err := ServerUnavailable(nil)
	assert.Equal(t, KindServerUnavailable, err.Kind)
	assert.True(t, errors.Is(err, ErrServiceUnavail))
}

func TestNotFound(t *testing.T) {
	err := NotFound("product", "abc-123")
	require.NotNil(t, err)
	assert.Equal(t, "NOT_FOUND", err.Code)
	assert.Equal(t, KindNotFound, err.Kind)
	assert.Equal(t, "product", err.Resource)
	assert.Contains(t, err.Message, "abc-123")
	assert.Equal(t, http.StatusNotFound, err.Status)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestNotFound_WithoutID(t *testing.T) {
	err := NotFound("orders", "")
	assert.Equal(t, "orders not found", err.Message)
}

func TestInvalidInput(t *testing.T) {
	err := InvalidInput("quantity is required")
	require.NotNil(t, err)
	assert.Equal(t, "INVALID_INPUT", err.Code)
	assert.Equal(t, KindBadRequest, err.Kind)
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestUnauthorized(t *testing.T) {
	err := Unauthorized("invalid token")
	assert.Equal(t, KindUnauthorized, err.Kind)
	assert.Equal(t, http.StatusUnauthorized, err.Status)
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestForbidden(t *testing.T) {
	err := Forbidden("not allowed")
	assert.Equal(t, KindForbidden, err.Kind)
	assert.Equal(t, http.StatusForbidden, err.Status)
	assert.True(t, errors.Is(err, ErrForbidden))
}

func TestServerError(t *testing.T) {
	err := ServerError(http.StatusBadGateway, "upstream failed")
	assert.Equal(t, KindServerError, err.Kind)
	assert.Equal(t, http.StatusBadGateway, err.Status)
	assert.True(t, err.Retryable())
	assert.True(t, errors.Is(err, ErrServer))
}

func TestInternal(t *testing.T) {
	err := Internal(fmt.Errorf("encode body"))
	assert.Equal(t, "INTERNAL_ERROR", err.Code)
	assert.Contains(t, err.Error(), "encode body")
	assert.True(t, errors.Is(err, ErrInternal))
}

func TestAs(t *testing.T) {
	wrapped := fmt.Errorf("load cart: %w", Forbidden("nope"))
	appErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindForbidden, appErr.Kind)

	_, ok = As(fmt.Errorf("plain"))
	assert.False(t, ok)
}

// --- HTTPStatus ---

func TestHTTPStatus_AppError(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFound("item", "1")))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(NetworkUnavailable(nil)))
}

func TestHTTPStatus_SentinelErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{ErrNotFound, http.StatusNotFound},
		{ErrConflict, http.StatusConflict},
		{ErrInvalidInput, http.StatusBadRequest},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{ErrNetwork, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestHTTPStatus_UnknownError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(fmt.Errorf("unknown")))
}
