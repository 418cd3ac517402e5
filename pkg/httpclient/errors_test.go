package httpclient

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// makeResponse creates an *http.Response for the given request path.
func makeResponse(statusCode int, path, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    &http.Request{Method: http.MethodGet, URL: &url.URL{Path: path}},
	}
}

func structuredError(code, message string) string {
	return `{"error":{"code":"` + code + `","message":"` + message + `"}}`
}

func TestParseResponseError_BadRequestPassesMessage(t *testing.T) {
	err := ParseResponseError(makeResponse(http.StatusBadRequest, "/api/cart/items", structuredError("INVALID_INPUT", "quantity must be positive")))

	assert.Equal(t, apperrors.KindBadRequest, err.Kind)
	assert.Equal(t, "quantity must be positive", err.Message)
	assert.Equal(t, "INVALID_INPUT", err.Code)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestParseResponseError_FlatBody(t *testing.T) {
	err := ParseResponseError(makeResponse(http.StatusBadRequest, "/api/auth/login", `{"message":"Invalid credentials"}`))
	assert.Equal(t, "Invalid credentials", err.Message)
}

func TestParseResponseError_NotFoundExtractsResource(t *testing.T) {
	err := ParseResponseError(makeResponse(http.StatusNotFound, "/api/products/42", ""))

	assert.Equal(t, apperrors.KindNotFound, err.Kind)
	assert.Equal(t, "products", err.Resource)
	assert.Contains(t, err.Message, "products")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestParseResponseError_Taxonomy(t *testing.T) {
	tests := []struct {
		status int
		kind   apperrors.Kind
	}{
		{0, apperrors.KindServerUnavailable},
		{http.StatusUnauthorized, apperrors.KindUnauthorized},
		{http.StatusForbidden, apperrors.KindForbidden},
		{http.StatusInternalServerError, apperrors.KindServerError},
		{http.StatusBadGateway, apperrors.KindServerError},
		{http.StatusGatewayTimeout, apperrors.KindServerError},
		{http.StatusConflict, apperrors.KindUnknown},
		{http.StatusTeapot, apperrors.KindUnknown},
		{http.StatusHTTPVersionNotSupported, apperrors.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := ParseResponseError(makeResponse(tt.status, "/api/cart", "not json"))
			assert.Equal(t, tt.kind, err.Kind)
			assert.Equal(t, tt.status, err.Status)
			assert.NotEmpty(t, err.Message)
			assert.Error(t, err.Unwrap())
		})
	}
}

func TestTransportError(t *testing.T) {
	netErr := TransportError(fmt.Errorf("dial tcp: connection refused"))
	assert.Equal(t, apperrors.KindNetworkUnavailable, netErr.Kind)
	assert.True(t, netErr.Critical())

	openErr := TransportError(ErrCircuitOpen)
	assert.Equal(t, apperrors.KindServerUnavailable, openErr.Kind)

	existing := apperrors.Forbidden("x")
	assert.Same(t, existing, TransportError(existing))
}

func TestResourceFromPath(t *testing.T) {
	assert.Equal(t, "products", ResourceFromPath("/api/products/42"))
	assert.Equal(t, "items", ResourceFromPath("/api/cart/items/7"))
	assert.Equal(t, "orders", ResourceFromPath("/api/orders/3b241101-e2bb-4255-8caf-4136c566a962"))
	assert.Equal(t, "", ResourceFromPath("/api/"))
}

func TestRouteTemplate(t *testing.T) {
	assert.Equal(t, "/api/cart/items/:id", RouteTemplate("/api/cart/items/17"))
	assert.Equal(t, "/api/cart", RouteTemplate("/api/cart"))
}

func TestIsClientError(t *testing.T) {
	require.True(t, IsClientError(404))
	require.False(t, IsClientError(500))
}
