package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// errorBody covers the two error payload shapes the backend produces:
// the enveloped {"error":{"code","message"}} form and a flat
// {"code","message"} form.
type errorBody struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ParseResponseError reads the body of a non-2xx response and maps it onto
// the storefront error taxonomy. The response body is fully consumed and
// closed.
func ParseResponseError(resp *http.Response) *apperrors.AppError {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB limit

	var code, message string
	var body errorBody
	if readErr == nil && json.Unmarshal(bodyBytes, &body) == nil {
		if body.Error != nil {
			code, message = body.Error.Code, body.Error.Message
		} else {
			code, message = body.Code, body.Message
		}
	}

	original := fmt.Errorf("%s %s returned status %d", requestMethod(resp), requestPath(resp), resp.StatusCode)
	if readErr != nil {
		original = fmt.Errorf("%w (failed to read body: %v)", original, readErr)
	}

	appErr := mapStatus(resp.StatusCode, message, requestPath(resp))
	if code != "" {
		appErr.Code = code
	}
	appErr.Err = errors.Join(appErr.Err, original)
	return appErr
}

// TransportError maps a failure that produced no response at all.
func TransportError(err error) *apperrors.AppError {
	if appErr, ok := apperrors.As(err); ok {
		return appErr
	}
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests) {
		return apperrors.ServerUnavailable(err)
	}
	return apperrors.NetworkUnavailable(err)
}

func mapStatus(status int, message, path string) *apperrors.AppError {
	switch {
	case status == 0:
		return apperrors.ServerUnavailable(nil)
	case status == http.StatusBadRequest:
		if message == "" {
			message = "the request was invalid"
		}
		return apperrors.InvalidInput(message)
	case status == http.StatusUnauthorized:
		if message == "" {
			message = "your session has expired, please sign in again"
		}
		return apperrors.Unauthorized(message)
	case status == http.StatusForbidden:
		if message == "" {
			message = "you do not have permission to perform this action"
		}
		return apperrors.Forbidden(message)
	case status == http.StatusNotFound:
		resource := ResourceFromPath(path)
		if resource == "" {
			resource = "resource"
		}
		appErr := apperrors.NotFound(resource, "")
		if message != "" {
			appErr.Message = message
		}
		return appErr
	case status >= 500 && status <= 504:
		if message == "" {
			message = "the server encountered an error, please try again"
		}
		return apperrors.ServerError(status, message)
	default:
		if message == "" {
			message = fmt.Sprintf("unexpected response (%d), please try again", status)
		}
		return &apperrors.AppError{
			Kind:    apperrors.KindUnknown,
			Code:    "UNKNOWN_ERROR",
			Message: message,
			Status:  status,
		}
	}
}

// ResourceFromPath returns the last non-identifier segment of an API path,
// e.g. "products" for /api/products/42 and "items" for /api/cart/items/7.
func ResourceFromPath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		seg := segments[i]
		if seg == "" || seg == "api" || isIdentifier(seg) {
			continue
		}
		return seg
	}
	return ""
}

// RouteTemplate replaces identifier segments with ":id" so paths can be used
// as low-cardinality metric labels.
func RouteTemplate(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg != "" && isIdentifier(seg) {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

func isIdentifier(seg string) bool {
	if _, err := strconv.ParseInt(seg, 10, 64); err == nil {
		return true
	}
	if _, err := uuid.Parse(seg); err == nil {
		return true
	}
	return false
}

func requestPath(resp *http.Response) string {
	if resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.Path
	}
	return ""
}

func requestMethod(resp *http.Response) string {
	if resp.Request != nil {
		return resp.Request.Method
	}
	return ""
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
