package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for common cases.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInternal       = errors.New("internal error")
	ErrConflict       = errors.New("conflict")
	ErrServiceUnavail = errors.New("service unavailable")
	ErrNetwork        = errors.New("network unavailable")
	ErrServer         = errors.New("server error")
)

// Kind classifies a failed backend exchange as seen by the storefront.
type Kind string

const (
	KindNetworkUnavailable Kind = "network_unavailable"
	KindServerUnavailable  Kind = "server_unavailable"
	KindBadRequest         Kind = "bad_request"
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not_found"
	KindServerError        Kind = "server_error"
	KindUnknown            Kind = "unknown"
)

// AppError is the normalized error shape surfaced to every caller of the
// storefront. Message is meant for display; Err carries the original error.
type AppError struct {
	Kind     Kind   `json:"kind"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Status   int    `json:"status"`
	Resource string `json:"resource,omitempty"`
	Err      error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Critical reports whether the error should block normal interaction.
func (e *AppError) Critical() bool {
	return e.Kind == KindNetworkUnavailable || e.Kind == KindServerUnavailable
}

// Retryable reports whether retrying the same call may succeed.
func (e *AppError) Retryable() bool {
	switch e.Kind {
	case KindServerError, KindUnknown, KindNetworkUnavailable, KindServerUnavailable:
		return true
	default:
		return false
	}
}

// NetworkUnavailable creates an error for a call that never got a response.
func NetworkUnavailable(err error) *AppError {
	return &AppError{
		Kind:    KindNetworkUnavailable,
		Code:    "NETWORK_UNAVAILABLE",
		Message: "unable to reach the server, check your connection",
		Status:  0,
		Err:     joinSentinel(ErrNetwork, err),
	}
}

// ServerUnavailable creates an error for a response carrying status 0.
func ServerUnavailable(err error) *AppError {
	return &AppError{
		Kind:    KindServerUnavailable,
		Code:    "SERVER_UNAVAILABLE",
		Message: "the server is unavailable, please reload later",
		Status:  0,
		Err:     joinSentinel(ErrServiceUnavail, err),
	}
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	msg := fmt.Sprintf("%s not found", resource)
	if id != "" {
		msg = fmt.Sprintf("%s with id %s not found", resource, id)
	}
	return &AppError{
		Kind:     KindNotFound,
		Code:     "NOT_FOUND",
		Message:  msg,
		Status:   http.StatusNotFound,
		Resource: resource,
		Err:      ErrNotFound,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Kind:    KindBadRequest,
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Kind:    KindUnauthorized,
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Forbidden creates a 403 error.
func Forbidden(message string) *AppError {
	return &AppError{
		Kind:    KindForbidden,
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     ErrForbidden,
	}
}

// Conflict creates a 409 error.
func Conflict(message string) *AppError {
	return &AppError{
		Kind:    KindUnknown,
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
		Err:     ErrConflict,
	}
}

// ServerError creates a retryable 5xx error.
func ServerError(status int, message string) *AppError {
	return &AppError{
		Kind:    KindServerError,
		Code:    "SERVER_ERROR",
		Message: message,
		Status:  status,
		Err:     ErrServer,
	}
}

// Internal creates a 500 error for failures that happen on this side of the wire.
func Internal(err error) *AppError {
	return &AppError{
		Kind:    KindUnknown,
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     joinSentinel(ErrInternal, err),
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// As extracts an *AppError from err, if any.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	if appErr, ok := As(err); ok {
		if appErr.Status == 0 {
			return http.StatusBadGateway
		}
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNetwork), errors.Is(err, ErrServiceUnavail):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func joinSentinel(sentinel, err error) error {
	if err == nil {
		return sentinel
	}
	return errors.Join(sentinel, err)
}
