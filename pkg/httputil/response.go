package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/validator"
)

// Response is the JSON envelope of the local HTTP surface.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse is the error half of the envelope. Kind, Critical and
// Retryable mirror the AppError the failure was normalized to.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Kind      apperrors.Kind    `json:"kind"`
	Critical  bool              `json:"critical"`
	Retryable bool              `json:"retryable"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData wraps v in the data envelope.
func WriteData(w http.ResponseWriter, status int, v any) {
	WriteJSON(w, status, Response{Data: v})
}

// WriteError writes err in the error envelope. Errors that are not AppErrors
// are normalized first; validation failures carry per-field messages. It
// prefers the request-scoped logger from context over the fallback.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}

	var fields map[string]string
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		fields = valErr.Fields()
	}

	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = normalize(err)
	}

	status := apperrors.HTTPStatus(appErr)
	if status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, status, Response{Error: &ErrorResponse{
		Code:      appErr.Code,
		Message:   appErr.Message,
		Kind:      appErr.Kind,
		Critical:  appErr.Critical(),
		Retryable: appErr.Retryable(),
		Fields:    fields,
		RequestID: logger.CorrelationIDFromContext(r.Context()),
	}})
}

func normalize(err error) *apperrors.AppError {
	var valErr *validator.ValidationError
	switch {
	case errors.As(err, &valErr), errors.Is(err, apperrors.ErrInvalidInput):
		return validator.ToAppError(err)
	case errors.Is(err, apperrors.ErrNotFound):
		return apperrors.NotFound("resource", "")
	case errors.Is(err, apperrors.ErrUnauthorized):
		return apperrors.Unauthorized("authentication required")
	case errors.Is(err, apperrors.ErrForbidden):
		return apperrors.Forbidden("insufficient permissions")
	default:
		return apperrors.Internal(err)
	}
}

// ParseID parses a positive integer path parameter. If it is invalid, a 400
// response is written and false is returned so the caller can return early.
func ParseID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(param, 10, 64)
	if err != nil || id < 1 {
		WriteError(w, r, apperrors.InvalidInput("invalid id: "+param), nil)
		return 0, false
	}
	return id, true
}
