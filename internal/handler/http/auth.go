package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/validator"
)

// AuthHandler handles the sign-in endpoints and the session event stream.
type AuthHandler struct {
	storefront Storefront
	session    Session
	logger     *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(storefront Storefront, session Session, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{storefront: storefront, session: session, logger: logger}
}

// authResponse is the body returned by login, register and me.
type authResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *domain.User `json:"user,omitempty"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if err := decodeJSON(r, &creds); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if err := validator.Validate(creds); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	user, err := h.storefront.Login(r.Context(), creds)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, authResponse{Authenticated: true, User: user})
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var reg domain.Registration
	if err := decodeJSON(r, &reg); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if err := validator.Validate(reg); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	user, err := h.storefront.Register(r.Context(), reg)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, authResponse{Authenticated: true, User: user})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.storefront.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/auth/me. The cached user is refreshed from the
// backend unless ?cached=true is given.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	if !h.session.IsAuthenticated() {
		httputil.WriteError(w, r, apperrors.Unauthorized("not signed in"), h.logger)
		return
	}

	user := h.session.User()
	if r.URL.Query().Get("cached") != "true" {
		fresh, err := h.session.RefreshUser(r.Context())
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		user = fresh
	}
	httputil.WriteData(w, http.StatusOK, authResponse{Authenticated: true, User: user})
}

// Events handles GET /api/auth/events, streaming login, logout and
// session-expired notifications.
func (h *AuthHandler) Events(w http.ResponseWriter, r *http.Request) {
	stream(w, r, h.storefront.Events(), "session", false, h.logger)
}
