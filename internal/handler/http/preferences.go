package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/validator"
)

// PreferencesHandler reads and changes the persisted UI language.
type PreferencesHandler struct {
	prefs  Preferences
	logger *slog.Logger
}

// NewPreferencesHandler creates a new preferences HTTP handler.
func NewPreferencesHandler(prefs Preferences, logger *slog.Logger) *PreferencesHandler {
	return &PreferencesHandler{prefs: prefs, logger: logger}
}

type languageBody struct {
	Language string `json:"language" validate:"required,bcp47_language_tag"`
}

// GetLanguage handles GET /api/preferences/language
func (h *PreferencesHandler) GetLanguage(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, languageBody{Language: h.prefs.Language(r.Context())})
}

// SetLanguage handles PUT /api/preferences/language. Later backend calls
// carry the new language in Accept-Language.
func (h *PreferencesHandler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	var body languageBody
	if err := validator.DecodeAndValidate(r, &body); err != nil {
		httputil.WriteError(w, r, validator.ToAppError(err), h.logger)
		return
	}
	if err := h.prefs.SetLanguage(r.Context(), body.Language); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, body)
}
