package storage

import "context"

// Keys persisted by the storefront. Each is owned by exactly one component:
// the auth store owns the token and user keys, the session provider owns the
// session and language keys.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyTokenExpiry  = "token_expires_at"
	KeyUser         = "user"
	KeySessionID    = "session_id"
	KeyLanguage     = "language"
)

// Storage is the persisted key-value state shared by the storefront
// components. Implementations must be safe for concurrent use.
type Storage interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}
