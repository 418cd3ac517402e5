package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type tokenContextKey struct{}

// WithToken pins the bearer token to use for a single request, overriding
// whatever the store currently holds. Logout uses it to authenticate the
// backend call after local state is already gone.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext returns a token pinned with WithToken.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenContextKey{}).(string)
	return token, ok && token != ""
}

type tokenClaims struct {
	subject   string
	expiresAt time.Time
}

// decodeClaims reads the subject and expiry of an access token without
// verifying its signature. The backend is the authority on validity; the
// claims only fill in fields a response left out.
func decodeClaims(token string) tokenClaims {
	var out tokenClaims
	if token == "" {
		return out
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return out
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.expiresAt = exp.Time
	}
	if sub, err := claims.GetSubject(); err == nil {
		out.subject = sub
	}
	return out
}
