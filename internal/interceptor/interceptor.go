package interceptor

import (
	"context"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/httpclient"
)

// Request headers owned by the pipeline. A request carries at most one of
// SessionHeader and AuthorizationHeader.
const (
	SessionHeader        = "X-Session-Id"
	AuthorizationHeader  = "Authorization"
	AcceptLanguageHeader = "Accept-Language"
)

// Authenticator is the view of the auth store the stages need.
type Authenticator interface {
	IsAuthenticated() bool
	IsTokenExpiringSoon() bool
	AccessToken() string
	RefreshToken(ctx context.Context) (domain.TokenSet, error)
	Expire(ctx context.Context)
}

// SessionSource hands out the guest session ID.
type SessionSource interface {
	GetOrCreate(ctx context.Context) (string, error)
}

// LanguageSource returns the preferred UI language.
type LanguageSource interface {
	Language(ctx context.Context) string
}

// Redirector is told when the backend rejects a session the client believed
// was valid, so the UI can prompt for a new login.
type Redirector interface {
	SessionExpired(ctx context.Context, loginPath string)
}

// RedirectFunc adapts a function to Redirector.
type RedirectFunc func(ctx context.Context, loginPath string)

// SessionExpired calls f.
func (f RedirectFunc) SessionExpired(ctx context.Context, loginPath string) {
	f(ctx, loginPath)
}

// Config wires the storefront stages.
type Config struct {
	Auth           Authenticator
	Sessions       SessionSource
	Preferences    LanguageSource
	Redirector     Redirector
	APIPrefix      string
	LoginPath      string
	RequestLogging bool
	Logger         *slog.Logger
}

// Stages returns the storefront stages in their fixed order: session ID,
// auth, optional logging, error normalization. The first stage is the
// outermost one.
func Stages(cfg Config) []httpclient.Interceptor {
	stages := []httpclient.Interceptor{
		Session(cfg.Auth, cfg.Sessions, cfg.Preferences, cfg.APIPrefix, cfg.Logger),
		Auth(cfg.Auth, cfg.Logger),
	}
	if cfg.RequestLogging {
		stages = append(stages, httpclient.Logging(cfg.Logger))
	}
	return append(stages, Errors(cfg.Auth, cfg.Redirector, cfg.LoginPath, cfg.Logger))
}
