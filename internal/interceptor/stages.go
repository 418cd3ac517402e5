package interceptor

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/utafrali/storefront/internal/api"
	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/pkg/httpclient"
)

// Session attaches the guest session ID to API requests of unauthenticated
// callers, and the preferred language to every request.
func Session(a Authenticator, sessions SessionSource, prefs LanguageSource, apiPrefix string, logger *slog.Logger) httpclient.Interceptor {
	prefix := "/" + strings.Trim(apiPrefix, "/") + "/"

	return func(next httpclient.Doer) httpclient.Doer {
		return httpclient.DoerFunc(func(req *http.Request) (*http.Response, error) {
			ctx := req.Context()

			if prefs != nil && req.Header.Get(AcceptLanguageHeader) == "" {
				req = req.Clone(ctx)
				req.Header.Set(AcceptLanguageHeader, prefs.Language(ctx))
			}

			if a.IsAuthenticated() || !strings.Contains(req.URL.Path, prefix) {
				return next.Do(req)
			}

			id, err := sessions.GetOrCreate(ctx)
			if err != nil {
				logger.WarnContext(ctx, "sending request without session id",
					slog.String("path", req.URL.Path),
					slog.String("error", err.Error()),
				)
				return next.Do(req)
			}

			req = req.Clone(ctx)
			req.Header.Set(SessionHeader, id)
			return next.Do(req)
		})
	}
}

// Auth attaches the bearer token. A token that expires soon is refreshed
// first; if the refresh fails the stale token is sent anyway and the
// backend's 401 is left to the error stage. Login, register and refresh
// requests are never decorated.
func Auth(a Authenticator, logger *slog.Logger) httpclient.Interceptor {
	return func(next httpclient.Doer) httpclient.Doer {
		return httpclient.DoerFunc(func(req *http.Request) (*http.Response, error) {
			ctx := req.Context()
			if api.IsAuthEndpoint(req.URL.Path) {
				return next.Do(req)
			}

			token, pinned := auth.TokenFromContext(ctx)
			if !pinned {
				token = a.AccessToken()
				if token == "" {
					return next.Do(req)
				}
				if a.IsTokenExpiringSoon() {
					tokens, err := a.RefreshToken(ctx)
					if err != nil {
						logger.WarnContext(ctx, "token refresh failed, sending stale token",
							slog.String("path", req.URL.Path),
							slog.String("error", err.Error()),
						)
					} else {
						token = tokens.AccessToken
					}
				}
			}

			req = req.Clone(ctx)
			req.Header.Set(AuthorizationHeader, "Bearer "+token)
			req.Header.Del(SessionHeader)
			return next.Do(req)
		})
	}
}

// Errors turns transport failures and non-2xx responses into
// *errors.AppError. A 401 on a request that carried a token clears the
// session and notifies the redirector; anonymous 401s have no side effects.
func Errors(a Authenticator, redirector Redirector, loginPath string, logger *slog.Logger) httpclient.Interceptor {
	return func(next httpclient.Doer) httpclient.Doer {
		return httpclient.DoerFunc(func(req *http.Request) (*http.Response, error) {
			ctx := req.Context()
			hadToken := req.Header.Get(AuthorizationHeader) != ""

			resp, err := next.Do(req)
			if err != nil {
				appErr := httpclient.TransportError(err)
				logger.WarnContext(ctx, "backend unreachable",
					slog.String("method", req.Method),
					slog.String("path", req.URL.Path),
					slog.String("kind", string(appErr.Kind)),
					slog.String("error", err.Error()),
				)
				return nil, appErr
			}
			if resp.StatusCode < http.StatusBadRequest {
				return resp, nil
			}

			appErr := httpclient.ParseResponseError(resp)

			if resp.StatusCode == http.StatusUnauthorized && hadToken {
				if _, pinned := auth.TokenFromContext(ctx); !pinned {
					logger.InfoContext(ctx, "session rejected by backend",
						slog.String("path", req.URL.Path),
					)
					a.Expire(ctx)
					if redirector != nil {
						redirector.SessionExpired(ctx, loginPath)
					}
				}
			}

			if appErr.Critical() || appErr.Status >= http.StatusInternalServerError {
				logger.ErrorContext(ctx, "backend request failed",
					slog.String("method", req.Method),
					slog.String("path", req.URL.Path),
					slog.Int("status", resp.StatusCode),
					slog.String("code", appErr.Code),
				)
			}
			return nil, appErr
		})
	}
}
