package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/storage"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/observable"
	"github.com/utafrali/storefront/pkg/validator"
)

// ExpiryWindow is how long before expiry a token counts as expiring soon.
const ExpiryWindow = 5 * time.Minute

// RefreshTimeout bounds a shared refresh call. The call outlives the caller
// that started it, so it needs a deadline of its own.
const RefreshTimeout = 30 * time.Second

// ErrNoRefreshToken is returned by RefreshToken when there is nothing to
// refresh with.
var ErrNoRefreshToken = errors.New("no refresh token")

// API is the subset of the backend client the auth store talks to.
type API interface {
	Login(ctx context.Context, creds domain.Credentials) (*domain.AuthResponse, error)
	Register(ctx context.Context, reg domain.Registration) (*domain.AuthResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*domain.RefreshResponse, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (*domain.User, error)
}

// State is the observable authentication status.
type State struct {
	Authenticated bool         `json:"authenticated"`
	User          *domain.User `json:"user,omitempty"`
}

// Store owns the token set and the signed-in user. It is the only writer of
// the token and user storage keys.
type Store struct {
	api     API
	storage storage.Storage
	logger  *slog.Logger
	nowFunc func() time.Time
	group   singleflight.Group

	mu            sync.RWMutex
	tokens        domain.TokenSet
	user          *domain.User
	authenticated bool

	state *observable.Value[State]
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.nowFunc = now }
}

// NewStore creates an auth store and restores a persisted session if its
// token has not expired yet. An expired or unreadable session is cleared.
func NewStore(ctx context.Context, api API, store storage.Storage, logger *slog.Logger, opts ...Option) (*Store, error) {
	s := &Store{
		api:     api,
		storage: store,
		logger:  logger,
		nowFunc: time.Now,
		state:   observable.New(State{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.restore(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) restore(ctx context.Context) error {
	access, _, err := s.storage.Get(ctx, storage.KeyAccessToken)
	if err != nil {
		return fmt.Errorf("restore access token: %w", err)
	}
	refresh, _, err := s.storage.Get(ctx, storage.KeyRefreshToken)
	if err != nil {
		return fmt.Errorf("restore refresh token: %w", err)
	}
	rawExpiry, _, err := s.storage.Get(ctx, storage.KeyTokenExpiry)
	if err != nil {
		return fmt.Errorf("restore token expiry: %w", err)
	}
	rawUser, _, err := s.storage.Get(ctx, storage.KeyUser)
	if err != nil {
		return fmt.Errorf("restore user: %w", err)
	}

	if access == "" && refresh == "" && rawUser == "" {
		return nil
	}

	tokens := domain.TokenSet{AccessToken: access, RefreshToken: refresh}
	if ms, err := strconv.ParseInt(rawExpiry, 10, 64); err == nil {
		tokens.ExpiresAt = time.UnixMilli(ms)
	}

	var user domain.User
	userErr := json.Unmarshal([]byte(rawUser), &user)

	if access == "" || userErr != nil || tokens.Expired(s.nowFunc()) {
		s.logger.InfoContext(ctx, "discarding expired persisted session")
		return s.clearStorage(ctx)
	}

	s.mu.Lock()
	s.tokens = tokens
	s.user = &user
	s.authenticated = true
	s.mu.Unlock()

	s.publish()
	s.logger.InfoContext(ctx, "session restored",
		slog.String("user_id", user.ID),
		slog.Time("expires_at", tokens.ExpiresAt),
	)
	return nil
}

// Login signs in with credentials and persists the resulting session.
func (s *Store) Login(ctx context.Context, creds domain.Credentials) (*domain.User, error) {
	if err := validator.Validate(creds); err != nil {
		return nil, validator.ToAppError(err)
	}

	resp, err := s.api.Login(ctx, creds)
	if err != nil {
		s.logger.WarnContext(ctx, "login failed",
			slog.String("email", creds.Email),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	user := s.establish(ctx, resp)
	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))
	return user, nil
}

// Register creates an account and signs it in.
func (s *Store) Register(ctx context.Context, reg domain.Registration) (*domain.User, error) {
	if err := validator.Validate(reg); err != nil {
		return nil, validator.ToAppError(err)
	}

	resp, err := s.api.Register(ctx, reg)
	if err != nil {
		s.logger.WarnContext(ctx, "registration failed",
			slog.String("email", reg.Email),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	user := s.establish(ctx, resp)
	s.logger.InfoContext(ctx, "user registered", slog.String("user_id", user.ID))
	return user, nil
}

func (s *Store) establish(ctx context.Context, resp *domain.AuthResponse) *domain.User {
	user := resp.User
	claims := decodeClaims(resp.Token)
	if user.ID == "" {
		user.ID = claims.subject
	}

	tokens := domain.TokenSet{
		AccessToken:  resp.Token,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    s.expiry(resp.ExpiresIn, claims),
	}

	s.mu.Lock()
	s.tokens = tokens
	s.user = &user
	s.authenticated = true
	s.mu.Unlock()

	s.persist(ctx, tokens, &user)
	s.publish()

	u := user
	return &u
}

// RefreshToken trades the stored refresh token for a new token set.
// Concurrent callers share a single backend call, which runs detached from
// any one caller's cancellation. A caller that gives up gets its context
// error back while the shared call carries on for the others. When there is
// no refresh token, or the backend rejects it, the local session is cleared.
func (s *Store) RefreshToken(ctx context.Context) (domain.TokenSet, error) {
	ch := s.group.DoChan("refresh", func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), RefreshTimeout)
		defer cancel()
		return s.refresh(callCtx)
	})

	select {
	case <-ctx.Done():
		return domain.TokenSet{}, fmt.Errorf("refresh token: %w", ctx.Err())
	case res := <-ch:
		if res.Shared {
			s.logger.DebugContext(ctx, "joined in-flight token refresh")
		}
		if res.Err != nil {
			return domain.TokenSet{}, res.Err
		}
		return res.Val.(domain.TokenSet), nil
	}
}

func (s *Store) refresh(ctx context.Context) (domain.TokenSet, error) {
	s.mu.RLock()
	refreshToken := s.tokens.RefreshToken
	s.mu.RUnlock()

	if refreshToken == "" {
		s.logger.WarnContext(ctx, "token refresh requested without refresh token")
		s.clear(ctx)
		return domain.TokenSet{}, apperrors.Wrap(ErrNoRefreshToken, "refresh token")
	}

	resp, err := s.api.RefreshToken(ctx, refreshToken)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.logger.WarnContext(ctx, "token refresh did not complete, keeping session", slog.String("error", err.Error()))
		return domain.TokenSet{}, fmt.Errorf("refresh token: %w", err)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "token refresh rejected, logging out", slog.String("error", err.Error()))
		s.clear(ctx)
		return domain.TokenSet{}, fmt.Errorf("refresh token: %w", err)
	}

	tokens := domain.TokenSet{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    s.expiry(resp.ExpiresIn, decodeClaims(resp.AccessToken)),
	}
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = refreshToken
	}

	s.mu.Lock()
	s.tokens = tokens
	s.authenticated = true
	user := s.user
	s.mu.Unlock()

	s.persist(ctx, tokens, user)
	s.publish()

	s.logger.DebugContext(ctx, "access token refreshed", slog.Time("expires_at", tokens.ExpiresAt))
	return tokens, nil
}

// Logout clears the local session immediately, then tells the backend.
// A failed backend call does not undo the local logout.
func (s *Store) Logout(ctx context.Context) {
	s.mu.RLock()
	token := s.tokens.AccessToken
	s.mu.RUnlock()

	s.clear(ctx)
	s.logger.InfoContext(ctx, "user logged out")

	if token == "" {
		return
	}
	if err := s.api.Logout(WithToken(ctx, token)); err != nil {
		s.logger.WarnContext(ctx, "backend logout failed", slog.String("error", err.Error()))
	}
}

// Expire clears the local session without contacting the backend. It is
// used when the backend has already rejected the session.
func (s *Store) Expire(ctx context.Context) {
	s.clear(ctx)
	s.logger.InfoContext(ctx, "session expired")
}

// RefreshUser re-fetches the signed-in user's profile.
func (s *Store) RefreshUser(ctx context.Context) (*domain.User, error) {
	user, err := s.api.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if !s.authenticated {
		s.mu.Unlock()
		return nil, apperrors.Unauthorized("not signed in")
	}
	s.user = user
	tokens := s.tokens
	s.mu.Unlock()

	s.persist(ctx, tokens, user)
	s.publish()

	u := *user
	return &u, nil
}

// IsAuthenticated reports whether a session is established and its access
// token has not expired.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated && !s.tokens.Expired(s.nowFunc())
}

// IsTokenExpiringSoon reports whether the access token expires within
// ExpiryWindow. A token without a recorded expiry counts as expiring.
func (s *Store) IsTokenExpiringSoon() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tokens.ExpiresAt.IsZero() {
		return true
	}
	return !s.nowFunc().Add(ExpiryWindow).Before(s.tokens.ExpiresAt)
}

// AccessToken returns the current access token, or "" when signed out.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens.AccessToken
}

// Tokens returns a copy of the current token set.
func (s *Store) Tokens() domain.TokenSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

// User returns a copy of the signed-in user, or nil.
func (s *Store) User() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// State returns the observable authentication status.
func (s *Store) State() *observable.Value[State] {
	return s.state
}

func (s *Store) expiry(expiresIn int64, claims tokenClaims) time.Time {
	if expiresIn > 0 {
		return s.nowFunc().Add(time.Duration(expiresIn) * time.Second)
	}
	return claims.expiresAt
}

func (s *Store) clear(ctx context.Context) {
	s.mu.Lock()
	s.tokens = domain.TokenSet{}
	s.user = nil
	s.authenticated = false
	s.mu.Unlock()

	if err := s.clearStorage(ctx); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear persisted session", slog.String("error", err.Error()))
	}
	s.publish()
}

func (s *Store) clearStorage(ctx context.Context) error {
	return s.storage.Delete(ctx,
		storage.KeyAccessToken,
		storage.KeyRefreshToken,
		storage.KeyTokenExpiry,
		storage.KeyUser,
	)
}

// persist writes the session to storage. Failures are logged; the in-memory
// session stays valid for the life of the process.
func (s *Store) persist(ctx context.Context, tokens domain.TokenSet, user *domain.User) {
	values := map[string]string{
		storage.KeyAccessToken:  tokens.AccessToken,
		storage.KeyRefreshToken: tokens.RefreshToken,
	}
	if !tokens.ExpiresAt.IsZero() {
		values[storage.KeyTokenExpiry] = strconv.FormatInt(tokens.ExpiresAt.UnixMilli(), 10)
	}
	if user != nil {
		data, err := json.Marshal(user)
		if err == nil {
			values[storage.KeyUser] = string(data)
		}
	}

	for key, value := range values {
		if err := s.storage.Set(ctx, key, value); err != nil {
			s.logger.ErrorContext(ctx, "failed to persist session",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			return
		}
	}
	if tokens.ExpiresAt.IsZero() {
		_ = s.storage.Delete(ctx, storage.KeyTokenExpiry)
	}
}

func (s *Store) publish() {
	s.mu.RLock()
	st := State{Authenticated: s.authenticated}
	if s.user != nil {
		u := *s.user
		st.User = &u
	}
	s.mu.RUnlock()
	s.state.Set(st)
}
