package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/observable"
)

// Authenticator is the auth store surface the storefront orchestrates.
type Authenticator interface {
	Login(ctx context.Context, creds domain.Credentials) (*domain.User, error)
	Register(ctx context.Context, reg domain.Registration) (*domain.User, error)
	Logout(ctx context.Context)
	User() *domain.User
}

// Cart is the cart store surface the storefront orchestrates.
type Cart interface {
	LoadCart(ctx context.Context)
	MergeGuestCart(ctx context.Context)
}

// Orders is the order store surface the storefront orchestrates.
type Orders interface {
	Reset()
}

// Session event types.
const (
	EventLoggedIn       = "logged_in"
	EventLoggedOut      = "logged_out"
	EventSessionExpired = "session_expired"
)

// SessionEvent tells the UI that the signed-in identity changed.
type SessionEvent struct {
	Type      string    `json:"type"`
	LoginPath string    `json:"loginPath,omitempty"`
	At        time.Time `json:"at"`
}

// Storefront ties the stores together for flows that span more than one of
// them.
type Storefront struct {
	auth    Authenticator
	cart    Cart
	orders  Orders
	logger  *slog.Logger
	nowFunc func() time.Time
	events  *observable.Value[SessionEvent]
}

// NewStorefront creates the storefront service.
func NewStorefront(auth Authenticator, cart Cart, orders Orders, logger *slog.Logger) *Storefront {
	return &Storefront{
		auth:    auth,
		cart:    cart,
		orders:  orders,
		logger:  logger,
		nowFunc: time.Now,
		events:  observable.New(SessionEvent{}),
	}
}

// Events returns the observable stream of session events.
func (s *Storefront) Events() *observable.Value[SessionEvent] {
	return s.events
}

// Login signs the user in and folds the guest cart into theirs.
func (s *Storefront) Login(ctx context.Context, creds domain.Credentials) (*domain.User, error) {
	user, err := s.auth.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	s.signedIn(ctx)
	return user, nil
}

// Register creates an account, signs it in and folds the guest cart into it.
func (s *Storefront) Register(ctx context.Context, reg domain.Registration) (*domain.User, error) {
	user, err := s.auth.Register(ctx, reg)
	if err != nil {
		return nil, err
	}
	s.signedIn(ctx)
	return user, nil
}

func (s *Storefront) signedIn(ctx context.Context) {
	s.orders.Reset()
	s.cart.MergeGuestCart(ctx)
	s.publish(SessionEvent{Type: EventLoggedIn})
}

// Logout signs the user out and switches the cart back to a guest cart.
func (s *Storefront) Logout(ctx context.Context) {
	s.auth.Logout(ctx)
	s.orders.Reset()
	s.cart.LoadCart(ctx)
	s.publish(SessionEvent{Type: EventLoggedOut})
}

// SessionExpired records that the backend rejected the session. The auth
// store has already been cleared; the UI is expected to send the user to
// loginPath.
func (s *Storefront) SessionExpired(ctx context.Context, loginPath string) {
	s.logger.InfoContext(ctx, "session expired, login required", slog.String("login_path", loginPath))
	s.orders.Reset()
	s.publish(SessionEvent{Type: EventSessionExpired, LoginPath: loginPath})
}

func (s *Storefront) publish(e SessionEvent) {
	e.At = s.nowFunc()
	s.events.Set(e)
}
