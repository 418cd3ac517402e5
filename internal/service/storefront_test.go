package service

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// --- Mocks ---

type mockAuth struct {
	mock.Mock
}

func (m *mockAuth) Login(ctx context.Context, creds domain.Credentials) (*domain.User, error) {
	args := m.Called(ctx, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockAuth) Register(ctx context.Context, reg domain.Registration) (*domain.User, error) {
	args := m.Called(ctx, reg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockAuth) Logout(ctx context.Context) {
	m.Called(ctx)
}

func (m *mockAuth) User() *domain.User {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*domain.User)
}

type mockCart struct {
	mock.Mock
}

func (m *mockCart) LoadCart(ctx context.Context)       { m.Called(ctx) }
func (m *mockCart) MergeGuestCart(ctx context.Context) { m.Called(ctx) }

type mockOrders struct {
	mock.Mock
}

func (m *mockOrders) Reset() { m.Called() }

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestStorefront() (*Storefront, *mockAuth, *mockCart, *mockOrders) {
	a, c, o := new(mockAuth), new(mockCart), new(mockOrders)
	return NewStorefront(a, c, o, newTestLogger()), a, c, o
}

var creds = domain.Credentials{Email: "ada@example.com", Password: "secret1"}

// --- Tests ---

func TestLogin_MergesGuestCart(t *testing.T) {
	s, a, c, o := newTestStorefront()
	a.On("Login", mock.Anything, creds).Return(&domain.User{ID: "u1"}, nil)
	o.On("Reset").Return()
	c.On("MergeGuestCart", mock.Anything).Return()

	user, err := s.Login(context.Background(), creds)
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, EventLoggedIn, s.Events().Get().Type)
	c.AssertExpectations(t)
	c.AssertNotCalled(t, "LoadCart", mock.Anything)
}

func TestLogin_FailureLeavesCartAlone(t *testing.T) {
	s, a, c, _ := newTestStorefront()
	a.On("Login", mock.Anything, creds).Return(nil, apperrors.Unauthorized("Invalid email or password"))

	_, err := s.Login(context.Background(), creds)
	require.Error(t, err)
	c.AssertNotCalled(t, "MergeGuestCart", mock.Anything)
	assert.Empty(t, s.Events().Get().Type)
}

func TestRegister_MergesGuestCart(t *testing.T) {
	s, a, c, o := newTestStorefront()
	reg := domain.Registration{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Password: "secret1"}
	a.On("Register", mock.Anything, reg).Return(&domain.User{ID: "u2"}, nil)
	o.On("Reset").Return()
	c.On("MergeGuestCart", mock.Anything).Return()

	_, err := s.Register(context.Background(), reg)
	require.NoError(t, err)
	c.AssertExpectations(t)
}

func TestLogout_ReloadsGuestCart(t *testing.T) {
	s, a, c, o := newTestStorefront()
	a.On("Logout", mock.Anything).Return()
	o.On("Reset").Return()
	c.On("LoadCart", mock.Anything).Return()

	s.Logout(context.Background())

	a.AssertExpectations(t)
	c.AssertExpectations(t)
	assert.Equal(t, EventLoggedOut, s.Events().Get().Type)
}

func TestSessionExpired_PublishesEvent(t *testing.T) {
	s, _, _, o := newTestStorefront()
	o.On("Reset").Return()

	var got SessionEvent
	s.Events().Subscribe(func(e SessionEvent) { got = e })

	s.SessionExpired(context.Background(), "/login")

	assert.Equal(t, EventSessionExpired, got.Type)
	assert.Equal(t, "/login", got.LoginPath)
	assert.False(t, got.At.IsZero())
}
