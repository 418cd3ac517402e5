package api

import (
	"context"
	"net/http"

	"github.com/utafrali/storefront/internal/domain"
)

// Login exchanges credentials for a token set and user.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.AuthResponse, error) {
	var out domain.AuthResponse
	if err := c.do(ctx, http.MethodPost, PathLogin, nil, creds, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account and signs it in.
func (c *Client) Register(ctx context.Context, reg domain.Registration) (*domain.AuthResponse, error) {
	var out domain.AuthResponse
	if err := c.do(ctx, http.MethodPost, PathRegister, nil, reg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RefreshToken trades a refresh token for a new token pair.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*domain.RefreshResponse, error) {
	body := map[string]string{"refreshToken": refreshToken}
	var out domain.RefreshResponse
	if err := c.do(ctx, http.MethodPost, PathRefreshToken, nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout tells the backend to revoke the current session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, PathLogout, nil, struct{}{}, nil)
}

// CurrentUser fetches the signed-in user's profile.
func (c *Client) CurrentUser(ctx context.Context) (*domain.User, error) {
	var out domain.User
	if err := c.do(ctx, http.MethodGet, PathCurrentUser, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
