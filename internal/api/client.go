package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/utafrali/storefront/pkg/httpclient"
)

// Backend paths, relative to the API prefix.
const (
	PathLogin        = "auth/login"
	PathRegister     = "auth/register"
	PathRefreshToken = "auth/refresh-token"
	PathLogout       = "auth/logout"
	PathCurrentUser  = "auth/me"
	PathCart         = "cart"
	PathCartItems    = "cart/items"
	PathCartClear    = "cart/clear"
	PathCartMerge    = "cart/merge"
	PathProducts     = "products"
	PathCategories   = "categories"
	PathOrders       = "orders"
	PathAdminOrders  = "admin/orders"
)

// Client is a typed client for the storefront REST backend. Every call goes
// through the configured Doer, normally the interceptor pipeline.
type Client struct {
	doer    httpclient.Doer
	baseURL *url.URL
	prefix  string
}

// New creates an API client for baseURL. prefix is the path under which the
// backend serves its API, e.g. "/api/".
func New(baseURL, prefix string, doer httpclient.Doer) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api base url %q must be absolute", baseURL)
	}
	return &Client{
		doer:    doer,
		baseURL: u,
		prefix:  "/" + strings.Trim(prefix, "/") + "/",
	}, nil
}

// URL returns the absolute URL of an API path.
func (c *Client) URL(path string) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + c.prefix + strings.TrimLeft(path, "/")
	return u.String()
}

// do sends a JSON request and decodes a JSON response into out (if non-nil).
// Non-2xx responses and transport failures are returned as *errors.AppError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	target := c.URL(path)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create %s %s request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return httpclient.TransportError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return httpclient.ParseResponseError(resp)
	}
	defer func() { _ = resp.Body.Close() }()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return httpclient.TransportError(fmt.Errorf("read %s response: %w", path, err))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// IsAuthEndpoint reports whether path is one of the endpoints that establish
// a session (login, register, refresh). Those never carry a bearer token.
func IsAuthEndpoint(path string) bool {
	for _, p := range []string{PathLogin, PathRegister, PathRefreshToken} {
		if strings.HasSuffix(strings.TrimRight(path, "/"), "/"+p) {
			return true
		}
	}
	return false
}
