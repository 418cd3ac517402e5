package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/utafrali/storefront/internal/domain"
)

// GetCart fetches the cart the backend associates with the request identity.
func (c *Client) GetCart(ctx context.Context) (*domain.Cart, error) {
	var out domain.Cart
	if err := c.do(ctx, http.MethodGet, PathCart, nil, nil, &out); err != nil {
		return nil, err
	}
	return normalizeCart(&out), nil
}

// AddCartItem adds quantity units of a product.
func (c *Client) AddCartItem(ctx context.Context, productID int64, quantity int) (*domain.Cart, error) {
	body := domain.AddItemRequest{ProductID: productID, Quantity: quantity}
	return c.cartMutation(ctx, http.MethodPost, PathCartItems, body)
}

// UpdateCartItem sets the quantity of a cart line.
func (c *Client) UpdateCartItem(ctx context.Context, itemID int64, quantity int) (*domain.Cart, error) {
	body := domain.UpdateItemRequest{Quantity: quantity}
	return c.cartMutation(ctx, http.MethodPut, itemPath(itemID), body)
}

// RemoveCartItem deletes a cart line.
func (c *Client) RemoveCartItem(ctx context.Context, itemID int64) (*domain.Cart, error) {
	return c.cartMutation(ctx, http.MethodDelete, itemPath(itemID), nil)
}

// ClearCart empties the cart. The backend returns no body.
func (c *Client) ClearCart(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, PathCartClear, nil, nil, nil)
}

// MergeCart folds the guest cart identified by sessionID into the signed-in
// user's cart. The body is the session ID as a bare JSON string.
func (c *Client) MergeCart(ctx context.Context, sessionID string) (*domain.Cart, error) {
	return c.cartMutation(ctx, http.MethodPost, PathCartMerge, sessionID)
}

func (c *Client) cartMutation(ctx context.Context, method, path string, body any) (*domain.Cart, error) {
	var out domain.CartEnvelope
	if err := c.do(ctx, method, path, nil, body, &out); err != nil {
		return nil, err
	}
	return normalizeCart(&out.Cart), nil
}

func itemPath(itemID int64) string {
	return PathCartItems + "/" + strconv.FormatInt(itemID, 10)
}

// normalizeCart guarantees a non-nil item slice.
func normalizeCart(c *domain.Cart) *domain.Cart {
	if c.Items == nil {
		c.Items = []domain.CartItem{}
	}
	return c
}
