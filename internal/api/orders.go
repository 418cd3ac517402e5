package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/utafrali/storefront/internal/domain"
)

// ListOrders returns the signed-in user's orders.
func (c *Client) ListOrders(ctx context.Context) ([]domain.Order, error) {
	var out []domain.Order
	if err := c.do(ctx, http.MethodGet, PathOrders, nil, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Order{}
	}
	return out, nil
}

// GetOrder fetches a single order.
func (c *Client) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	var out domain.Order
	if err := c.do(ctx, http.MethodGet, orderPath(PathOrders, id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateOrder places an order from the current cart.
func (c *Client) CreateOrder(ctx context.Context, req domain.CheckoutRequest) (*domain.Order, error) {
	var out domain.Order
	if err := c.do(ctx, http.MethodPost, PathOrders, nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateOrderStatus changes an order's status (back-office only).
func (c *Client) UpdateOrderStatus(ctx context.Context, id int64, status string) (*domain.Order, error) {
	var out domain.Order
	body := domain.OrderStatusUpdate{Status: status}
	if err := c.do(ctx, http.MethodPut, orderPath(PathAdminOrders, id)+"/status", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func orderPath(base string, id int64) string {
	return base + "/" + strconv.FormatInt(id, 10)
}
