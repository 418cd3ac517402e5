package domain

import "time"

// Order statuses used by the back-office.
const (
	OrderStatusPending    = "Pending"
	OrderStatusProcessing = "Processing"
	OrderStatusShipped    = "Shipped"
	OrderStatusDelivered  = "Delivered"
	OrderStatusCancelled  = "Cancelled"
)

// ValidOrderStatuses lists the statuses an admin may set.
var ValidOrderStatuses = []string{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// Order is a placed order.
type Order struct {
	ID              int64       `json:"id"`
	UserID          string      `json:"userId"`
	Items           []OrderItem `json:"items"`
	TotalAmount     float64     `json:"totalAmount"`
	Status          string      `json:"status"`
	ShippingAddress string      `json:"shippingAddress"`
	PaymentMethod   string      `json:"paymentMethod,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
}

// OrderItem is a line of a placed order.
type OrderItem struct {
	ProductID   int64   `json:"productId"`
	ProductName string  `json:"productName"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
}

// CheckoutRequest places an order from the current cart.
type CheckoutRequest struct {
	ShippingAddress string `json:"shippingAddress" validate:"required,max=500"`
	PaymentMethod   string `json:"paymentMethod" validate:"required,oneof=card cash paypal"`
}

// OrderStatusUpdate is the body of the admin status change.
type OrderStatusUpdate struct {
	Status string `json:"status" validate:"required"`
}
