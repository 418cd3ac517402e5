package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/httputil"
)

// CartHandler handles HTTP requests for cart endpoints. Every endpoint
// answers with the cart snapshot the store holds after the call.
type CartHandler struct {
	cart   Cart
	logger *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(cart Cart, logger *slog.Logger) *CartHandler {
	return &CartHandler{cart: cart, logger: logger}
}

// GetCart handles GET /api/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.cart.LoadCart(r.Context())

	st := h.cart.Snapshot()
	if st.Err != nil {
		httputil.WriteError(w, r, st.Err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, st)
}

// AddItem handles POST /api/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req domain.AddItemRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.respond(w, r, h.cart.AddToCart(r.Context(), req.ProductID, req.Quantity))
}

// UpdateItem handles PUT /api/cart/items/{id}. A quantity of zero or less
// removes the line.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req domain.UpdateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.respond(w, r, h.cart.UpdateQuantity(r.Context(), id, req.Quantity))
}

// RemoveItem handles DELETE /api/cart/items/{id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	h.respond(w, r, h.cart.RemoveFromCart(r.Context(), id))
}

// ClearCart handles DELETE /api/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.cart.ClearCart(r.Context()))
}

// Events handles GET /api/cart/events, streaming every cart snapshot
// starting with the current one.
func (h *CartHandler) Events(w http.ResponseWriter, r *http.Request) {
	stream(w, r, h.cart.State(), "cart", true, h.logger)
}

func (h *CartHandler) respond(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, h.cart.Snapshot())
}
