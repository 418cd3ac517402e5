package domain

// Cart is the authoritative cart snapshot returned by the backend. Whether it
// belongs to a guest session or a user is decided server-side.
type Cart struct {
	Items      []CartItem `json:"items"`
	TotalItems int        `json:"totalItems"`
	TotalPrice float64    `json:"totalPrice"`
}

// CartItem represents a single line in the cart.
type CartItem struct {
	ID        int64   `json:"id"`
	ProductID int64   `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Image     string  `json:"image,omitempty"`
	Category  string  `json:"category,omitempty"`
}

// Subtotal returns price times quantity for the line.
func (i CartItem) Subtotal() float64 {
	return i.Price * float64(i.Quantity)
}

// EmptyCart returns a cart with no items.
func EmptyCart() Cart {
	return Cart{Items: []CartItem{}}
}

// IsEmpty reports whether the cart holds no items.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// ItemCount sums the quantities of all lines.
func (c Cart) ItemCount() int {
	var count int
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// ItemsTotal sums the line subtotals.
func (c Cart) ItemsTotal() float64 {
	var total float64
	for _, item := range c.Items {
		total += item.Subtotal()
	}
	return total
}

// FindItem returns the line with the given ID.
func (c Cart) FindItem(itemID int64) (CartItem, bool) {
	for _, item := range c.Items {
		if item.ID == itemID {
			return item, true
		}
	}
	return CartItem{}, false
}

// Clone returns a deep copy so snapshots handed to observers can't be
// mutated through a shared backing array.
func (c Cart) Clone() Cart {
	items := make([]CartItem, len(c.Items))
	copy(items, c.Items)
	c.Items = items
	return c
}

// AddItemRequest is the body of POST cart/items.
type AddItemRequest struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gte=1,lte=100"`
}

// UpdateItemRequest is the body of PUT cart/items/{id}.
type UpdateItemRequest struct {
	Quantity int `json:"quantity"`
}

// CartEnvelope wraps the cart returned by cart mutations.
type CartEnvelope struct {
	Cart Cart `json:"cart"`
}
