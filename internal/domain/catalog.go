package domain

// Product is a catalog entry.
type Product struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description,omitempty"`
	Price         float64 `json:"price"`
	ImageURL      string  `json:"imageUrl,omitempty"`
	CategoryID    int64   `json:"categoryId"`
	CategoryName  string  `json:"categoryName,omitempty"`
	StockQuantity int     `json:"stockQuantity"`
	Slug          string  `json:"slug,omitempty"`
}

// InStock reports whether at least one unit is available.
func (p Product) InStock() bool {
	return p.StockQuantity > 0
}

// Category groups products.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Slug        string `json:"slug,omitempty"`
}

// ProductQuery filters a product listing.
type ProductQuery struct {
	Search     string
	CategoryID int64
	Page       int
	PerPage    int
}
