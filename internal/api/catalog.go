package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/pagination"
	"github.com/utafrali/storefront/pkg/slug"
)

// ListProducts returns one page of the catalog.
func (c *Client) ListProducts(ctx context.Context, q domain.ProductQuery) (*pagination.Result[domain.Product], error) {
	query := url.Values{}
	pagination.Params{Page: q.Page, PerPage: q.PerPage}.Apply(query)
	if q.Search != "" {
		query.Set("search", q.Search)
	}
	if q.CategoryID > 0 {
		query.Set("categoryId", strconv.FormatInt(q.CategoryID, 10))
	}

	var out pagination.Result[domain.Product]
	if err := c.do(ctx, http.MethodGet, PathProducts, query, nil, &out); err != nil {
		return nil, err
	}
	if out.Items == nil {
		out.Items = []domain.Product{}
	}
	for i := range out.Items {
		withSlug(&out.Items[i])
	}
	return &out, nil
}

// GetProduct fetches a single product.
func (c *Client) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var out domain.Product
	if err := c.do(ctx, http.MethodGet, PathProducts+"/"+strconv.FormatInt(id, 10), nil, nil, &out); err != nil {
		return nil, err
	}
	withSlug(&out)
	return &out, nil
}

// ListCategories returns every category.
func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	if err := c.do(ctx, http.MethodGet, PathCategories, nil, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Category{}
	}
	for i := range out {
		if out[i].Slug == "" {
			out[i].Slug = slug.Generate(out[i].Name)
		}
	}
	return out, nil
}

// withSlug fills in the product's link slug when the backend sends none.
func withSlug(p *domain.Product) {
	if p.Slug == "" {
		p.Slug = slug.WithID(p.ID, p.Name)
	}
}
