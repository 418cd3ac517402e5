package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/pagination"
)

// CatalogHandler handles HTTP requests for product and category endpoints.
type CatalogHandler struct {
	catalog Catalog
	logger  *slog.Logger
}

// NewCatalogHandler creates a new catalog HTTP handler.
func NewCatalogHandler(catalog Catalog, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

// productPage is the list response. It adds the derived page counts to the
// backend page.
type productPage struct {
	pagination.Result[domain.Product]
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
}

// ListProducts handles GET /api/products?page&per_page&search&category
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	p := pagination.FromRequest(r)
	q := domain.ProductQuery{
		Search:  strings.TrimSpace(r.URL.Query().Get("search")),
		Page:    p.Page,
		PerPage: p.PerPage,
	}
	if c := r.URL.Query().Get("category"); c != "" {
		id, err := strconv.ParseInt(c, 10, 64)
		if err != nil || id < 1 {
			httputil.WriteError(w, r, apperrors.InvalidInput("invalid category: "+c), h.logger)
			return
		}
		q.CategoryID = id
	}

	page, err := h.catalog.LoadProducts(r.Context(), q)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, productPage{
		Result:     *page,
		TotalPages: page.TotalPages(),
		HasNext:    page.HasNext(),
	})
}

// GetProduct handles GET /api/products/{id}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	product, err := h.catalog.LoadProduct(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, product)
}

// ListCategories handles GET /api/categories
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.LoadCategories(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, categories)
}
