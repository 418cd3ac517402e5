package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/observable"
	"github.com/utafrali/storefront/pkg/pagination"
)

// DefaultProductTTL is how long a fetched product is served from cache.
const DefaultProductTTL = time.Minute

// CatalogAPI is the backend surface the catalog store uses.
type CatalogAPI interface {
	ListProducts(ctx context.Context, q domain.ProductQuery) (*pagination.Result[domain.Product], error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

// CatalogState is the observable catalog snapshot.
type CatalogState struct {
	Status
	Query      domain.ProductQuery               `json:"-"`
	Products   pagination.Result[domain.Product] `json:"products"`
	Categories []domain.Category                 `json:"categories"`
}

type cachedProduct struct {
	product   domain.Product
	fetchedAt time.Time
}

// CatalogStore caches read-mostly catalog data.
type CatalogStore struct {
	api     CatalogAPI
	logger  *slog.Logger
	timeout time.Duration
	ttl     time.Duration
	nowFunc func() time.Time

	mu         sync.Mutex
	inFlight   int
	listSeq    uint64
	products   map[int64]cachedProduct
	categories []domain.Category

	state *observable.Value[CatalogState]
}

// NewCatalogStore creates a catalog store. Zero durations select the
// defaults.
func NewCatalogStore(api CatalogAPI, logger *slog.Logger, timeout, productTTL time.Duration) *CatalogStore {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if productTTL == 0 {
		productTTL = DefaultProductTTL
	}
	return &CatalogStore{
		api:      api,
		logger:   logger,
		timeout:  timeout,
		ttl:      productTTL,
		nowFunc:  time.Now,
		products: make(map[int64]cachedProduct),
		state: observable.New(CatalogState{
			Products:   pagination.Result[domain.Product]{Items: []domain.Product{}},
			Categories: []domain.Category{},
		}),
	}
}

// State returns the observable snapshot.
func (s *CatalogStore) State() *observable.Value[CatalogState] {
	return s.state
}

// LoadProducts fetches one page of products. The newest query wins if
// several are in flight.
func (s *CatalogStore) LoadProducts(ctx context.Context, q domain.ProductQuery) (*pagination.Result[domain.Product], error) {
	s.mu.Lock()
	s.listSeq++
	seq := s.listSeq
	s.mu.Unlock()

	ctx, done := s.begin(ctx)
	defer done()

	page, err := s.api.ListProducts(ctx, q)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load products", slog.String("error", err.Error()))
		return nil, s.fail(err)
	}

	now := s.nowFunc()
	s.mu.Lock()
	for _, p := range page.Items {
		s.products[p.ID] = cachedProduct{product: p, fetchedAt: now}
	}
	if seq == s.listSeq {
		result := *page
		s.state.Update(func(st CatalogState) CatalogState {
			st.Query = q
			st.Products = result
			st.Err = nil
			return st
		})
	}
	s.mu.Unlock()

	return page, nil
}

// LoadProduct returns a product, from cache when it is fresh enough.
func (s *CatalogStore) LoadProduct(ctx context.Context, id int64) (*domain.Product, error) {
	s.mu.Lock()
	cached, ok := s.products[id]
	s.mu.Unlock()
	if ok && s.nowFunc().Sub(cached.fetchedAt) < s.ttl {
		p := cached.product
		return &p, nil
	}

	ctx, done := s.begin(ctx)
	defer done()

	product, err := s.api.GetProduct(ctx, id)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load product",
			slog.Int64("product_id", id),
			slog.String("error", err.Error()),
		)
		return nil, s.fail(err)
	}

	s.mu.Lock()
	s.products[id] = cachedProduct{product: *product, fetchedAt: s.nowFunc()}
	s.mu.Unlock()
	return product, nil
}

// LoadCategories returns the category list, fetching it once.
func (s *CatalogStore) LoadCategories(ctx context.Context) ([]domain.Category, error) {
	s.mu.Lock()
	cached := s.categories
	s.mu.Unlock()
	if cached != nil {
		return append([]domain.Category(nil), cached...), nil
	}

	ctx, done := s.begin(ctx)
	defer done()

	categories, err := s.api.ListCategories(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load categories", slog.String("error", err.Error()))
		return nil, s.fail(err)
	}

	s.mu.Lock()
	s.categories = categories
	s.state.Update(func(st CatalogState) CatalogState {
		st.Categories = categories
		return st
	})
	s.mu.Unlock()
	return append([]domain.Category(nil), categories...), nil
}

// Invalidate drops every cached product and the category list.
func (s *CatalogStore) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = make(map[int64]cachedProduct)
	s.categories = nil
}

func (s *CatalogStore) begin(ctx context.Context) (context.Context, func()) {
	s.mu.Lock()
	s.inFlight++
	s.state.Update(func(st CatalogState) CatalogState {
		st.Loading = true
		return st
	})
	s.mu.Unlock()

	ctx, cancel := withTimeout(ctx, s.timeout)
	return ctx, func() {
		cancel()
		s.mu.Lock()
		s.inFlight--
		loading := s.inFlight > 0
		s.state.Update(func(st CatalogState) CatalogState {
			st.Loading = loading
			return st
		})
		s.mu.Unlock()
	}
}

func (s *CatalogStore) fail(err error) error {
	appErr := normalize(err)
	s.mu.Lock()
	s.state.Update(func(st CatalogState) CatalogState {
		st.Err = appErr
		return st
	})
	s.mu.Unlock()
	return appErr
}
