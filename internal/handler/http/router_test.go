package http

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/internal/store"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/observable"
	"github.com/utafrali/storefront/pkg/pagination"
)

// ============================================================================
// Fakes
// ============================================================================

type mockStorefront struct {
	mock.Mock
	events *observable.Value[service.SessionEvent]
}

func (m *mockStorefront) Login(ctx context.Context, creds domain.Credentials) (*domain.User, error) {
	args := m.Called(ctx, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockStorefront) Register(ctx context.Context, reg domain.Registration) (*domain.User, error) {
	args := m.Called(ctx, reg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockStorefront) Logout(ctx context.Context) {
	m.Called(ctx)
}

func (m *mockStorefront) Events() *observable.Value[service.SessionEvent] {
	return m.events
}

type fakeSession struct {
	user       *domain.User
	refreshed  *domain.User
	refreshErr error
}

func (f *fakeSession) IsAuthenticated() bool { return f.user != nil }
func (f *fakeSession) User() *domain.User    { return f.user }

func (f *fakeSession) RefreshUser(context.Context) (*domain.User, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshed, nil
}

// fakeCart keeps a cart snapshot in an observable the way the real store
// does, adding one line per AddToCart.
type fakeCart struct {
	mu      sync.Mutex
	state   *observable.Value[store.CartState]
	loadErr *apperrors.AppError
	err     error
	removed []int64
}

func newFakeCart() *fakeCart {
	return &fakeCart{state: observable.New(store.CartState{Cart: domain.EmptyCart()})}
}

func (f *fakeCart) State() *observable.Value[store.CartState] { return f.state }
func (f *fakeCart) Snapshot() store.CartState                 { return f.state.Get() }

func (f *fakeCart) LoadCart(context.Context) {
	f.state.Update(func(st store.CartState) store.CartState {
		st.Err = f.loadErr
		if f.loadErr != nil {
			st.Cart = domain.EmptyCart()
		}
		return st
	})
}

func (f *fakeCart) AddToCart(_ context.Context, productID int64, quantity int) error {
	if f.err != nil {
		return f.err
	}
	f.state.Update(func(st store.CartState) store.CartState {
		c := st.Cart.Clone()
		c.Items = append(c.Items, domain.CartItem{ID: int64(len(c.Items) + 1), ProductID: productID, Quantity: quantity, Price: 10})
		c.TotalItems += quantity
		c.TotalPrice += 10 * float64(quantity)
		st.Cart = c
		return st
	})
	return nil
}

func (f *fakeCart) UpdateQuantity(_ context.Context, itemID int64, quantity int) error {
	if quantity <= 0 {
		return f.RemoveFromCart(context.Background(), itemID)
	}
	return f.err
}

func (f *fakeCart) RemoveFromCart(_ context.Context, itemID int64) error {
	f.mu.Lock()
	f.removed = append(f.removed, itemID)
	f.mu.Unlock()
	return f.err
}

func (f *fakeCart) ClearCart(context.Context) error {
	f.state.Set(store.CartState{Cart: domain.EmptyCart()})
	return f.err
}

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) LoadProducts(ctx context.Context, q domain.ProductQuery) (*pagination.Result[domain.Product], error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pagination.Result[domain.Product]), args.Error(1)
}

func (m *mockCatalog) LoadProduct(ctx context.Context, id int64) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockCatalog) LoadCategories(ctx context.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Category), args.Error(1)
}

type mockOrders struct {
	mock.Mock
}

func (m *mockOrders) LoadOrders(ctx context.Context) ([]domain.Order, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Order), args.Error(1)
}

func (m *mockOrders) LoadOrder(ctx context.Context, id int64) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrders) Checkout(ctx context.Context, req domain.CheckoutRequest) (*domain.Order, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrders) UpdateOrderStatus(ctx context.Context, id int64, status string) (*domain.Order, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

type memPrefs struct {
	mu   sync.Mutex
	lang string
}

func (p *memPrefs) Language(context.Context) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lang == "" {
		return "en"
	}
	return p.lang
}

func (p *memPrefs) SetLanguage(_ context.Context, lang string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lang = lang
	return nil
}

// ============================================================================
// Test helpers
// ============================================================================

type testDeps struct {
	storefront *mockStorefront
	session    *fakeSession
	cart       *fakeCart
	catalog    *mockCatalog
	orders     *mockOrders
	prefs      *memPrefs
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestRouter() (http.Handler, *testDeps) {
	d := &testDeps{
		storefront: &mockStorefront{events: observable.New(service.SessionEvent{})},
		session:    &fakeSession{},
		cart:       newFakeCart(),
		catalog:    new(mockCatalog),
		orders:     new(mockOrders),
		prefs:      &memPrefs{},
	}
	router := NewRouter(RouterConfig{
		Storefront:     d.storefront,
		Session:        d.session,
		Cart:           d.cart,
		Catalog:        d.catalog,
		Orders:         d.orders,
		Preferences:    d.prefs,
		Health:         health.NewHandler(),
		Logger:         testLogger(),
		CORS:           middleware.DefaultCORSConfig(),
		RequestTimeout: 5 * time.Second,
		CatalogMaxAge:  60,
	})
	return router, d
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var resp struct {
		Data  T                       `json:"data"`
		Error *httputil.ErrorResponse `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Nil(t, resp.Error)
	return resp.Data
}

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) *httputil.ErrorResponse {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	return resp.Error
}

// readEvent reads one server-sent event, skipping heartbeats.
func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var event, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && event != "":
			return event, data
		}
	}
}

// ============================================================================
// Auth
// ============================================================================

func TestLogin_Success(t *testing.T) {
	router, d := newTestRouter()
	creds := domain.Credentials{Email: "ada@example.com", Password: "secret1"}
	d.storefront.On("Login", mock.Anything, creds).Return(&domain.User{ID: "u1", Email: creds.Email}, nil)

	rec := do(router, http.MethodPost, "/api/auth/login", `{"email":"ada@example.com","password":"secret1"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeData[authResponse](t, rec)
	assert.True(t, got.Authenticated)
	assert.Equal(t, "u1", got.User.ID)
}

func TestLogin_ValidationError(t *testing.T) {
	router, d := newTestRouter()

	rec := do(router, http.MethodPost, "/api/auth/login", `{"email":"not-an-email","password":"x"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErr(t, rec)
	assert.Equal(t, apperrors.KindBadRequest, body.Kind)
	assert.Contains(t, body.Fields, "email")
	assert.Contains(t, body.Fields, "password")
	d.storefront.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
}

func TestLogin_MalformedBody(t *testing.T) {
	router, _ := newTestRouter()

	rec := do(router, http.MethodPost, "/api/auth/login", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_BackendRejects(t *testing.T) {
	router, d := newTestRouter()
	d.storefront.On("Login", mock.Anything, mock.Anything).Return(nil, apperrors.Unauthorized("Invalid email or password"))

	rec := do(router, http.MethodPost, "/api/auth/login", `{"email":"ada@example.com","password":"wrong12"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeErr(t, rec)
	assert.Equal(t, "Invalid email or password", body.Message)
	assert.False(t, body.Critical)
}

func TestRegister_Created(t *testing.T) {
	router, d := newTestRouter()
	d.storefront.On("Register", mock.Anything, mock.Anything).Return(&domain.User{ID: "u2"}, nil)

	rec := do(router, http.MethodPost, "/api/auth/register",
		`{"firstName":"Ada","lastName":"Lovelace","email":"ada@example.com","password":"secret1"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestLogout(t *testing.T) {
	router, d := newTestRouter()
	d.storefront.On("Logout", mock.Anything).Return()

	rec := do(router, http.MethodPost, "/api/auth/logout", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	d.storefront.AssertExpectations(t)
}

func TestMe(t *testing.T) {
	router, d := newTestRouter()

	rec := do(router, http.MethodGet, "/api/auth/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	d.session.user = &domain.User{ID: "u1", FirstName: "Ada"}
	d.session.refreshed = &domain.User{ID: "u1", FirstName: "Augusta"}

	rec = do(router, http.MethodGet, "/api/auth/me", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Augusta", decodeData[authResponse](t, rec).User.FirstName)

	rec = do(router, http.MethodGet, "/api/auth/me?cached=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ada", decodeData[authResponse](t, rec).User.FirstName)
}

// ============================================================================
// Cart
// ============================================================================

func TestGetCart(t *testing.T) {
	router, _ := newTestRouter()

	rec := do(router, http.MethodGet, "/api/cart", "")

	require.Equal(t, http.StatusOK, rec.Code)
	st := decodeData[store.CartState](t, rec)
	assert.True(t, st.IsEmpty())
	assert.NotNil(t, st.Cart.Items)
}

func TestGetCart_BackendUnreachable(t *testing.T) {
	router, d := newTestRouter()
	d.cart.loadErr = apperrors.NetworkUnavailable(errors.New("dial tcp: refused"))

	rec := do(router, http.MethodGet, "/api/cart", "")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeErr(t, rec)
	assert.Equal(t, apperrors.KindNetworkUnavailable, body.Kind)
	assert.True(t, body.Critical)
	assert.True(t, body.Retryable)
}

func TestAddItem(t *testing.T) {
	router, _ := newTestRouter()

	rec := do(router, http.MethodPost, "/api/cart/items", `{"productId":7,"quantity":2}`)

	require.Equal(t, http.StatusOK, rec.Code)
	st := decodeData[store.CartState](t, rec)
	assert.Equal(t, 2, st.TotalItems())
	assert.Equal(t, int64(7), st.Items()[0].ProductID)
}

func TestAddItem_StoreRejects(t *testing.T) {
	router, d := newTestRouter()
	d.cart.err = apperrors.InvalidInput("Product out of stock")

	rec := do(router, http.MethodPost, "/api/cart/items", `{"productId":7,"quantity":2}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Product out of stock", decodeErr(t, rec).Message)
}

func TestUpdateAndRemoveItem(t *testing.T) {
	router, d := newTestRouter()

	rec := do(router, http.MethodPut, "/api/cart/items/3", `{"quantity":0}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(router, http.MethodDelete, "/api/cart/items/4", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{3, 4}, d.cart.removed)

	rec = do(router, http.MethodDelete, "/api/cart/items/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClearCart(t *testing.T) {
	router, _ := newTestRouter()
	do(router, http.MethodPost, "/api/cart/items", `{"productId":7,"quantity":2}`)

	rec := do(router, http.MethodDelete, "/api/cart", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeData[store.CartState](t, rec).IsEmpty())
}

func TestContentTypeJSON(t *testing.T) {
	router, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/cart/items", strings.NewReader("productId=7"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

// ============================================================================
// Catalog
// ============================================================================

func TestListProducts(t *testing.T) {
	router, d := newTestRouter()
	q := domain.ProductQuery{Search: "lamp", CategoryID: 2, Page: 2, PerPage: 10}
	d.catalog.On("LoadProducts", mock.Anything, q).Return(&pagination.Result[domain.Product]{
		Items: []domain.Product{{ID: 1, Name: "Lamp"}}, TotalCount: 25, Page: 2, PerPage: 10,
	}, nil)

	rec := do(router, http.MethodGet, "/api/products?search=lamp&category=2&page=2&per_page=10", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "private, max-age=60", rec.Header().Get("Cache-Control"))
	page := decodeData[productPage](t, rec)
	assert.Equal(t, 3, page.TotalPages)
	assert.True(t, page.HasNext)
	assert.Len(t, page.Items, 1)
}

func TestListProducts_BadCategory(t *testing.T) {
	router, d := newTestRouter()

	rec := do(router, http.MethodGet, "/api/products?category=lighting", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	d.catalog.AssertNotCalled(t, "LoadProducts", mock.Anything, mock.Anything)
}

func TestGetProduct_NotFound(t *testing.T) {
	router, d := newTestRouter()
	d.catalog.On("LoadProduct", mock.Anything, int64(9)).Return(nil, apperrors.NotFound("products", ""))

	rec := do(router, http.MethodGet, "/api/products/9", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperrors.KindNotFound, decodeErr(t, rec).Kind)
}

func TestListCategories(t *testing.T) {
	router, d := newTestRouter()
	d.catalog.On("LoadCategories", mock.Anything).Return([]domain.Category{{ID: 1, Name: "Lighting"}}, nil)

	rec := do(router, http.MethodGet, "/api/categories", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeData[[]domain.Category](t, rec), 1)
}

// ============================================================================
// Orders
// ============================================================================

func TestCheckout(t *testing.T) {
	router, d := newTestRouter()
	req := domain.CheckoutRequest{ShippingAddress: "1 Main St", PaymentMethod: "card"}
	d.orders.On("Checkout", mock.Anything, req).Return(&domain.Order{ID: 10, Status: domain.OrderStatusPending}, nil)

	rec := do(router, http.MethodPost, "/api/orders", `{"shippingAddress":"1 Main St","paymentMethod":"card"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int64(10), decodeData[domain.Order](t, rec).ID)
}

func TestCheckout_Invalid(t *testing.T) {
	router, d := newTestRouter()

	rec := do(router, http.MethodPost, "/api/orders", `{"shippingAddress":"1 Main St","paymentMethod":"barter"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeErr(t, rec).Fields, "paymentMethod")
	d.orders.AssertNotCalled(t, "Checkout", mock.Anything, mock.Anything)
}

func TestListOrders_Empty(t *testing.T) {
	router, d := newTestRouter()
	d.orders.On("LoadOrders", mock.Anything).Return(nil, nil)

	rec := do(router, http.MethodGet, "/api/orders", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[]}`, rec.Body.String())
}

func TestGetOrder(t *testing.T) {
	router, d := newTestRouter()
	d.orders.On("LoadOrder", mock.Anything, int64(4)).Return(&domain.Order{ID: 4}, nil)

	rec := do(router, http.MethodGet, "/api/orders/4", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(4), decodeData[domain.Order](t, rec).ID)
}

func TestUpdateOrderStatus_Forbidden(t *testing.T) {
	router, d := newTestRouter()
	d.orders.On("UpdateOrderStatus", mock.Anything, int64(4), domain.OrderStatusShipped).
		Return(nil, apperrors.Forbidden("admin role required"))

	rec := do(router, http.MethodPut, "/api/admin/orders/4/status", `{"status":"Shipped"}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// ============================================================================
// Preferences
// ============================================================================

func TestLanguagePreference(t *testing.T) {
	router, d := newTestRouter()

	rec := do(router, http.MethodGet, "/api/preferences/language", "")
	assert.Equal(t, "en", decodeData[languageBody](t, rec).Language)

	rec = do(router, http.MethodPut, "/api/preferences/language", `{"language":"de"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "de", d.prefs.Language(context.Background()))

	rec = do(router, http.MethodPut, "/api/preferences/language", `{"language":"not a tag"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ============================================================================
// Probes and streams
// ============================================================================

func TestHealthAndMetrics(t *testing.T) {
	router, _ := newTestRouter()

	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/health/live", "").Code)
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/health/ready", "").Code)

	rec := do(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storefront_http_requests_total")
}

func TestCartEvents_StreamsSnapshots(t *testing.T) {
	router, d := newTestRouter()
	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/cart/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	r := bufio.NewReader(resp.Body)

	event, data := readEvent(t, r)
	assert.Equal(t, "cart", event)
	var st store.CartState
	require.NoError(t, json.Unmarshal([]byte(data), &st))
	assert.True(t, st.IsEmpty())

	require.NoError(t, d.cart.AddToCart(context.Background(), 5, 3))

	_, data = readEvent(t, r)
	require.NoError(t, json.Unmarshal([]byte(data), &st))
	assert.Equal(t, 3, st.TotalItems())
}

func TestAuthEvents_StreamsSessionExpired(t *testing.T) {
	router, d := newTestRouter()
	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/auth/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	d.storefront.events.Set(service.SessionEvent{Type: service.EventSessionExpired, LoginPath: "/login"})

	event, data := readEvent(t, bufio.NewReader(resp.Body))
	assert.Equal(t, "session", event)
	var got service.SessionEvent
	require.NoError(t, json.Unmarshal([]byte(data), &got))
	assert.Equal(t, service.EventSessionExpired, got.Type)
	assert.Equal(t, "/login", got.LoginPath)
}
