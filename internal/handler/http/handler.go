package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/internal/store"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/observable"
	"github.com/utafrali/storefront/pkg/pagination"
)

// Storefront is the cross-store orchestration the auth endpoints drive.
type Storefront interface {
	Login(ctx context.Context, creds domain.Credentials) (*domain.User, error)
	Register(ctx context.Context, reg domain.Registration) (*domain.User, error)
	Logout(ctx context.Context)
	Events() *observable.Value[service.SessionEvent]
}

// Session exposes the signed-in identity.
type Session interface {
	IsAuthenticated() bool
	User() *domain.User
	RefreshUser(ctx context.Context) (*domain.User, error)
}

// Cart is the cart store surface.
type Cart interface {
	State() *observable.Value[store.CartState]
	Snapshot() store.CartState
	LoadCart(ctx context.Context)
	AddToCart(ctx context.Context, productID int64, quantity int) error
	UpdateQuantity(ctx context.Context, itemID int64, quantity int) error
	RemoveFromCart(ctx context.Context, itemID int64) error
	ClearCart(ctx context.Context) error
}

// Catalog is the catalog store surface.
type Catalog interface {
	LoadProducts(ctx context.Context, q domain.ProductQuery) (*pagination.Result[domain.Product], error)
	LoadProduct(ctx context.Context, id int64) (*domain.Product, error)
	LoadCategories(ctx context.Context) ([]domain.Category, error)
}

// Orders is the order store surface.
type Orders interface {
	LoadOrders(ctx context.Context) ([]domain.Order, error)
	LoadOrder(ctx context.Context, id int64) (*domain.Order, error)
	Checkout(ctx context.Context, req domain.CheckoutRequest) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status string) (*domain.Order, error)
}

// Preferences holds the persisted UI language.
type Preferences interface {
	Language(ctx context.Context) string
	SetLanguage(ctx context.Context, lang string) error
}

// decodeJSON decodes the request body into dst, reporting malformed bodies
// as invalid input.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.InvalidInput(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

// ContentTypeJSON rejects request bodies that are not JSON.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				err := apperrors.InvalidInput("Content-Type must be application/json")
				err.Status = http.StatusUnsupportedMediaType
				err.Code = "UNSUPPORTED_MEDIA_TYPE"
				httputil.WriteError(w, r, err, nil)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
