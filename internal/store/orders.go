package store

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/observable"
	"github.com/utafrali/storefront/pkg/validator"
)

// OrderAPI is the backend surface the order store uses.
type OrderAPI interface {
	ListOrders(ctx context.Context) ([]domain.Order, error)
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	CreateOrder(ctx context.Context, req domain.CheckoutRequest) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status string) (*domain.Order, error)
}

// UserSource returns the signed-in user, or nil.
type UserSource interface {
	User() *domain.User
}

// CartView is what checkout needs from the cart store.
type CartView interface {
	IsEmpty() bool
	LoadCart(ctx context.Context)
}

// OrderState is the observable order snapshot.
type OrderState struct {
	Status
	Orders  []domain.Order `json:"orders"`
	Current *domain.Order  `json:"current,omitempty"`
}

// OrderStore caches the signed-in user's orders and places new ones.
//
// Reset starts a new generation. A call that started in an earlier
// generation still returns its result to its caller, but never writes it
// into the snapshot, so one identity's orders cannot reappear after logout.
type OrderStore struct {
	api     OrderAPI
	users   UserSource
	cart    CartView
	logger  *slog.Logger
	timeout time.Duration

	mu         sync.Mutex
	inFlight   int
	generation uint64

	state *observable.Value[OrderState]
}

// NewOrderStore creates an order store. timeout bounds each call; zero
// means DefaultTimeout.
func NewOrderStore(api OrderAPI, users UserSource, cart CartView, logger *slog.Logger, timeout time.Duration) *OrderStore {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &OrderStore{
		api:     api,
		users:   users,
		cart:    cart,
		logger:  logger,
		timeout: timeout,
		state:   observable.New(OrderState{Orders: []domain.Order{}}),
	}
}

// State returns the observable snapshot.
func (s *OrderStore) State() *observable.Value[OrderState] {
	return s.state
}

// LoadOrders fetches the signed-in user's orders.
func (s *OrderStore) LoadOrders(ctx context.Context) ([]domain.Order, error) {
	ctx, gen, done := s.begin(ctx)
	defer done()

	orders, err := s.api.ListOrders(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load orders", slog.String("error", err.Error()))
		return nil, s.fail(ctx, gen, err)
	}

	s.set(ctx, gen, func(st OrderState) OrderState {
		st.Orders = orders
		st.Err = nil
		return st
	})
	return slices.Clone(orders), nil
}

// LoadOrder fetches one order and makes it current.
func (s *OrderStore) LoadOrder(ctx context.Context, id int64) (*domain.Order, error) {
	ctx, gen, done := s.begin(ctx)
	defer done()

	order, err := s.api.GetOrder(ctx, id)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load order",
			slog.Int64("order_id", id),
			slog.String("error", err.Error()),
		)
		return nil, s.fail(ctx, gen, err)
	}

	s.set(ctx, gen, func(st OrderState) OrderState {
		st.Current = order
		st.Orders = replaceOrder(st.Orders, *order, false)
		st.Err = nil
		return st
	})
	return order, nil
}

// Checkout places an order from the current cart. The backend empties the
// cart, so the cart is reloaded afterwards.
func (s *OrderStore) Checkout(ctx context.Context, req domain.CheckoutRequest) (*domain.Order, error) {
	if s.users.User() == nil {
		return nil, apperrors.Unauthorized("sign in to place an order")
	}
	if err := validator.Validate(req); err != nil {
		return nil, validator.ToAppError(err)
	}
	if s.cart.IsEmpty() {
		return nil, apperrors.InvalidInput("the cart is empty")
	}

	callCtx, gen, done := s.begin(ctx)
	order, err := s.api.CreateOrder(callCtx, req)
	done()
	if err != nil {
		s.logger.WarnContext(ctx, "checkout failed", slog.String("error", err.Error()))
		return nil, s.fail(ctx, gen, err)
	}

	s.set(ctx, gen, func(st OrderState) OrderState {
		st.Current = order
		st.Orders = replaceOrder(st.Orders, *order, true)
		st.Err = nil
		return st
	})
	s.logger.InfoContext(ctx, "order placed",
		slog.Int64("order_id", order.ID),
		slog.Float64("total_amount", order.TotalAmount),
	)

	s.cart.LoadCart(ctx)
	return order, nil
}

// UpdateOrderStatus changes the status of an order. Only admins may call it.
func (s *OrderStore) UpdateOrderStatus(ctx context.Context, id int64, status string) (*domain.Order, error) {
	user := s.users.User()
	if user == nil {
		return nil, apperrors.Unauthorized("sign in to manage orders")
	}
	if !user.IsAdmin() {
		return nil, apperrors.Forbidden("only administrators can change order status")
	}
	if !slices.Contains(domain.ValidOrderStatuses, status) {
		return nil, apperrors.InvalidInput("unknown order status " + strconv.Quote(status))
	}

	ctx, gen, done := s.begin(ctx)
	defer done()

	order, err := s.api.UpdateOrderStatus(ctx, id, status)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to update order status",
			slog.Int64("order_id", id),
			slog.String("status", status),
			slog.String("error", err.Error()),
		)
		return nil, s.fail(ctx, gen, err)
	}

	s.set(ctx, gen, func(st OrderState) OrderState {
		st.Orders = replaceOrder(st.Orders, *order, false)
		if st.Current != nil && st.Current.ID == order.ID {
			st.Current = order
		}
		st.Err = nil
		return st
	})
	s.logger.InfoContext(ctx, "order status updated",
		slog.Int64("order_id", id),
		slog.String("status", status),
		slog.String("admin_id", user.ID),
	)
	return order, nil
}

// Reset drops cached orders, e.g. after logout. Calls still outstanding
// keep the loading flag set but their results are discarded.
func (s *OrderStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	loading := s.inFlight > 0
	s.state.Set(OrderState{Status: Status{Loading: loading}, Orders: []domain.Order{}})
}

// replaceOrder swaps in order by ID. Unknown orders are prepended when
// prepend is set and ignored otherwise.
func replaceOrder(orders []domain.Order, order domain.Order, prepend bool) []domain.Order {
	out := slices.Clone(orders)
	for i := range out {
		if out[i].ID == order.ID {
			out[i] = order
			return out
		}
	}
	if prepend {
		return append([]domain.Order{order}, out...)
	}
	return out
}

// set applies fn unless a Reset happened since the call of generation gen
// began.
func (s *OrderStore) set(ctx context.Context, gen uint64, fn func(OrderState) OrderState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		s.logger.DebugContext(ctx, "discarding order result from before reset",
			slog.Uint64("generation", gen),
			slog.Uint64("current", s.generation),
		)
		return
	}
	s.state.Update(fn)
}

func (s *OrderStore) begin(ctx context.Context) (context.Context, uint64, func()) {
	s.mu.Lock()
	s.inFlight++
	gen := s.generation
	s.state.Update(func(st OrderState) OrderState {
		st.Loading = true
		return st
	})
	s.mu.Unlock()

	ctx, cancel := withTimeout(ctx, s.timeout)
	return ctx, gen, func() {
		cancel()
		s.mu.Lock()
		s.inFlight--
		loading := s.inFlight > 0
		s.state.Update(func(st OrderState) OrderState {
			st.Loading = loading
			return st
		})
		s.mu.Unlock()
	}
}

func (s *OrderStore) fail(ctx context.Context, gen uint64, err error) error {
	appErr := normalize(err)
	if canceled(err) {
		return appErr
	}
	s.set(ctx, gen, func(st OrderState) OrderState {
		st.Err = appErr
		return st
	})
	return appErr
}
