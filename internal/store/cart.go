package store

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/observable"
	"github.com/utafrali/storefront/pkg/validator"
)

var (
	cartItemsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_cart_items",
		Help: "Number of units in the current cart snapshot",
	})

	cartTotalGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_cart_total_price",
		Help: "Total price of the current cart snapshot",
	})

	cartInFlightGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_cart_operations_in_flight",
		Help: "Cart operations waiting for the backend",
	})

	cartStaleResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_cart_stale_responses_total",
		Help: "Cart responses discarded because a newer one was already applied",
	})
)

// CartAPI is the backend surface the cart store uses.
type CartAPI interface {
	GetCart(ctx context.Context) (*domain.Cart, error)
	AddCartItem(ctx context.Context, productID int64, quantity int) (*domain.Cart, error)
	UpdateCartItem(ctx context.Context, itemID int64, quantity int) (*domain.Cart, error)
	RemoveCartItem(ctx context.Context, itemID int64) (*domain.Cart, error)
	ClearCart(ctx context.Context) error
	MergeCart(ctx context.Context, sessionID string) (*domain.Cart, error)
}

// GuestSession reads and clears the guest session ID without creating one.
type GuestSession interface {
	Get(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// CartState is the observable cart snapshot.
type CartState struct {
	Status
	Cart domain.Cart `json:"cart"`
}

// Items returns the cart lines.
func (s CartState) Items() []domain.CartItem { return s.Cart.Items }

// TotalItems returns the server-computed unit count.
func (s CartState) TotalItems() int { return s.Cart.TotalItems }

// TotalPrice returns the server-computed total.
func (s CartState) TotalPrice() float64 { return s.Cart.TotalPrice }

// IsEmpty reports whether the cart has no lines.
func (s CartState) IsEmpty() bool { return s.Cart.IsEmpty() }

// CartStore holds the authoritative cart snapshot. Every successful call
// replaces the snapshot with the cart the backend returned.
//
// Calls are not serialized. Each takes a sequence number when it starts and
// its result is applied only if no later-started call has been applied
// already, so a slow response can never overwrite a newer one.
type CartStore struct {
	api      CartAPI
	sessions GuestSession
	logger   *slog.Logger
	timeout  time.Duration

	seq atomic.Uint64

	mu       sync.Mutex
	applied  uint64
	inFlight int

	state *observable.Value[CartState]
}

// NewCartStore creates a cart store with an empty cart. timeout bounds each
// call; zero means DefaultTimeout.
func NewCartStore(api CartAPI, sessions GuestSession, logger *slog.Logger, timeout time.Duration) *CartStore {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &CartStore{
		api:      api,
		sessions: sessions,
		logger:   logger,
		timeout:  timeout,
		state:    observable.New(CartState{Cart: domain.EmptyCart()}),
	}
}

// State returns the observable snapshot.
func (s *CartStore) State() *observable.Value[CartState] {
	return s.state
}

// Snapshot returns the current snapshot.
func (s *CartStore) Snapshot() CartState {
	st := s.state.Get()
	st.Cart = st.Cart.Clone()
	return st
}

// IsEmpty reports whether the current cart has no lines.
func (s *CartStore) IsEmpty() bool {
	return s.state.Get().IsEmpty()
}

// LoadCart fetches the cart. On failure the snapshot is reset to an empty
// cart and the error recorded; the error is not returned. A load abandoned
// by its caller leaves the snapshot untouched.
func (s *CartStore) LoadCart(ctx context.Context) {
	seq, ctx, done := s.begin(ctx)
	defer done()

	cart, err := s.api.GetCart(ctx)
	if err != nil {
		if canceled(err) {
			s.logger.DebugContext(ctx, "cart load canceled by caller")
			return
		}
		s.logger.WarnContext(ctx, "failed to load cart", slog.String("error", err.Error()))
		s.apply(ctx, seq, domain.EmptyCart(), err)
		return
	}
	s.apply(ctx, seq, *cart, nil)
}

// AddToCart adds quantity units of a product. A zero quantity adds one.
func (s *CartStore) AddToCart(ctx context.Context, productID int64, quantity int) error {
	if quantity == 0 {
		quantity = 1
	}
	req := domain.AddItemRequest{ProductID: productID, Quantity: quantity}
	if err := validator.Validate(req); err != nil {
		return validator.ToAppError(err)
	}

	return s.mutate(ctx, "add to cart", func(ctx context.Context) (*domain.Cart, error) {
		return s.api.AddCartItem(ctx, req.ProductID, req.Quantity)
	})
}

// UpdateQuantity sets the quantity of a line. A quantity of zero or less
// removes the line.
func (s *CartStore) UpdateQuantity(ctx context.Context, itemID int64, quantity int) error {
	if quantity <= 0 {
		return s.RemoveFromCart(ctx, itemID)
	}
	return s.mutate(ctx, "update cart item", func(ctx context.Context) (*domain.Cart, error) {
		return s.api.UpdateCartItem(ctx, itemID, quantity)
	})
}

// RemoveFromCart deletes a line.
func (s *CartStore) RemoveFromCart(ctx context.Context, itemID int64) error {
	return s.mutate(ctx, "remove cart item", func(ctx context.Context) (*domain.Cart, error) {
		return s.api.RemoveCartItem(ctx, itemID)
	})
}

// ClearCart empties the cart.
func (s *CartStore) ClearCart(ctx context.Context) error {
	return s.mutate(ctx, "clear cart", func(ctx context.Context) (*domain.Cart, error) {
		if err := s.api.ClearCart(ctx); err != nil {
			return nil, err
		}
		empty := domain.EmptyCart()
		return &empty, nil
	})
}

// MergeGuestCart folds the guest cart into the signed-in user's cart. With
// no guest session it just loads the user's cart. The session ID is cleared
// only after the backend confirms the merge; if the merge fails the user's
// cart is loaded instead and the guest cart is left alone.
func (s *CartStore) MergeGuestCart(ctx context.Context) {
	sessionID, err := s.sessions.Get(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to read guest session", slog.String("error", err.Error()))
		s.LoadCart(ctx)
		return
	}
	if sessionID == "" {
		s.LoadCart(ctx)
		return
	}

	seq, callCtx, done := s.begin(ctx)
	cart, err := s.api.MergeCart(callCtx, sessionID)
	if err != nil {
		done()
		s.logger.WarnContext(ctx, "guest cart merge failed, loading user cart",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		s.LoadCart(ctx)
		return
	}
	s.apply(ctx, seq, *cart, nil)
	done()

	if err := s.sessions.Clear(ctx); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear guest session after merge", slog.String("error", err.Error()))
		return
	}
	s.logger.InfoContext(ctx, "guest cart merged",
		slog.String("session_id", sessionID),
		slog.Int("total_items", cart.TotalItems),
	)
}

func (s *CartStore) mutate(ctx context.Context, op string, call func(context.Context) (*domain.Cart, error)) error {
	seq, ctx, done := s.begin(ctx)
	defer done()

	cart, err := call(ctx)
	if err != nil {
		if canceled(err) {
			return normalize(err)
		}
		s.logger.WarnContext(ctx, op+" failed", slog.String("error", err.Error()))
		s.fail(err)
		return normalize(err)
	}
	s.apply(ctx, seq, *cart, nil)
	return nil
}

// begin registers an outstanding call and returns its sequence number, a
// context bounded by the store timeout, and the function that ends the call.
func (s *CartStore) begin(ctx context.Context) (uint64, context.Context, func()) {
	seq := s.seq.Add(1)

	s.mu.Lock()
	s.inFlight++
	inFlight := s.inFlight
	s.state.Update(func(st CartState) CartState {
		st.Loading = true
		return st
	})
	s.mu.Unlock()
	cartInFlightGauge.Set(float64(inFlight))

	callCtx, cancel := withTimeout(ctx, s.timeout)
	var once sync.Once
	return seq, callCtx, func() {
		once.Do(func() {
			cancel()
			s.mu.Lock()
			s.inFlight--
			inFlight := s.inFlight
			s.state.Update(func(st CartState) CartState {
				st.Loading = inFlight > 0
				return st
			})
			s.mu.Unlock()
			cartInFlightGauge.Set(float64(inFlight))
		})
	}
}

func (s *CartStore) apply(ctx context.Context, seq uint64, cart domain.Cart, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq <= s.applied {
		cartStaleResponses.Inc()
		s.logger.DebugContext(ctx, "discarding stale cart response",
			slog.Uint64("seq", seq),
			slog.Uint64("applied", s.applied),
		)
		return
	}
	s.applied = seq

	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	snapshot := cart.Clone()
	s.state.Update(func(st CartState) CartState {
		st.Cart = snapshot
		st.Err = normalize(err)
		return st
	})

	cartItemsGauge.Set(float64(snapshot.TotalItems))
	cartTotalGauge.Set(snapshot.TotalPrice)
}

func (s *CartStore) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Update(func(st CartState) CartState {
		st.Err = normalize(err)
		return st
	})
}
