package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

// RouterConfig carries what the local HTTP surface is built from.
type RouterConfig struct {
	Storefront  Storefront
	Session     Session
	Cart        Cart
	Catalog     Catalog
	Orders      Orders
	Preferences Preferences
	Health      *health.Handler
	Logger      *slog.Logger

	CORS           middleware.CORSConfig
	RequestTimeout time.Duration
	CatalogMaxAge  int
	PprofCIDRs     []string
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	r := chi.NewRouter()

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	userID := func() string {
		if u := cfg.Session.User(); u != nil {
			return u.ID
		}
		return ""
	}

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("storefront"))
	r.Use(middleware.Tracing("storefront"))
	r.Use(middleware.RequestLogger(logger, userID))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	if len(cfg.PprofCIDRs) > 0 {
		middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)
	}

	authHandler := NewAuthHandler(cfg.Storefront, cfg.Session, logger)
	cartHandler := NewCartHandler(cfg.Cart, logger)
	catalogHandler := NewCatalogHandler(cfg.Catalog, logger)
	orderHandler := NewOrderHandler(cfg.Orders, logger)
	prefsHandler := NewPreferencesHandler(cfg.Preferences, logger)

	r.Route("/api", func(r chi.Router) {
		// Event streams stay open, so they sit outside the timeout group.
		r.Get("/auth/events", authHandler.Events)
		r.Get("/cart/events", cartHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(timeout))
			r.Use(ContentTypeJSON)

			r.Post("/auth/login", authHandler.Login)
			r.Post("/auth/register", authHandler.Register)
			r.Post("/auth/logout", authHandler.Logout)
			r.Get("/auth/me", authHandler.Me)

			r.Get("/cart", cartHandler.GetCart)
			r.Delete("/cart", cartHandler.ClearCart)
			r.Post("/cart/items", cartHandler.AddItem)
			r.Put("/cart/items/{id}", cartHandler.UpdateItem)
			r.Delete("/cart/items/{id}", cartHandler.RemoveItem)

			r.Group(func(r chi.Router) {
				r.Use(middleware.CacheControl(cfg.CatalogMaxAge))
				r.Get("/products", catalogHandler.ListProducts)
				r.Get("/products/{id}", catalogHandler.GetProduct)
				r.Get("/categories", catalogHandler.ListCategories)
			})

			r.Get("/orders", orderHandler.ListOrders)
			r.Post("/orders", orderHandler.Checkout)
			r.Get("/orders/{id}", orderHandler.GetOrder)
			r.Put("/admin/orders/{id}/status", orderHandler.UpdateStatus)

			r.Get("/preferences/language", prefsHandler.GetLanguage)
			r.Put("/preferences/language", prefsHandler.SetLanguage)
		})
	})

	return r
}
