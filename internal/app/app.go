package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/storefront/internal/api"
	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/config"
	handler "github.com/utafrali/storefront/internal/handler/http"
	"github.com/utafrali/storefront/internal/interceptor"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/internal/session"
	"github.com/utafrali/storefront/internal/storage"
	"github.com/utafrali/storefront/internal/store"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/tracing"
)

const serviceName = "storefront"

// App wires together all dependencies and runs the storefront client.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	httpServer     *http.Server
	redisClient    *redis.Client
	tracerShutdown func(context.Context) error

	Auth        *auth.Store
	Cart        *store.CartStore
	Catalog     *store.CatalogStore
	Orders      *store.OrderStore
	Storefront  *service.Storefront
	Preferences *session.Preferences
	Breaker     *httpclient.CircuitBreaker
}

// NewApp creates a new application instance: persisted storage, the backend
// client with its interceptor pipeline, the stores and the local HTTP
// surface.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTelEndpoint,
		SampleRate:     cfg.OTelSampleRate,
		Enabled:        cfg.OTelEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, tracerShutdown: tracerShutdown}

	st, err := a.openStorage(ctx)
	if err != nil {
		_ = a.Shutdown()
		return nil, err
	}
	sessions := session.NewProvider(st, logger)
	a.Preferences = session.NewPreferences(st)

	// The pipeline is handed to the API client first; its stages are
	// installed once the stores they depend on exist.
	base := httpclient.New(httpclient.Config{
		Timeout:         cfg.HTTPTimeout,
		MaxRetries:      cfg.MaxRetries,
		RetryWaitMin:    200 * time.Millisecond,
		RetryWaitMax:    2 * time.Second,
		MaxConnsPerHost: 16,
	})
	pipeline := httpclient.NewPipeline(base)

	client, err := api.New(cfg.APIURL, cfg.APIPrefix, pipeline)
	if err != nil {
		_ = a.Shutdown()
		return nil, fmt.Errorf("create api client: %w", err)
	}

	a.Auth, err = auth.NewStore(ctx, client, st, logger)
	if err != nil {
		_ = a.Shutdown()
		return nil, fmt.Errorf("restore session: %w", err)
	}
	a.Cart = store.NewCartStore(client, sessions, logger, cfg.StoreTimeout)
	a.Catalog = store.NewCatalogStore(client, logger, cfg.StoreTimeout, cfg.ProductTTL)
	a.Orders = store.NewOrderStore(client, a.Auth, a.Cart, logger, cfg.StoreTimeout)
	a.Storefront = service.NewStorefront(a.Auth, a.Cart, a.Orders, logger)

	pipeline.Use(interceptor.Stages(interceptor.Config{
		Auth:           a.Auth,
		Sessions:       sessions,
		Preferences:    a.Preferences,
		Redirector:     a.Storefront,
		APIPrefix:      cfg.APIPrefix,
		LoginPath:      cfg.LoginPath,
		RequestLogging: cfg.RequestLogging,
		Logger:         logger,
	})...)
	pipeline.Use(
		httpclient.Correlation(),
		httpclient.Tracing(serviceName+"-client"),
		httpclient.Metrics(),
		httpclient.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)
	if cfg.CircuitBreaker {
		a.Breaker = httpclient.NewCircuitBreaker(httpclient.DefaultCircuitBreakerConfig(serviceName+"-api"), logger)
		pipeline.Use(a.Breaker.Interceptor())
	}

	healthHandler := a.healthChecks(st)

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = middleware.ParseOrigins(cfg.CORSOrigins)

	router := handler.NewRouter(handler.RouterConfig{
		Storefront:     a.Storefront,
		Session:        a.Auth,
		Cart:           a.Cart,
		Catalog:        a.Catalog,
		Orders:         a.Orders,
		Preferences:    a.Preferences,
		Health:         healthHandler,
		Logger:         logger,
		CORS:           cors,
		RequestTimeout: cfg.RequestTimeout,
		CatalogMaxAge:  cfg.CatalogMaxAge,
		PprofCIDRs:     cfg.PprofCIDRs,
	})

	// Event streams stay open indefinitely, so there is no server-wide
	// write timeout; other routes are bounded by the router.
	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// Handler returns the local HTTP surface.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

func (a *App) openStorage(ctx context.Context) (storage.Storage, error) {
	switch a.cfg.Storage {
	case config.StorageFile:
		st, err := storage.NewFile(a.cfg.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("open file storage: %w", err)
		}
		a.logger.Info("using file storage", slog.String("path", a.cfg.StoragePath))
		return st, nil

	case config.StorageRedis:
		rcfg := database.DefaultRedisConfig()
		rcfg.Addr = a.cfg.RedisAddr
		rcfg.Password = a.cfg.RedisPass
		rcfg.DB = a.cfg.RedisDB
		client, err := database.NewRedisClient(ctx, rcfg)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.redisClient = client

		st := storage.NewRedis(client, a.cfg.StorageNamespace)
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, st, serviceName); err != nil {
			a.logger.Warn("redis pool metrics not registered", slog.String("error", err.Error()))
		}
		database.SetSlowOpLogging(a.cfg.RedisSlowOp, a.logger)
		a.logger.Info("using redis storage",
			slog.String("addr", a.cfg.RedisAddr),
			slog.String("namespace", a.cfg.StorageNamespace),
		)
		return st, nil

	default:
		return storage.NewMemory(), nil
	}
}

// healthChecks registers readiness checks. Persisted state is critical;
// the backend and the breaker only degrade readiness, since the cached
// session and cart remain usable.
func (a *App) healthChecks(st storage.Storage) *health.Handler {
	h := health.NewHandler()

	if p, ok := st.(interface{ Ping(context.Context) error }); ok {
		h.RegisterCritical("storage", p.Ping)
	}

	h.RegisterNonCritical("backend", func(ctx context.Context) error {
		addr, err := dialAddr(a.cfg.APIURL)
		if err != nil {
			return err
		}
		d := net.Dialer{Timeout: 2 * time.Second}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return fmt.Errorf("backend unreachable: %w", err)
		}
		_ = conn.Close()
		return nil
	})

	if a.Breaker != nil {
		h.RegisterNonCritical("circuit_breaker", func(context.Context) error {
			if s := a.Breaker.State(); s == gobreaker.StateOpen {
				return fmt.Errorf("circuit breaker is %s", s)
			}
			return nil
		})
	}
	return h
}

// dialAddr returns host:port for a backend URL, defaulting the port from
// the scheme.
func dialAddr(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse backend URL: %w", err)
	}
	if u.Port() != "" {
		return u.Host, nil
	}
	port := "80"
	if u.Scheme == "https" {
		port = "443"
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
			slog.String("backend", a.cfg.APIURL),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application in order:
// 1. HTTP server (drain in-flight requests)
// 2. Redis client
// 3. Tracer (flush pending spans from drained requests)
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	if a.httpServer != nil {
		httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer httpCancel()
		if err := a.httpServer.Shutdown(httpCtx); err != nil {
			a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
