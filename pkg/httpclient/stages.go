package httpclient

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/utafrali/storefront/pkg/logger"
)

// CorrelationHeader carries the per-request correlation ID to the backend.
const CorrelationHeader = "X-Correlation-ID"

// maxLoggedBody bounds how much of a request body the logging stage records.
const maxLoggedBody = 2 << 10

var (
	clientRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_client_requests_total",
			Help: "Total number of backend requests issued by the storefront client",
		},
		[]string{"method", "route", "status"},
	)

	clientRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_client_request_duration_seconds",
			Help:    "Backend request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	clientRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_client_requests_in_flight",
			Help: "Current number of backend requests in flight",
		},
	)
)

// Correlation sets X-Correlation-ID on every outgoing request, taking the ID
// from the context when one is present.
func Correlation() Interceptor {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get(CorrelationHeader) == "" {
				id := logger.CorrelationIDFromContext(req.Context())
				if id == "" {
					id = uuid.New().String()
				}
				req = req.Clone(logger.WithCorrelationID(req.Context(), id))
				req.Header.Set(CorrelationHeader, id)
			}
			return next.Do(req)
		})
	}
}

// Logging records method, URL and body before the request is sent and
// status, duration and error once it completes. Bodies of auth endpoints are
// never recorded. The stage does not change the exchange.
func Logging(l *slog.Logger) Interceptor {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			ctx := req.Context()
			log := logger.WithContext(ctx, l)

			attrs := []any{
				slog.String("method", req.Method),
				slog.String("url", req.URL.String()),
			}
			if body, ok := peekBody(req); ok {
				attrs = append(attrs, slog.String("body", body))
			}
			log.DebugContext(ctx, "backend request", attrs...)

			start := time.Now()
			resp, err := next.Do(req)
			duration := time.Since(start)

			if err != nil {
				log.WarnContext(ctx, "backend request failed",
					slog.String("method", req.Method),
					slog.String("url", req.URL.String()),
					slog.Duration("duration", duration),
					slog.String("error", err.Error()),
				)
				return resp, err
			}

			log.DebugContext(ctx, "backend response",
				slog.String("method", req.Method),
				slog.String("url", req.URL.String()),
				slog.Int("status", resp.StatusCode),
				slog.Duration("duration", duration),
			)
			return resp, nil
		})
	}
}

// peekBody returns a bounded copy of the request body and restores it so
// the request can still be sent.
func peekBody(req *http.Request) (string, bool) {
	if req.Body == nil || req.Body == http.NoBody || strings.Contains(req.URL.Path, "/auth/") {
		return "", false
	}
	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	req.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil {
		return "", false
	}
	if len(data) > maxLoggedBody {
		data = data[:maxLoggedBody]
	}
	return string(data), true
}

// Metrics records request counts, durations and in-flight requests.
func Metrics() Interceptor {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			clientRequestsInFlight.Inc()
			defer clientRequestsInFlight.Dec()

			route := RouteTemplate(req.URL.Path)
			start := time.Now()
			resp, err := next.Do(req)

			status := "error"
			if err == nil {
				status = strconv.Itoa(resp.StatusCode)
			}
			clientRequestsTotal.WithLabelValues(req.Method, route, status).Inc()
			clientRequestDuration.WithLabelValues(req.Method, route).Observe(time.Since(start).Seconds())
			return resp, err
		})
	}
}

// Tracing starts a client span per request and injects W3C trace context
// into the outgoing headers.
func Tracing(tracerName string) Interceptor {
	tracer := otel.Tracer(tracerName)

	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			ctx, span := tracer.Start(req.Context(), req.Method+" "+RouteTemplate(req.URL.Path),
				trace.WithSpanKind(trace.SpanKindClient),
				trace.WithAttributes(
					attribute.String("http.request.method", req.Method),
					attribute.String("url.full", req.URL.String()),
					attribute.String("server.address", req.URL.Host),
				),
			)
			defer span.End()

			req = req.Clone(ctx)
			otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

			resp, err := next.Do(req)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return resp, err
			}

			span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
			if resp.StatusCode >= 500 {
				span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
			}
			return resp, nil
		})
	}
}

// RateLimit delays requests so that no more than rps are sent per second,
// with bursts up to burst. A non-positive rps disables the stage.
func RateLimit(rps float64, burst int) Interceptor {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			if err := limiter.Wait(req.Context()); err != nil {
				return nil, err
			}
			return next.Do(req)
		})
	}
}
