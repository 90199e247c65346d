package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geopin",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "geopin",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "geopin",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Helper IPC metrics
	HelperRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geopin",
		Subsystem: "helper",
		Name:      "requests_total",
		Help:      "Total requests sent to the location helper",
	}, []string{"op", "outcome"})

	HelperRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "geopin",
		Subsystem: "helper",
		Name:      "request_duration_seconds",
		Help:      "Duration of helper calls",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 3, 5},
	}, []string{"op"})

	// Session metrics
	SessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geopin",
		Subsystem: "session",
		Name:      "transitions_total",
		Help:      "Total session state transitions",
	}, []string{"to"})

	SessionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geopin",
		Subsystem: "session",
		Name:      "errors_total",
		Help:      "Total errors recorded in the session error slot",
	}, []string{"kind"})

	SessionActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "geopin",
		Subsystem: "session",
		Name:      "active",
		Help:      "1 while an override is active, 0 otherwise",
	})

	// History metrics
	HistoryEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "geopin",
		Subsystem: "history",
		Name:      "entries",
		Help:      "Current number of history entries",
	})

	HistoryMutations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "geopin",
		Subsystem: "history",
		Name:      "mutations_total",
		Help:      "Total history list changes",
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "geopin",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geopin",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geopin",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}
