package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/nlzhang/geopin/internal/pkg/metrics"
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP. The API binds loopback
	// by default, but a misbehaving local client still shouldn't hammer the
	// helper path.
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{
				"error":   "rate limit exceeded",
				"message": "too many requests, please try again later",
			})
		},
		SkipFailedRequests: false,
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Deprecated v0 endpoints still served below
	app.Use(DeprecationMiddleware([]DeprecatedRoute{
		{Path: "/v1/spoof/start", SunsetDate: time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC), Alternative: "/v1/session/start"},
		{Path: "/v1/spoof/stop", SunsetDate: time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC), Alternative: "/v1/session/stop"},
	}))

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// REST API v1, 10s per-request timeout (helper calls are bounded well
	// below that)
	v1 := app.Group("/v1")
	v1.Get("/session", timeout.NewWithContext(GetSessionHandler(deps), 10*time.Second))
	v1.Post("/session/select", timeout.NewWithContext(SelectPointHandler(deps), 10*time.Second))
	v1.Post("/session/start", timeout.NewWithContext(StartHandler(deps), 10*time.Second))
	v1.Post("/session/stop", timeout.NewWithContext(StopHandler(deps), 10*time.Second))
	v1.Post("/session/restore", timeout.NewWithContext(RestoreHandler(deps), 10*time.Second))

	v1.Get("/history", timeout.NewWithContext(ListHistoryHandler(deps), 10*time.Second))
	v1.Post("/history", timeout.NewWithContext(RecordSearchHandler(deps), 10*time.Second))
	v1.Delete("/history/:id", timeout.NewWithContext(DeleteHistoryEntryHandler(deps), 10*time.Second))
	v1.Delete("/history", timeout.NewWithContext(ClearHistoryHandler(deps), 10*time.Second))

	v1.Get("/search", timeout.NewWithContext(SearchPlacesHandler(deps), 15*time.Second))
	v1.Get("/transform", timeout.NewWithContext(TransformHandler(deps), 10*time.Second))

	// Deprecated aliases kept for the v0 UI
	v1.Post("/spoof/start", timeout.NewWithContext(StartHandler(deps), 10*time.Second))
	v1.Post("/spoof/stop", timeout.NewWithContext(StopHandler(deps), 10*time.Second))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps)))

	// Unknown paths get the same JSON error shape as everything else
	app.Use(func(c *fiber.Ctx) error {
		return errNotFound(c, "no such endpoint: "+c.Path())
	})
}
