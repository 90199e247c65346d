package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on
// endpoint. Adds sensible defaults if not already set by the handler. Live
// session and history state must never be cached; the pure transform can be
// cached aggressively.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		// Only set on GET requests
		if c.Method() != "GET" {
			return err
		}

		// Don't override if already set
		if existing := c.Get("Cache-Control"); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10" // Very short for system checks

		case path == "/metrics":
			ttl = "no-cache" // Metrics are real-time

		case path == "/graphql":
			ttl = "private, max-age=0" // GraphQL varies wildly

		case strings.HasPrefix(path, "/v1/session"),
			strings.HasPrefix(path, "/v1/spoof"),
			strings.HasPrefix(path, "/v1/history"):
			ttl = "no-store" // Live state, never cache

		case strings.HasPrefix(path, "/v1/search"):
			ttl = "public, max-age=300" // 5 min for place lookups

		case strings.HasPrefix(path, "/v1/transform"):
			ttl = "public, max-age=86400" // Pure function of its inputs

		case strings.HasPrefix(path, "/v1/"):
			ttl = "private, max-age=0"
		}

		if ttl != "" {
			c.Set("Cache-Control", ttl)
		}

		return err
	}
}
