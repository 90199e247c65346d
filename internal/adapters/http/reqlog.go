package http

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	loggerKey    ctxKey = "logger"
)

// RequestIDLogMiddleware seeds the user context with the request ID and a
// request-scoped logger so downstream code tags its output consistently.
func RequestIDLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid := requestIDFrom(c)
		if rid == "" {
			return c.Next()
		}

		ctx := context.WithValue(c.UserContext(), requestIDKey, rid)
		ctx = context.WithValue(ctx, loggerKey, slog.Default().With("request_id", rid))
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// requestIDFrom returns the ID minted by the requestid middleware, or ""
// when the middleware has not run.
func requestIDFrom(c *fiber.Ctx) string {
	rid, _ := c.Locals("requestid").(string)
	return rid
}

// LoggerFromCtx extracts the request-scoped logger from a context, falling
// back to the default logger.
func LoggerFromCtx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
