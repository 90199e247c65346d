package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler returns a basic liveness check.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(startedAt).String(),
			"version": "dev",
		})
	}
}

// ReadyHandler checks the helper socket, local store, NATS, and cache.
// Helper and store are required; NATS and cache are optional extras.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		checks := make(map[string]string)
		allOK := true

		// Location helper
		if deps.Helper != nil {
			if err := deps.Helper.Ping(ctx); err != nil {
				checks["helper"] = "error: " + err.Error()
				allOK = false
			} else {
				checks["helper"] = "ok"
			}
		} else {
			checks["helper"] = "not configured"
			allOK = false
		}

		// Local store
		if deps.Store != nil {
			if err := deps.Store.Ping(ctx); err != nil {
				checks["store"] = "error: " + err.Error()
				allOK = false
			} else {
				checks["store"] = "ok"
			}
		} else {
			checks["store"] = "not configured"
			allOK = false
		}

		// NATS
		if deps.Events != nil {
			if err := deps.Events.Ping(); err != nil {
				checks["nats"] = "disconnected"
				allOK = false
			} else {
				checks["nats"] = "ok"
			}
		} else {
			checks["nats"] = "not configured"
		}

		// Valkey cache
		if deps.Cache != nil {
			if err := deps.Cache.Ping(ctx); err != nil {
				checks["cache"] = "error: " + err.Error()
				allOK = false
			} else {
				checks["cache"] = "ok"
			}
		} else {
			checks["cache"] = "not configured"
		}

		status := "ready"
		code := 200
		if !allOK {
			status = "not ready"
			code = 503
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}
