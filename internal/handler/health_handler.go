package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Pinger is an interface for health check ping operations.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	pool  Pinger
	cache Pinger // optional, nil when the throttle runs in-process
}

// NewHealthHandler creates a new HealthHandler with the given database pool
// and optional cache client.
func NewHealthHandler(pool, cache Pinger) *HealthHandler {
	return &HealthHandler{pool: pool, cache: cache}
}

// Check performs a health check by pinging the database and, when configured,
// the throttle's Redis backend.
// Returns 200 OK with {"status": "healthy"} when all backends are reachable.
// Returns 503 Service Unavailable with {"status": "unhealthy", "error": "..."} otherwise.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	if err := h.pool.Ping(c.Context()); err != nil {
		log.Error().Err(err).Msg("health check failed: database unreachable")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  "database connection failed",
		})
	}
	if h.cache != nil {
		if err := h.cache.Ping(c.Context()); err != nil {
			log.Error().Err(err).Msg("health check failed: redis unreachable")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unhealthy",
				"error":  "redis connection failed",
			})
		}
	}
	return c.JSON(fiber.Map{
		"status": "healthy",
	})
}
