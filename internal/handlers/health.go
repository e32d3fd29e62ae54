package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger is anything the health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	Version string
	storage Pinger
	redis   Pinger
}

// NewHealthHandler creates a new health handler. redis may be nil when
// sessions are kept in memory.
func NewHealthHandler(version string, storage, redis Pinger) *HealthHandler {
	return &HealthHandler{
		Version: version,
		storage: storage,
		redis:   redis,
	}
}

// Check returns the health status of the service
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := fiber.StatusOK
	checks := fiber.Map{"storage": "ok", "redis": "disabled"}

	if err := h.storage.Ping(ctx); err != nil {
		checks["storage"] = err.Error()
		status = fiber.StatusServiceUnavailable
	}
	if h.redis != nil {
		checks["redis"] = "ok"
		if err := h.redis.Ping(ctx); err != nil {
			checks["redis"] = err.Error()
			status = fiber.StatusServiceUnavailable
		}
	}

	overall := "OK"
	if status != fiber.StatusOK {
		overall = "DEGRADED"
	}
	return c.Status(status).JSON(fiber.Map{
		"status":  overall,
		"service": "MechLocator Backend",
		"version": h.Version,
		"checks":  checks,
	})
}
