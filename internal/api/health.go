package api

import (
	"github.com/gofiber/fiber/v3"
)

// HealthHandler serves the liveness check endpoint.
type HealthHandler struct{}

// NewHealthHandler creates a new health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Health handles GET /healthz. The server keeps all state in memory and
// flushes to disk in the background, so liveness is the only thing to report.
func (h *HealthHandler) Health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true})
}
