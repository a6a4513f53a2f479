package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/merchpulse/merchpulse/pkg/cache"
	"github.com/merchpulse/merchpulse/pkg/database"
)

// HealthHandler exposes liveness and readiness probes.
type HealthHandler struct {
	db    *database.Client
	cache *cache.Client
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(db *database.Client, cache *cache.Client) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

// Health handles GET /health
func (h *HealthHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /ready; it fails when a backing service is down.
func (h *HealthHandler) Ready(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.db.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable", "database": err.Error(),
		})
	}
	if err := h.cache.Redis.Ping(ctx).Err(); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable", "redis": err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}
