package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/merchpulse/merchpulse/pkg/abandoned"
	apierrors "github.com/merchpulse/merchpulse/pkg/api/errors"
	"github.com/merchpulse/merchpulse/pkg/logger"
)

// JobsHandler exposes manual job triggers for operators and the external
// scheduler.
type JobsHandler struct {
	scanner *abandoned.Scanner
	token   string
	log     logger.Logger
}

// NewJobsHandler creates a new jobs handler. Requests must carry the
// configured token in X-Jobs-Token; an empty token disables the endpoint.
func NewJobsHandler(scanner *abandoned.Scanner, token string, log logger.Logger) *JobsHandler {
	return &JobsHandler{
		scanner: scanner,
		token:   token,
		log:     log,
	}
}

// RunAbandonedCartScan handles POST /api/v1/jobs/abandoned-carts/run and
// returns the scan summary.
func (h *JobsHandler) RunAbandonedCartScan(c echo.Context) error {
	if h.token == "" {
		return apierrors.UnauthorizedError(c)
	}
	provided := c.Request().Header.Get("X-Jobs-Token")
	if subtle.ConstantTimeCompare([]byte(provided), []byte(h.token)) != 1 {
		return apierrors.UnauthorizedError(c)
	}

	summary, err := h.scanner.Run(c.Request().Context())
	if err != nil {
		return apierrors.InternalError(c, err)
	}

	return c.JSON(http.StatusOK, summary)
}
