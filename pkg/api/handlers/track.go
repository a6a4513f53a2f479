package handlers

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/labstack/echo/v4"

	apierrors "github.com/merchpulse/merchpulse/pkg/api/errors"
	"github.com/merchpulse/merchpulse/pkg/domain"
	"github.com/merchpulse/merchpulse/pkg/logger"
	"github.com/merchpulse/merchpulse/pkg/metrics"
	"github.com/merchpulse/merchpulse/pkg/models"
	"github.com/merchpulse/merchpulse/pkg/tracking"
)

// TrackHandler handles beacon ingestion.
type TrackHandler struct {
	accounts domain.AccountRepository
	pipeline *tracking.Service
	metrics  *metrics.Metrics
	validate *validator.Validate
	log      logger.Logger
}

// NewTrackHandler creates a new tracking handler.
func NewTrackHandler(accounts domain.AccountRepository, pipeline *tracking.Service, m *metrics.Metrics, log logger.Logger) *TrackHandler {
	return &TrackHandler{
		accounts: accounts,
		pipeline: pipeline,
		metrics:  m,
		validate: validator.New(),
		log:      log,
	}
}

// Track handles POST /api/v1/track
//
// 204 means the beacon was durably recorded or intentionally dropped; both
// are success for the snippet. 5xx means a store failure the snippet
// should retry with backoff.
func (h *TrackHandler) Track(c echo.Context) error {
	start := time.Now()

	var beacon models.Beacon
	if err := json.NewDecoder(c.Request().Body).Decode(&beacon); err != nil {
		return apierrors.ValidationError(c, err)
	}

	if err := h.validate.Struct(&beacon); err != nil {
		return apierrors.ValidationError(c, err)
	}

	// Fill transport-level context the snippet did not send.
	if beacon.IPAddress == "" {
		beacon.IPAddress = c.RealIP()
	}
	if beacon.UserAgent == "" {
		beacon.UserAgent = c.Request().UserAgent()
	}

	account, err := h.accounts.GetBySiteKey(c.Request().Context(), beacon.SiteKey)
	if err != nil {
		if domain.IsNotFound(err) {
			return apierrors.UnauthorizedError(c)
		}
		return apierrors.StoreError(c, err)
	}

	result, err := h.pipeline.Process(c.Request().Context(), account.ID, &beacon)
	if err != nil {
		h.metrics.BeaconsFailed.Inc()
		return apierrors.StoreError(c, err)
	}

	h.metrics.IngestDuration.Observe(time.Since(start).Seconds())
	if result.Dropped {
		h.metrics.BeaconsDropped.WithLabelValues(result.DropReason).Inc()
	} else {
		h.metrics.BeaconsProcessed.Inc()
	}

	return c.NoContent(http.StatusNoContent)
}
