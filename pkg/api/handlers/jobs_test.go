package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/merchpulse/merchpulse/pkg/abandoned"
	"github.com/merchpulse/merchpulse/pkg/logger"
	"github.com/merchpulse/merchpulse/pkg/models"
)

type noAutomations struct{}

func (noAutomations) ListActiveByTrigger(context.Context, string) ([]*models.Automation, error) {
	return nil, nil
}

type noEnrollments struct{}

func (noEnrollments) Insert(context.Context, *models.AutomationEnrollment) error {
	return nil
}

func newJobsFixture(token string) *JobsHandler {
	scanner := abandoned.NewScanner(noAutomations{}, &memSessions{}, noEnrollments{}, 100, 30, logger.Default())
	return NewJobsHandler(scanner, token, logger.Default())
}

func performJobsRun(t *testing.T, handler *JobsHandler, token string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/abandoned-carts/run", nil)
	if token != "" {
		req.Header.Set("X-Jobs-Token", token)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, handler.RunAbandonedCartScan(c))
	return rec
}

func TestJobsHandler_RunAbandonedCartScan(t *testing.T) {
	t.Run("valid token runs the scan", func(t *testing.T) {
		rec := performJobsRun(t, newJobsFixture("secret-token"), "secret-token")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "accounts_processed")
	})

	t.Run("wrong token rejected", func(t *testing.T) {
		rec := performJobsRun(t, newJobsFixture("secret-token"), "guess")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing token rejected", func(t *testing.T) {
		rec := performJobsRun(t, newJobsFixture("secret-token"), "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unset token disables the endpoint", func(t *testing.T) {
		rec := performJobsRun(t, newJobsFixture(""), "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = performJobsRun(t, newJobsFixture(""), "anything")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestJobsHandler_TokenComparisonIsExact(t *testing.T) {
	handler := newJobsFixture("secret-token")

	for _, token := range []string{"secret-token ", "Secret-Token", "secret-toke", "secret-tokenn"} {
		rec := performJobsRun(t, handler, token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "token %q", token)
	}

	// Exact match still works afterwards.
	rec := performJobsRun(t, handler, "secret-token")
	assert.Equal(t, http.StatusOK, rec.Code)
}
