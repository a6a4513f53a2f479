package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/brianvoe/gofakeit/v6"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/merchpulse/merchpulse/pkg/cache"
	"github.com/merchpulse/merchpulse/pkg/domain"
	"github.com/merchpulse/merchpulse/pkg/exclusion"
	"github.com/merchpulse/merchpulse/pkg/logger"
	"github.com/merchpulse/merchpulse/pkg/metrics"
	"github.com/merchpulse/merchpulse/pkg/models"
	"github.com/merchpulse/merchpulse/pkg/tracking"
)

// Collectors register on the default Prometheus registry, so the package
// shares one instance across tests.
var testMetrics = metrics.New()

type stubAccounts struct {
	accounts map[string]*models.Account
	fail     error
}

func (s *stubAccounts) GetBySiteKey(_ context.Context, siteKey string) (*models.Account, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	account, ok := s.accounts[siteKey]
	if !ok {
		return nil, domain.NewNotFoundError("account")
	}
	return account, nil
}

type memSessions struct {
	byVisitor map[string]*models.Session
	fail      error
}

func (m *memSessions) Get(_ context.Context, _ int64, visitorID string) (*models.Session, error) {
	if m.fail != nil {
		return nil, m.fail
	}
	return m.byVisitor[visitorID], nil
}

func (m *memSessions) Upsert(_ context.Context, accountID int64, visitorID string, patch *models.SessionPatch) (*models.Session, error) {
	if m.fail != nil {
		return nil, m.fail
	}
	s, ok := m.byVisitor[visitorID]
	if !ok {
		s = &models.Session{ID: uuid.New(), AccountID: accountID, VisitorID: visitorID}
		m.byVisitor[visitorID] = s
	}
	if patch.LastTouchSource != nil {
		s.LastTouchSource = patch.LastTouchSource
	}
	if patch.IncrementVisits {
		s.TotalVisits++
	}
	s.LastActiveAt = patch.LastActiveAt
	return s, nil
}

func (m *memSessions) FindAbandoned(context.Context, int64, time.Time, float64, int) ([]*models.Session, error) {
	return nil, nil
}

func (m *memSessions) ClaimAbandonment(context.Context, uuid.UUID, time.Time) (bool, error) {
	return false, nil
}

type memVisits struct {
	latest map[uuid.UUID]*models.Visit
}

func (m *memVisits) FindLatest(_ context.Context, sessionID uuid.UUID) (*models.Visit, error) {
	return m.latest[sessionID], nil
}

func (m *memVisits) Create(_ context.Context, visit *models.Visit) error {
	m.latest[visit.SessionID] = visit
	return nil
}

func (m *memVisits) Extend(_ context.Context, visitID uuid.UUID, endedAt time.Time, addPageview bool) error {
	for _, v := range m.latest {
		if v.ID == visitID {
			v.EndedAt = endedAt
			v.Actions++
			if addPageview {
				v.Pageviews++
			}
		}
	}
	return nil
}

type memEvents struct {
	events []*models.Event
}

func (m *memEvents) Insert(_ context.Context, event *models.Event) error {
	m.events = append(m.events, event)
	return nil
}

type emptyExclusions struct{}

func (emptyExclusions) ListByAccount(context.Context, int64) ([]string, error) {
	return nil, nil
}

type passClassifier struct{}

func (passClassifier) Parse(userAgent string) domain.UAProfile {
	return domain.UAProfile{
		DeviceType: "desktop",
		Browser:    "Chrome",
		OS:         "Linux",
		Bot:        strings.Contains(strings.ToLower(userAgent), "bot"),
	}
}

type trackFixture struct {
	handler  *TrackHandler
	accounts *stubAccounts
	sessions *memSessions
	events   *memEvents
}

func newTrackFixture(t *testing.T) *trackFixture {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	redisClient := cache.NewClientFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { redisClient.Close() })

	log := logger.Default()
	sessions := &memSessions{byVisitor: map[string]*models.Session{}}
	visits := &memVisits{latest: map[uuid.UUID]*models.Visit{}}
	events := &memEvents{}

	exclusions := exclusion.NewService(emptyExclusions{},
		cache.NewNamespace(redisClient, "exclusions", time.Minute), log)
	filter := tracking.NewFilter(passClassifier{}, exclusions)
	enricher := tracking.NewEnricher(fakeNoGeo{}, passClassifier{}, log)
	segmenter := tracking.NewSegmenter(visits, 30*time.Minute)
	pipeline := tracking.NewService(sessions, events, filter, enricher, segmenter, log)

	accounts := &stubAccounts{accounts: map[string]*models.Account{
		"sk_live_valid": {ID: 1, SiteKey: "sk_live_valid", Name: "Test Shop", Active: true},
	}}

	return &trackFixture{
		handler:  NewTrackHandler(accounts, pipeline, testMetrics, log),
		accounts: accounts,
		sessions: sessions,
		events:   events,
	}
}

type fakeNoGeo struct{}

func (fakeNoGeo) Lookup(context.Context, string) (*domain.GeoLocation, error) {
	return nil, nil
}

func performTrack(t *testing.T, handler *TrackHandler, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	encoded, err := json.Marshal(body)
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/track", strings.NewReader(string(encoded)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("User-Agent", "Mozilla/5.0 Chrome/120")
	req.RemoteAddr = "198.51.100.9:4455"
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err = handler.Track(c)
	require.NoError(t, err)
	return rec
}

func TestTrackHandler_AcceptsBeacon(t *testing.T) {
	f := newTrackFixture(t)

	visitorID := gofakeit.UUID()
	rec := performTrack(t, f.handler, models.Beacon{
		SiteKey:   "sk_live_valid",
		VisitorID: visitorID,
		Type:      models.EventPageview,
		URL:       "https://shop.example.com/",
	})

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, f.events.events, 1)
	assert.Equal(t, models.EventPageview, f.events.events[0].Type)

	session := f.sessions.byVisitor[visitorID]
	require.NotNil(t, session)
	assert.Equal(t, int64(1), session.AccountID)
}

func TestTrackHandler_DroppedBeaconStillSucceeds(t *testing.T) {
	f := newTrackFixture(t)

	rec := performTrack(t, f.handler, models.Beacon{
		SiteKey:   "sk_live_valid",
		VisitorID: gofakeit.UUID(),
		Type:      models.EventPageview,
		UserAgent: "Googlebot/2.1",
	})

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, f.events.events, "dropped beacons write nothing")
}

func TestTrackHandler_UnknownSiteKey(t *testing.T) {
	f := newTrackFixture(t)

	rec := performTrack(t, f.handler, models.Beacon{
		SiteKey:   "sk_live_unknown",
		VisitorID: gofakeit.UUID(),
		Type:      models.EventPageview,
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "unauthorized")
}

func TestTrackHandler_Validation(t *testing.T) {
	f := newTrackFixture(t)

	tests := []struct {
		name   string
		beacon models.Beacon
	}{
		{"missing site key", models.Beacon{VisitorID: "v-1", Type: models.EventPageview}},
		{"missing visitor id", models.Beacon{SiteKey: "sk_live_valid", Type: models.EventPageview}},
		{"missing type", models.Beacon{SiteKey: "sk_live_valid", VisitorID: "v-1"}},
		{"bad email", models.Beacon{SiteKey: "sk_live_valid", VisitorID: "v-1", Type: models.EventIdentify, Email: "not-an-email"}},
		{"bad referrer type", models.Beacon{SiteKey: "sk_live_valid", VisitorID: "v-1", Type: models.EventPageview, ReferrerType: "carrier-pigeon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := performTrack(t, f.handler, tt.beacon)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "validation_error")
		})
	}

	assert.Empty(t, f.events.events)
}

func TestTrackHandler_MalformedJSON(t *testing.T) {
	f := newTrackFixture(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/track", strings.NewReader("{not json"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, f.handler.Track(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrackHandler_FillsTransportContext(t *testing.T) {
	f := newTrackFixture(t)

	visitorID := gofakeit.UUID()
	rec := performTrack(t, f.handler, models.Beacon{
		SiteKey:   "sk_live_valid",
		VisitorID: visitorID,
		Type:      models.EventPageview,
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// The request's IP and UA were used even though the beacon omitted them.
	session := f.sessions.byVisitor[visitorID]
	require.NotNil(t, session)

	rec2 := performTrack(t, f.handler, models.Beacon{
		SiteKey:   "sk_live_valid",
		VisitorID: gofakeit.UUID(),
		Type:      models.EventPageview,
		UserAgent: "Googlebot/2.1",
	})
	assert.Equal(t, http.StatusNoContent, rec2.Code, "explicit beacon UA wins over request UA")
}

func TestTrackHandler_StoreFailureIsRetryable(t *testing.T) {
	f := newTrackFixture(t)
	f.sessions.fail = assert.AnError

	rec := performTrack(t, f.handler, models.Beacon{
		SiteKey:   "sk_live_valid",
		VisitorID: gofakeit.UUID(),
		Type:      models.EventPageview,
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "store_error")
}
