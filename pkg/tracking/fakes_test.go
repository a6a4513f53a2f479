package tracking

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/merchpulse/merchpulse/pkg/domain"
	"github.com/merchpulse/merchpulse/pkg/models"
)

// fakeSessionRepo keeps sessions in memory and applies patches with the same
// merge rules the SQL upsert encodes.
type fakeSessionRepo struct {
	sessions map[string]*models.Session
	upserts  int
	getErr   error
	fail     error
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[string]*models.Session{}}
}

func sessionKey(accountID int64, visitorID string) string {
	return strconv.FormatInt(accountID, 10) + "|" + visitorID
}

func (f *fakeSessionRepo) Get(_ context.Context, accountID int64, visitorID string) (*models.Session, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	s, ok := f.sessions[sessionKey(accountID, visitorID)]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSessionRepo) Upsert(_ context.Context, accountID int64, visitorID string, patch *models.SessionPatch) (*models.Session, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	f.upserts++

	key := sessionKey(accountID, visitorID)
	s, ok := f.sessions[key]
	if !ok {
		s = &models.Session{
			ID:        uuid.New(),
			AccountID: accountID,
			VisitorID: visitorID,
			CartItems: []models.CartItem{},
			CreatedAt: patch.LastActiveAt,
		}
		f.sessions[key] = s
	}

	setIf := func(dst **string, src *string) {
		if src != nil {
			*dst = src
		}
	}
	setIf(&s.Email, patch.Email)
	setIf(&s.IPAddress, patch.IPAddress)
	setIf(&s.UserAgent, patch.UserAgent)
	setIf(&s.Country, patch.Country)
	setIf(&s.City, patch.City)
	setIf(&s.DeviceType, patch.DeviceType)
	setIf(&s.Browser, patch.Browser)
	setIf(&s.OS, patch.OS)
	setIf(&s.CurrentPath, patch.CurrentPath)
	setIf(&s.LastTouchSource, patch.LastTouchSource)
	setIf(&s.UTMSource, patch.UTMSource)
	setIf(&s.UTMMedium, patch.UTMMedium)
	setIf(&s.UTMCampaign, patch.UTMCampaign)
	setIf(&s.Currency, patch.Currency)

	if patch.WooCustomerID != nil {
		s.WooCustomerID = patch.WooCustomerID
	}
	if s.FirstTouchSource == nil {
		s.FirstTouchSource = patch.FirstTouchSource
		s.FirstTouchAt = patch.FirstTouchAt
	}
	if patch.LastTouchAt != nil {
		s.LastTouchAt = patch.LastTouchAt
	}
	if s.Referrer == nil {
		s.Referrer = patch.Referrer
	}
	if patch.CartValue != nil {
		s.CartValue = *patch.CartValue
	}
	if patch.CartItems != nil {
		s.CartItems = patch.CartItems
	}
	if patch.ClearAbandonedClaim {
		s.AbandonedNotificationSentAt = nil
	}
	if patch.IncrementVisits {
		s.TotalVisits++
	}
	s.LastActiveAt = patch.LastActiveAt
	s.UpdatedAt = patch.LastActiveAt

	copied := *s
	return &copied, nil
}

func (f *fakeSessionRepo) FindAbandoned(context.Context, int64, time.Time, float64, int) ([]*models.Session, error) {
	return nil, nil
}

func (f *fakeSessionRepo) ClaimAbandonment(_ context.Context, sessionID uuid.UUID, at time.Time) (bool, error) {
	for _, s := range f.sessions {
		if s.ID == sessionID {
			if s.AbandonedNotificationSentAt != nil {
				return false, nil
			}
			s.AbandonedNotificationSentAt = &at
			return true, nil
		}
	}
	return false, nil
}

// fakeVisitRepo stores visits per session in arrival order.
type fakeVisitRepo struct {
	visits  map[uuid.UUID][]*models.Visit
	extends int
	creates int
	fail    error
}

func newFakeVisitRepo() *fakeVisitRepo {
	return &fakeVisitRepo{visits: map[uuid.UUID][]*models.Visit{}}
}

func (f *fakeVisitRepo) FindLatest(_ context.Context, sessionID uuid.UUID) (*models.Visit, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	list := f.visits[sessionID]
	if len(list) == 0 {
		return nil, nil
	}
	copied := *list[len(list)-1]
	return &copied, nil
}

func (f *fakeVisitRepo) Create(_ context.Context, visit *models.Visit) error {
	if f.fail != nil {
		return f.fail
	}
	f.creates++
	copied := *visit
	f.visits[visit.SessionID] = append(f.visits[visit.SessionID], &copied)
	return nil
}

func (f *fakeVisitRepo) Extend(_ context.Context, visitID uuid.UUID, endedAt time.Time, addPageview bool) error {
	if f.fail != nil {
		return f.fail
	}
	f.extends++
	for _, list := range f.visits {
		for _, v := range list {
			if v.ID == visitID {
				v.EndedAt = endedAt
				v.Actions++
				if addPageview {
					v.Pageviews++
				}
				return nil
			}
		}
	}
	return nil
}

// fakeEventRepo is an append-only in-memory event log.
type fakeEventRepo struct {
	events []*models.Event
	fail   error
}

func (f *fakeEventRepo) Insert(_ context.Context, event *models.Event) error {
	if f.fail != nil {
		return f.fail
	}
	f.events = append(f.events, event)
	return nil
}

// fakeClassifier marks user agents containing "bot" as bots and everything
// else as desktop Chrome.
type fakeClassifier struct{}

func (fakeClassifier) Parse(userAgent string) domain.UAProfile {
	return domain.UAProfile{
		DeviceType: "desktop",
		Browser:    "Chrome",
		OS:         "Linux",
		Bot:        strings.Contains(strings.ToLower(userAgent), "bot"),
	}
}

// fakeGeo returns a fixed location, or an error when set.
type fakeGeo struct {
	loc  *domain.GeoLocation
	fail error
}

func (f fakeGeo) Lookup(context.Context, string) (*domain.GeoLocation, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	return f.loc, nil
}

// fakeExclusionRepo serves a static exclusion list per account.
type fakeExclusionRepo struct {
	entries map[int64][]string
	fail    error
	calls   int
}

func (f *fakeExclusionRepo) ListByAccount(_ context.Context, accountID int64) ([]string, error) {
	f.calls++
	if f.fail != nil {
		return nil, f.fail
	}
	return f.entries[accountID], nil
}
