package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/merchpulse/merchpulse/pkg/domain"
	"github.com/merchpulse/merchpulse/pkg/models"
)

// Segmenter groups a session's events into time-bounded visits. A visit
// stays open while events keep arriving within the inactivity gap; the
// first event past the gap opens the next one.
type Segmenter struct {
	visits domain.VisitRepository
	gap    time.Duration
}

// NewSegmenter creates a segmenter with the given inactivity gap.
func NewSegmenter(visits domain.VisitRepository, gap time.Duration) *Segmenter {
	return &Segmenter{
		visits: visits,
		gap:    gap,
	}
}

// Assign attaches the event to the session's open visit, extending it, or
// opens a new visit when none is open. The session carries the
// already-merged context used for the new visit's snapshot.
//
// Two beacons racing near the gap boundary can each open a visit; accepted
// as an eventual-consistency tradeoff rather than guarded with locks.
func (s *Segmenter) Assign(ctx context.Context, session *models.Session, eventType string, now time.Time) (*models.Visit, error) {
	isPageView := models.IsPageView(eventType)

	latest, err := s.visits.FindLatest(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("finding latest visit: %w", err)
	}

	if latest != nil && now.Sub(latest.EndedAt) <= s.gap {
		if err := s.visits.Extend(ctx, latest.ID, now, isPageView); err != nil {
			return nil, fmt.Errorf("extending visit: %w", err)
		}
		latest.EndedAt = now
		latest.Actions++
		if isPageView {
			latest.Pageviews++
		}
		return latest, nil
	}

	number := 1
	if latest != nil {
		number = latest.VisitNumber + 1
	}

	visit := &models.Visit{
		ID:          uuid.New(),
		AccountID:   session.AccountID,
		SessionID:   session.ID,
		VisitNumber: number,
		StartedAt:   now,
		EndedAt:     now,
		Referrer:    session.Referrer,
		UTMSource:   session.UTMSource,
		UTMMedium:   session.UTMMedium,
		UTMCampaign: session.UTMCampaign,
		DeviceType:  session.DeviceType,
		Browser:     session.Browser,
		OS:          session.OS,
		Country:     session.Country,
		City:        session.City,
		Actions:     1,
	}
	if isPageView {
		visit.Pageviews = 1
	}

	if err := s.visits.Create(ctx, visit); err != nil {
		return nil, fmt.Errorf("creating visit: %w", err)
	}
	return visit, nil
}
