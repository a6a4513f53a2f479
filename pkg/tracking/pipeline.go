package tracking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/merchpulse/merchpulse/pkg/domain"
	"github.com/merchpulse/merchpulse/pkg/logger"
	"github.com/merchpulse/merchpulse/pkg/models"
)

// Service runs the ingestion pipeline for one beacon: filter, enrich,
// resolve attribution, upsert the session, segment the visit, log the
// event. Everything happens synchronously within the request.
type Service struct {
	sessions  domain.SessionRepository
	events    domain.EventRepository
	filter    *Filter
	enricher  *Enricher
	segmenter *Segmenter
	log       logger.Logger
}

// NewService creates the pipeline service.
func NewService(
	sessions domain.SessionRepository,
	events domain.EventRepository,
	filter *Filter,
	enricher *Enricher,
	segmenter *Segmenter,
	log logger.Logger,
) *Service {
	return &Service{
		sessions:  sessions,
		events:    events,
		filter:    filter,
		enricher:  enricher,
		segmenter: segmenter,
		log:       log,
	}
}

// Result reports what one beacon produced. Dropped results carry no
// records at all; both outcomes are success from the sender's perspective.
type Result struct {
	Dropped    bool
	DropReason string
	Session    *models.Session
	Visit      *models.Visit
	Event      *models.Event
}

// Process ingests one beacon for the given account. Filter and enrichment
// problems are absorbed; any store failure propagates and the sender is
// expected to retry the whole beacon.
func (s *Service) Process(ctx context.Context, accountID int64, beacon *models.Beacon) (*Result, error) {
	now := time.Now().UTC()

	if reason := s.filter.Check(ctx, accountID, beacon); reason != "" {
		s.log.Debug("beacon dropped",
			"account_id", accountID, "reason", reason, "type", beacon.Type)
		return &Result{Dropped: true, DropReason: reason}, nil
	}

	enriched := s.enricher.Enrich(ctx, beacon)

	existing, err := s.sessions.Get(ctx, accountID, beacon.VisitorID)
	if err != nil {
		return nil, domain.NewStoreError("session lookup", err)
	}

	attr := ResolveAttribution(beacon, existing)
	patch := BuildSessionPatch(beacon, existing, enriched, attr, now)

	session, err := s.sessions.Upsert(ctx, accountID, beacon.VisitorID, patch)
	if err != nil {
		return nil, domain.NewStoreError("session upsert", err)
	}

	visit, err := s.segmenter.Assign(ctx, session, beacon.Type, now)
	if err != nil {
		return nil, domain.NewStoreError("visit segmentation", err)
	}

	event := buildEvent(accountID, session, visit, beacon, now)
	if err := s.events.Insert(ctx, event); err != nil {
		return nil, domain.NewStoreError("event insert", err)
	}

	return &Result{Session: session, Visit: visit, Event: event}, nil
}

func buildEvent(accountID int64, session *models.Session, visit *models.Visit, beacon *models.Beacon, now time.Time) *models.Event {
	event := &models.Event{
		ID:        uuid.New(),
		AccountID: accountID,
		SessionID: session.ID,
		VisitID:   visit.ID,
		Type:      beacon.Type,
		Payload:   beacon.Payload,
		CreatedAt: now,
	}

	if beacon.URL != "" {
		event.URL = &beacon.URL
	}
	if beacon.PageTitle != "" {
		event.PageTitle = &beacon.PageTitle
	}

	// Not-found pageviews keep the flag inside the stored payload.
	if beacon.Type == models.EventPageview && beacon.Is404 {
		if event.Payload == nil {
			event.Payload = map[string]interface{}{}
		}
		event.Payload["is_404"] = true
	}

	return event
}
