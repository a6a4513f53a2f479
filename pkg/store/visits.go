package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/merchpulse/merchpulse/pkg/models"
)

var visitColumns = []string{
	"id", "account_id", "session_id", "visit_number", "started_at",
	"ended_at", "referrer", "utm_source", "utm_medium", "utm_campaign",
	"device_type", "browser", "os", "country", "city", "pageviews",
	"actions",
}

// VisitStore implements domain.VisitRepository on PostgreSQL.
type VisitStore struct {
	db *sql.DB
}

// NewVisitStore creates a new visit store.
func NewVisitStore(db *sql.DB) *VisitStore {
	return &VisitStore{db: db}
}

// FindLatest returns the session's most recent visit by started_at, or nil
// when the session has none yet.
func (s *VisitStore) FindLatest(ctx context.Context, sessionID uuid.UUID) (*models.Visit, error) {
	query, args, err := psq.Select(visitColumns...).
		From("visits").
		Where(sq.Eq{"session_id": sessionID}).
		OrderBy("started_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building latest visit query: %w", err)
	}

	var visit models.Visit
	row := s.db.QueryRowContext(ctx, query, args...)
	err = row.Scan(
		&visit.ID, &visit.AccountID, &visit.SessionID, &visit.VisitNumber,
		&visit.StartedAt, &visit.EndedAt, &visit.Referrer, &visit.UTMSource,
		&visit.UTMMedium, &visit.UTMCampaign, &visit.DeviceType,
		&visit.Browser, &visit.OS, &visit.Country, &visit.City,
		&visit.Pageviews, &visit.Actions,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest visit: %w", err)
	}
	return &visit, nil
}

// Create inserts a new visit window.
func (s *VisitStore) Create(ctx context.Context, visit *models.Visit) error {
	query, args, err := psq.Insert("visits").
		Columns(visitColumns...).
		Values(
			visit.ID, visit.AccountID, visit.SessionID, visit.VisitNumber,
			visit.StartedAt, visit.EndedAt, visit.Referrer, visit.UTMSource,
			visit.UTMMedium, visit.UTMCampaign, visit.DeviceType,
			visit.Browser, visit.OS, visit.Country, visit.City,
			visit.Pageviews, visit.Actions,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("building visit insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting visit: %w", err)
	}
	return nil
}

// Extend advances the open visit's window and counters.
func (s *VisitStore) Extend(ctx context.Context, visitID uuid.UUID, endedAt time.Time, addPageview bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE visits
		 SET ended_at  = $2,
		     pageviews = pageviews + CASE WHEN $3 THEN 1 ELSE 0 END,
		     actions   = actions + 1
		 WHERE id = $1`,
		visitID, endedAt, addPageview,
	)
	if err != nil {
		return fmt.Errorf("extending visit: %w", err)
	}
	return nil
}
