package store

import (
	"context"
	"database/sql"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/merchpulse/merchpulse/pkg/models"
)

// EventStore implements domain.EventRepository on PostgreSQL. Events are
// append-only; there are no update or delete paths.
type EventStore struct {
	db *sql.DB
}

// NewEventStore creates a new event store.
func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

// Insert appends one event.
func (s *EventStore) Insert(ctx context.Context, event *models.Event) error {
	var payload []byte
	if event.Payload != nil {
		var err error
		payload, err = json.Marshal(event.Payload)
		if err != nil {
			return fmt.Errorf("marshaling event payload: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events
		 (id, account_id, session_id, visit_id, type, url, page_title, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		event.ID, event.AccountID, event.SessionID, event.VisitID,
		event.Type, event.URL, event.PageTitle, payload, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}
