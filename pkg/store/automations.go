package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	json "github.com/goccy/go-json"
	"github.com/merchpulse/merchpulse/pkg/models"
)

// AutomationStore implements domain.AutomationRepository on PostgreSQL.
type AutomationStore struct {
	db *sql.DB
}

// NewAutomationStore creates a new automation store.
func NewAutomationStore(db *sql.DB) *AutomationStore {
	return &AutomationStore{db: db}
}

// ListActiveByTrigger returns active automations with the given trigger
// type across all accounts, ordered by account.
func (s *AutomationStore) ListActiveByTrigger(ctx context.Context, trigger string) ([]*models.Automation, error) {
	query, args, err := psq.Select("id", "account_id", "name", "trigger_type", "active", "config").
		From("automations").
		Where(sq.Eq{"trigger_type": trigger, "active": true}).
		OrderBy("account_id ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building automation query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying automations: %w", err)
	}
	defer rows.Close()

	var automations []*models.Automation
	for rows.Next() {
		var (
			a         models.Automation
			configRaw []byte
		)
		if err := rows.Scan(&a.ID, &a.AccountID, &a.Name, &a.Trigger, &a.Active, &configRaw); err != nil {
			return nil, fmt.Errorf("scanning automation: %w", err)
		}
		if len(configRaw) > 0 {
			if err := json.Unmarshal(configRaw, &a.Config); err != nil {
				return nil, fmt.Errorf("unmarshaling automation config: %w", err)
			}
		}
		automations = append(automations, &a)
	}
	return automations, rows.Err()
}

// EnrollmentStore implements domain.EnrollmentRepository on PostgreSQL.
type EnrollmentStore struct {
	db *sql.DB
}

// NewEnrollmentStore creates a new enrollment store.
func NewEnrollmentStore(db *sql.DB) *EnrollmentStore {
	return &EnrollmentStore{db: db}
}

// Insert creates one enrollment. The automation subsystem picks it up from
// there via status/next_run_at.
func (s *EnrollmentStore) Insert(ctx context.Context, e *models.AutomationEnrollment) error {
	var contextData []byte
	if e.ContextData != nil {
		var err error
		contextData, err = json.Marshal(e.ContextData)
		if err != nil {
			return fmt.Errorf("marshaling enrollment context: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO automation_enrollments
		 (id, automation_id, account_id, session_id, email, woo_customer_id,
		  status, context_data, next_run_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.AutomationID, e.AccountID, e.SessionID, e.Email,
		e.WooCustomerID, e.Status, contextData, e.NextRunAt, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting enrollment: %w", err)
	}
	return nil
}
