// Package store provides the PostgreSQL repositories backing the tracking
// engine.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/merchpulse/merchpulse/pkg/models"
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// sessionColumns lists columns returned by session SELECT queries, in scan
// order.
var sessionColumns = []string{
	"id", "account_id", "visitor_id", "email", "woo_customer_id",
	"ip_address", "user_agent", "country", "city", "device_type", "browser",
	"os", "current_path", "first_touch_source", "first_touch_at",
	"last_touch_source", "last_touch_at", "utm_source", "utm_medium",
	"utm_campaign", "referrer", "cart_value", "cart_items", "currency",
	"abandoned_notification_sent_at", "total_visits", "last_active_at",
	"created_at", "updated_at",
}

// sessionColumnList is sessionColumns joined for RETURNING clauses.
const sessionColumnList = `id, account_id, visitor_id, email, woo_customer_id,
	ip_address, user_agent, country, city, device_type, browser, os, current_path,
	first_touch_source, first_touch_at, last_touch_source, last_touch_at,
	utm_source, utm_medium, utm_campaign, referrer,
	cart_value, cart_items, currency, abandoned_notification_sent_at,
	total_visits, last_active_at, created_at, updated_at`

// SessionStore implements domain.SessionRepository on PostgreSQL.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore creates a new session store.
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Get returns the session for (accountID, visitorID), or nil when absent.
func (s *SessionStore) Get(ctx context.Context, accountID int64, visitorID string) (*models.Session, error) {
	query, args, err := psq.Select(sessionColumns...).
		From("sessions").
		Where(sq.Eq{"account_id": accountID, "visitor_id": visitorID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building session query: %w", err)
	}

	row := s.db.QueryRowContext(ctx, query, args...)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return session, err
}

// upsertSessionSQL merges a beacon's patch into the session row in one
// statement. COALESCE keeps absent fields from nulling out stored values;
// first_touch_* and referrer COALESCE the other way around so they are
// write-once.
const upsertSessionSQL = `
INSERT INTO sessions (
	id, account_id, visitor_id, email, woo_customer_id,
	ip_address, user_agent, country, city, device_type, browser, os, current_path,
	first_touch_source, first_touch_at, last_touch_source, last_touch_at,
	utm_source, utm_medium, utm_campaign, referrer,
	cart_value, cart_items, currency, abandoned_notification_sent_at,
	total_visits, last_active_at, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5,
	$6, $7, $8, $9, $10, $11, $12, $13,
	$14, $15, $16, $17,
	$18, $19, $20, $21,
	COALESCE($22, 0), COALESCE($23, '[]'::jsonb), $24, NULL,
	CASE WHEN $26 THEN 1 ELSE 0 END, $27, $27, $27
)
ON CONFLICT (account_id, visitor_id) DO UPDATE SET
	email              = COALESCE($4, sessions.email),
	woo_customer_id    = COALESCE($5, sessions.woo_customer_id),
	ip_address         = COALESCE($6, sessions.ip_address),
	user_agent         = COALESCE($7, sessions.user_agent),
	country            = COALESCE($8, sessions.country),
	city               = COALESCE($9, sessions.city),
	device_type        = COALESCE($10, sessions.device_type),
	browser            = COALESCE($11, sessions.browser),
	os                 = COALESCE($12, sessions.os),
	current_path       = COALESCE($13, sessions.current_path),
	first_touch_source = COALESCE(sessions.first_touch_source, $14),
	first_touch_at     = COALESCE(sessions.first_touch_at, $15),
	last_touch_source  = COALESCE($16, sessions.last_touch_source),
	last_touch_at      = COALESCE($17, sessions.last_touch_at),
	utm_source         = COALESCE($18, sessions.utm_source),
	utm_medium         = COALESCE($19, sessions.utm_medium),
	utm_campaign       = COALESCE($20, sessions.utm_campaign),
	referrer           = COALESCE(sessions.referrer, $21),
	cart_value         = COALESCE($22, sessions.cart_value),
	cart_items         = COALESCE($23, sessions.cart_items),
	currency           = COALESCE($24, sessions.currency),
	abandoned_notification_sent_at = CASE WHEN $25 THEN NULL ELSE sessions.abandoned_notification_sent_at END,
	total_visits       = sessions.total_visits + CASE WHEN $26 THEN 1 ELSE 0 END,
	last_active_at     = $27,
	updated_at         = $27
RETURNING ` + sessionColumnList

// Upsert applies the patch to the session keyed by (accountID, visitorID),
// creating the row on first contact, and returns the resulting session.
func (s *SessionStore) Upsert(ctx context.Context, accountID int64, visitorID string, patch *models.SessionPatch) (*models.Session, error) {
	var itemsJSON []byte
	if patch.CartItems != nil {
		var err error
		itemsJSON, err = json.Marshal(patch.CartItems)
		if err != nil {
			return nil, fmt.Errorf("marshaling cart items: %w", err)
		}
	}

	row := s.db.QueryRowContext(ctx, upsertSessionSQL,
		uuid.New(),       // $1, ignored on conflict
		accountID,        // $2
		visitorID,        // $3
		patch.Email,      // $4
		patch.WooCustomerID,
		patch.IPAddress,
		patch.UserAgent,
		patch.Country,
		patch.City,
		patch.DeviceType, // $10
		patch.Browser,
		patch.OS,
		patch.CurrentPath,
		patch.FirstTouchSource,
		patch.FirstTouchAt,
		patch.LastTouchSource,
		patch.LastTouchAt,
		patch.UTMSource,
		patch.UTMMedium,
		patch.UTMCampaign, // $20
		patch.Referrer,
		patch.CartValue,
		itemsJSON,
		patch.Currency,
		patch.ClearAbandonedClaim,
		patch.IncrementVisits,
		patch.LastActiveAt, // $27
	)

	session, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("upserting session: %w", err)
	}
	return session, nil
}

// FindAbandoned returns stale, identified, non-empty carts that have not
// been claimed yet.
func (s *SessionStore) FindAbandoned(ctx context.Context, accountID int64, cutoff time.Time, minCartValue float64, limit int) ([]*models.Session, error) {
	qb := psq.Select(sessionColumns...).
		From("sessions").
		Where(sq.Eq{"account_id": accountID}).
		Where("email IS NOT NULL AND email <> ''").
		Where(sq.Lt{"last_active_at": cutoff}).
		Where("abandoned_notification_sent_at IS NULL")

	if minCartValue > 0 {
		qb = qb.Where(sq.GtOrEq{"cart_value": minCartValue})
	} else {
		qb = qb.Where(sq.Gt{"cart_value": 0})
	}

	qb = qb.OrderBy("last_active_at ASC")
	if limit > 0 {
		qb = qb.Limit(uint64(limit))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building abandoned query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying abandoned sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// ClaimAbandonment marks the session as enrolled, succeeding only when the
// claim flag is still null. The conditional update is the idempotency guard
// against duplicate enrollments from overlapping scanner runs.
func (s *SessionStore) ClaimAbandonment(ctx context.Context, sessionID uuid.UUID, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions
		 SET abandoned_notification_sent_at = $2, updated_at = $2
		 WHERE id = $1 AND abandoned_notification_sent_at IS NULL`,
		sessionID, at,
	)
	if err != nil {
		return false, fmt.Errorf("claiming abandonment: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		session   models.Session
		itemsJSON []byte
	)

	err := row.Scan(
		&session.ID, &session.AccountID, &session.VisitorID,
		&session.Email, &session.WooCustomerID,
		&session.IPAddress, &session.UserAgent, &session.Country,
		&session.City, &session.DeviceType, &session.Browser, &session.OS,
		&session.CurrentPath,
		&session.FirstTouchSource, &session.FirstTouchAt,
		&session.LastTouchSource, &session.LastTouchAt,
		&session.UTMSource, &session.UTMMedium, &session.UTMCampaign,
		&session.Referrer,
		&session.CartValue, &itemsJSON, &session.Currency,
		&session.AbandonedNotificationSentAt,
		&session.TotalVisits, &session.LastActiveAt,
		&session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &session.CartItems); err != nil {
			return nil, fmt.Errorf("unmarshaling cart items: %w", err)
		}
	}
	if session.CartItems == nil {
		session.CartItems = []models.CartItem{}
	}

	return &session, nil
}
