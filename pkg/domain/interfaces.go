package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/merchpulse/merchpulse/pkg/models"
)

// AccountRepository resolves tenants at the ingest boundary.
type AccountRepository interface {
	GetBySiteKey(ctx context.Context, siteKey string) (*models.Account, error)
}

// SessionRepository is the durable store for visitor sessions.
type SessionRepository interface {
	// Get returns the session for (accountID, visitorID), or nil when the
	// visitor has no session yet.
	Get(ctx context.Context, accountID int64, visitorID string) (*models.Session, error)

	// Upsert applies the patch to the session row keyed by
	// (accountID, visitorID), creating it if absent, and returns the
	// resulting row. First-touch fields are only written when the stored
	// values are null; absent patch fields never null out stored columns.
	Upsert(ctx context.Context, accountID int64, visitorID string, patch *models.SessionPatch) (*models.Session, error)

	// FindAbandoned returns sessions with a non-empty cart (at or above
	// minCartValue when > 0), a known email, no activity since the cutoff,
	// and no outstanding abandonment claim.
	FindAbandoned(ctx context.Context, accountID int64, cutoff time.Time, minCartValue float64, limit int) ([]*models.Session, error)

	// ClaimAbandonment sets abandoned_notification_sent_at, succeeding only
	// if the flag is currently null. Returns false when a concurrent
	// scanner run already holds the claim.
	ClaimAbandonment(ctx context.Context, sessionID uuid.UUID, at time.Time) (bool, error)
}

// VisitRepository stores the time-bounded visit windows of a session.
type VisitRepository interface {
	FindLatest(ctx context.Context, sessionID uuid.UUID) (*models.Visit, error)
	Create(ctx context.Context, visit *models.Visit) error
	// Extend advances ended_at and the counters of an open visit.
	Extend(ctx context.Context, visitID uuid.UUID, endedAt time.Time, addPageview bool) error
}

// EventRepository is append-only; events are never updated or deleted.
type EventRepository interface {
	Insert(ctx context.Context, event *models.Event) error
}

// AutomationRepository reads tenant automation configuration.
type AutomationRepository interface {
	// ListActiveByTrigger returns active automations with the given trigger
	// type across all accounts, ordered by account.
	ListActiveByTrigger(ctx context.Context, trigger string) ([]*models.Automation, error)
}

// EnrollmentRepository creates recovery-automation enrollments. The
// automation subsystem owns the rows afterwards.
type EnrollmentRepository interface {
	Insert(ctx context.Context, enrollment *models.AutomationEnrollment) error
}

// ExclusionRepository lists an account's excluded IPs and CIDR ranges.
type ExclusionRepository interface {
	ListByAccount(ctx context.Context, accountID int64) ([]string, error)
}

// GeoLocation is a geo-IP lookup result.
type GeoLocation struct {
	Country string
	City    string
	Region  string
}

// GeoResolver maps an IP address to a location. A nil result with nil error
// means the address could not be located; ingestion proceeds with empty geo
// fields.
type GeoResolver interface {
	Lookup(ctx context.Context, ip string) (*GeoLocation, error)
}

// UAProfile is a parsed user-agent.
type UAProfile struct {
	DeviceType string // mobile, tablet or desktop
	Browser    string
	OS         string
	Bot        bool
}

// UAClassifier parses user-agent strings.
type UAClassifier interface {
	Parse(userAgent string) UAProfile
}

// CacheRepository defines the caching operations services depend on.
type CacheRepository interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
}
