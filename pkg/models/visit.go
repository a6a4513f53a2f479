package models

import (
	"time"

	"github.com/google/uuid"
)

// Visit is a bounded activity window within a session, closed by a
// 30-minute inactivity gap. Referrer/UTM/device/geo columns are a snapshot
// taken when the window opened.
type Visit struct {
	ID          uuid.UUID  `json:"id"`
	AccountID   int64      `json:"account_id"`
	SessionID   uuid.UUID  `json:"session_id"`
	VisitNumber int        `json:"visit_number"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     time.Time  `json:"ended_at"`
	Referrer    *string    `json:"referrer,omitempty"`
	UTMSource   *string    `json:"utm_source,omitempty"`
	UTMMedium   *string    `json:"utm_medium,omitempty"`
	UTMCampaign *string    `json:"utm_campaign,omitempty"`
	DeviceType  *string    `json:"device_type,omitempty"`
	Browser     *string    `json:"browser,omitempty"`
	OS          *string    `json:"os,omitempty"`
	Country     *string    `json:"country,omitempty"`
	City        *string    `json:"city,omitempty"`
	Pageviews   int        `json:"pageviews"`
	Actions     int        `json:"actions"`
}
