package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem is one line of a visitor's live cart, as reported by the
// storefront snippet.
type CartItem struct {
	ProductID   int64    `json:"product_id"`
	VariationID *int64   `json:"variation_id,omitempty"`
	Name        string   `json:"name"`
	SKU         *string  `json:"sku,omitempty"`
	Quantity    int      `json:"quantity"`
	Price       float64  `json:"price"`
	Total       float64  `json:"total"`
}

// Session is the durable record for one visitor on one account. One row per
// (account_id, visitor_id), created on the first beacon and mutated in place
// on every subsequent one.
type Session struct {
	ID        uuid.UUID `json:"id"`
	AccountID int64     `json:"account_id"`
	VisitorID string    `json:"visitor_id"`

	// Identity, set by identify/checkout events (session stitching)
	Email         *string `json:"email,omitempty"`
	WooCustomerID *int64  `json:"woo_customer_id,omitempty"`

	// Context. IPAddress is always stored masked.
	IPAddress   *string `json:"ip_address,omitempty"`
	UserAgent   *string `json:"user_agent,omitempty"`
	Country     *string `json:"country,omitempty"`
	City        *string `json:"city,omitempty"`
	DeviceType  *string `json:"device_type,omitempty"`
	Browser     *string `json:"browser,omitempty"`
	OS          *string `json:"os,omitempty"`
	CurrentPath *string `json:"current_path,omitempty"`

	// Attribution. FirstTouch* are write-once; LastTouch* track the most
	// recent resolved source.
	FirstTouchSource *string    `json:"first_touch_source,omitempty"`
	FirstTouchAt     *time.Time `json:"first_touch_at,omitempty"`
	LastTouchSource  *string    `json:"last_touch_source,omitempty"`
	LastTouchAt      *time.Time `json:"last_touch_at,omitempty"`
	UTMSource        *string    `json:"utm_source,omitempty"`
	UTMMedium        *string    `json:"utm_medium,omitempty"`
	UTMCampaign      *string    `json:"utm_campaign,omitempty"`
	Referrer         *string    `json:"referrer,omitempty"`

	// Live cart state
	CartValue                   float64    `json:"cart_value"`
	CartItems                   []CartItem `json:"cart_items"`
	Currency                    *string    `json:"currency,omitempty"`
	AbandonedNotificationSentAt *time.Time `json:"abandoned_notification_sent_at,omitempty"`

	TotalVisits  int       `json:"total_visits"`
	LastActiveAt time.Time `json:"last_active_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SessionPatch is the set of session fields a single beacon actually
// changes. Nil pointer means "leave the stored value alone"; the upsert
// never nulls out a populated column with an absent field.
type SessionPatch struct {
	Email         *string
	WooCustomerID *int64

	IPAddress   *string
	UserAgent   *string
	Country     *string
	City        *string
	DeviceType  *string
	Browser     *string
	OS          *string
	CurrentPath *string

	FirstTouchSource *string
	FirstTouchAt     *time.Time
	LastTouchSource  *string
	LastTouchAt      *time.Time
	UTMSource        *string
	UTMMedium        *string
	UTMCampaign      *string
	Referrer         *string

	CartValue *float64
	CartItems []CartItem // non-nil replaces the stored list wholesale
	Currency  *string

	ClearAbandonedClaim bool
	IncrementVisits     bool
	LastActiveAt        time.Time
}
