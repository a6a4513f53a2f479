package models

import (
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the storefront snippet.
const (
	EventPageview       = "pageview"
	EventProductView    = "product_view"
	EventCartView       = "cart_view"
	EventCheckoutView   = "checkout_view"
	EventAddToCart      = "add_to_cart"
	EventRemoveFromCart = "remove_from_cart"
	EventUpdateCart     = "update_cart"
	EventCheckoutStart  = "checkout_start"
	EventCheckoutDone   = "checkout_success"
	EventPurchase       = "purchase"
	EventSearch         = "search"
	EventIdentify       = "identify"
	EventExperiment     = "experiment"
)

// pageViewEvents are the event types that count toward a session's
// total_visits and a visit's pageviews counter.
var pageViewEvents = map[string]bool{
	EventPageview:     true,
	EventProductView:  true,
	EventCartView:     true,
	EventCheckoutView: true,
}

// IsPageView reports whether an event type belongs to the page-view class.
func IsPageView(eventType string) bool {
	return pageViewEvents[eventType]
}

// Event is one immutable behavioral fact, linked to its session and the
// visit window it arrived in.
type Event struct {
	ID        uuid.UUID              `json:"id"`
	AccountID int64                  `json:"account_id"`
	SessionID uuid.UUID              `json:"session_id"`
	VisitID   uuid.UUID              `json:"visit_id"`
	Type      string                 `json:"type"`
	URL       *string                `json:"url,omitempty"`
	PageTitle *string                `json:"page_title,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}
