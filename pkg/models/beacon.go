package models

import "time"

// Referrer classifications the storefront snippet may pre-compute.
const (
	ReferrerDirect   = "direct"
	ReferrerOrganic  = "organic"
	ReferrerSocial   = "social"
	ReferrerReferral = "referral"
	ReferrerInternal = "internal"
)

// Beacon is one inbound tracking payload from a storefront. SiteKey
// identifies the tenant; VisitorID is the opaque client-generated visitor
// identifier scoped to that tenant.
type Beacon struct {
	SiteKey   string `json:"site_key" validate:"required"`
	VisitorID string `json:"visitor_id" validate:"required,max=64"`
	Type      string `json:"type" validate:"required,max=32"`

	URL       string                 `json:"url,omitempty"`
	PageTitle string                 `json:"page_title,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`

	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`

	Referrer        string `json:"referrer,omitempty"`
	ReferrerType    string `json:"referrer_type,omitempty" validate:"omitempty,oneof=direct organic social referral internal"`
	LandingReferrer string `json:"landing_referrer,omitempty"`
	UTMSource       string `json:"utm_source,omitempty"`
	UTMMedium       string `json:"utm_medium,omitempty"`
	UTMCampaign     string `json:"utm_campaign,omitempty"`
	ClickID         string `json:"click_id,omitempty"`
	ClickPlatform   string `json:"click_platform,omitempty"`

	Is404      bool   `json:"is_404,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`
	Email      string `json:"email,omitempty" validate:"omitempty,email"`
}

// Account is the slice of the tenant record the tracking engine needs.
type Account struct {
	ID        int64     `json:"id"`
	SiteKey   string    `json:"site_key"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrorResponse is the sanitized error body returned by API handlers.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
