package models

import (
	"time"

	"github.com/google/uuid"
)

// Automation trigger types the tracking engine cares about.
const (
	TriggerAbandonedCart = "abandoned_cart"
)

// AutomationEnrollment statuses at creation time. The automation subsystem
// owns the lifecycle after that.
const (
	EnrollmentStatusPending = "pending"
)

// Automation is a tenant-configured workflow. The engine only reads active
// abandoned-cart automations; everything else about automations lives in
// the automation subsystem.
type Automation struct {
	ID        int64                  `json:"id"`
	AccountID int64                  `json:"account_id"`
	Name      string                 `json:"name"`
	Trigger   string                 `json:"trigger"`
	Active    bool                   `json:"active"`
	Config    map[string]interface{} `json:"config,omitempty"`
}

// ThresholdMinutes returns the configured inactivity threshold before a
// cart counts as abandoned, or defaultMinutes when the automation does not
// set one.
func (a *Automation) ThresholdMinutes(defaultMinutes int) int {
	if v, ok := a.Config["threshold_minutes"].(float64); ok && v > 0 {
		return int(v)
	}
	return defaultMinutes
}

// MinCartValue returns the configured minimum cart value, or 0 when unset.
func (a *Automation) MinCartValue() float64 {
	if v, ok := a.Config["min_cart_value"].(float64); ok && v > 0 {
		return v
	}
	return 0
}

// AutomationEnrollment commits one abandoned cart to a recovery automation.
// Created at most once per qualifying abandonment; consumed by the
// automation subsystem.
type AutomationEnrollment struct {
	ID            uuid.UUID              `json:"id"`
	AutomationID  int64                  `json:"automation_id"`
	AccountID     int64                  `json:"account_id"`
	SessionID     uuid.UUID              `json:"session_id"`
	Email         string                 `json:"email"`
	WooCustomerID *int64                 `json:"woo_customer_id,omitempty"`
	Status        string                 `json:"status"`
	ContextData   map[string]interface{} `json:"context_data,omitempty"`
	NextRunAt     time.Time              `json:"next_run_at"`
	CreatedAt     time.Time              `json:"created_at"`
}

// ScanSummary is the Abandoned-Cart Scanner's aggregate result for one run.
type ScanSummary struct {
	AccountsProcessed  int `json:"accounts_processed"`
	CartsFound         int `json:"carts_found"`
	EnrollmentsCreated int `json:"enrollments_created"`
	Failures           int `json:"failures"`
}
