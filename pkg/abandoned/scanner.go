// Package abandoned finds stale, identified, non-empty carts and enrolls
// them into recovery automations, at most once per abandonment.
package abandoned

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/merchpulse/merchpulse/pkg/domain"
	"github.com/merchpulse/merchpulse/pkg/logger"
	"github.com/merchpulse/merchpulse/pkg/models"
)

// Scanner is the periodic batch job. It runs independently of beacon
// ingestion and may overlap with itself across instances; the conditional
// claim on the session row keeps enrollments unique.
type Scanner struct {
	automations      domain.AutomationRepository
	sessions         domain.SessionRepository
	enrollments      domain.EnrollmentRepository
	batchLimit       int
	defaultThreshold int
	log              logger.Logger
}

// NewScanner creates a scanner. batchLimit caps sessions per automation
// per run; defaultThresholdMinutes applies to automations that do not
// configure their own threshold.
func NewScanner(
	automations domain.AutomationRepository,
	sessions domain.SessionRepository,
	enrollments domain.EnrollmentRepository,
	batchLimit int,
	defaultThresholdMinutes int,
	log logger.Logger,
) *Scanner {
	if batchLimit <= 0 {
		batchLimit = 500
	}
	if defaultThresholdMinutes <= 0 {
		defaultThresholdMinutes = 30
	}
	return &Scanner{
		automations:      automations,
		sessions:         sessions,
		enrollments:      enrollments,
		batchLimit:       batchLimit,
		defaultThreshold: defaultThresholdMinutes,
		log:              log,
	}
}

// Run executes one scan across all tenants with an active abandoned-cart
// automation. Per-session enrollment failures are logged and skipped; only
// a systemic failure (listing automations) aborts the batch.
func (s *Scanner) Run(ctx context.Context) (*models.ScanSummary, error) {
	automations, err := s.automations.ListActiveByTrigger(ctx, models.TriggerAbandonedCart)
	if err != nil {
		return nil, fmt.Errorf("listing abandoned-cart automations: %w", err)
	}

	summary := &models.ScanSummary{}
	seenAccounts := map[int64]bool{}
	now := time.Now().UTC()

	for _, automation := range automations {
		if !seenAccounts[automation.AccountID] {
			seenAccounts[automation.AccountID] = true
			summary.AccountsProcessed++
		}

		cutoff := now.Add(-time.Duration(automation.ThresholdMinutes(s.defaultThreshold)) * time.Minute)

		sessions, err := s.sessions.FindAbandoned(ctx, automation.AccountID, cutoff, automation.MinCartValue(), s.batchLimit)
		if err != nil {
			s.log.Error("abandoned cart query failed",
				"account_id", automation.AccountID,
				"automation_id", automation.ID,
				"error", err)
			summary.Failures++
			continue
		}

		summary.CartsFound += len(sessions)

		for _, session := range sessions {
			created, err := s.enroll(ctx, automation, session, now)
			if err != nil {
				s.log.Error("enrollment failed",
					"account_id", automation.AccountID,
					"automation_id", automation.ID,
					"session_id", session.ID,
					"error", err)
				summary.Failures++
				continue
			}
			if created {
				summary.EnrollmentsCreated++
			}
		}
	}

	s.log.Info("abandoned cart scan complete",
		"accounts", summary.AccountsProcessed,
		"carts", summary.CartsFound,
		"enrollments", summary.EnrollmentsCreated,
		"failures", summary.Failures)

	return summary, nil
}

// enroll claims the session then creates the enrollment. The claim is the
// idempotency guard: it only succeeds while the flag is null, so a
// concurrent or repeated scan skips the session instead of enrolling it
// twice. Cart-mutating events release the claim (re-engagement resets the
// abandonment clock).
func (s *Scanner) enroll(ctx context.Context, automation *models.Automation, session *models.Session, now time.Time) (bool, error) {
	claimed, err := s.sessions.ClaimAbandonment(ctx, session.ID, now)
	if err != nil {
		return false, fmt.Errorf("claiming session: %w", err)
	}
	if !claimed {
		// Another run got here first.
		return false, nil
	}

	enrollment := &models.AutomationEnrollment{
		ID:            uuid.New(),
		AutomationID:  automation.ID,
		AccountID:     session.AccountID,
		SessionID:     session.ID,
		Email:         deref(session.Email),
		WooCustomerID: session.WooCustomerID,
		Status:        models.EnrollmentStatusPending,
		ContextData:   cartSnapshot(session),
		NextRunAt:     now,
		CreatedAt:     now,
	}

	if err := s.enrollments.Insert(ctx, enrollment); err != nil {
		return false, fmt.Errorf("inserting enrollment: %w", err)
	}
	return true, nil
}

// cartSnapshot freezes the cart the shopper walked away from. The
// automation subsystem renders recovery emails from this, not from the
// live session.
func cartSnapshot(session *models.Session) map[string]interface{} {
	items := make([]interface{}, 0, len(session.CartItems))
	for _, item := range session.CartItems {
		entry := map[string]interface{}{
			"product_id": item.ProductID,
			"name":       item.Name,
			"quantity":   item.Quantity,
			"price":      item.Price,
			"total":      item.Total,
		}
		if item.VariationID != nil {
			entry["variation_id"] = *item.VariationID
		}
		if item.SKU != nil {
			entry["sku"] = *item.SKU
		}
		items = append(items, entry)
	}

	snapshot := map[string]interface{}{
		"cart_value": session.CartValue,
		"cart_items": items,
	}
	if session.Currency != nil {
		snapshot["currency"] = *session.Currency
	}
	return snapshot
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
