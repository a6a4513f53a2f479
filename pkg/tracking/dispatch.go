package tracking

import (
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/merchpulse/merchpulse/pkg/models"
)

// patchFunc applies one event type's session side effects. Functions are
// pure: they read the beacon and the session's prior state and mutate only
// the patch.
type patchFunc func(beacon *models.Beacon, existing *models.Session, patch *models.SessionPatch)

// sessionEffects is the per-event-type side-effect matrix.
var sessionEffects = map[string]patchFunc{
	models.EventAddToCart:      applyCartUpdate,
	models.EventRemoveFromCart: applyCartUpdate,
	models.EventUpdateCart:     applyCartUpdate,
	models.EventCheckoutStart:  applyCheckoutStart,
	models.EventCheckoutDone:   applyOrderComplete,
	models.EventPurchase:       applyOrderComplete,
	models.EventIdentify:       applyIdentify,
}

// cartAmountKeys are the payload aliases accepted for the cart total.
var cartAmountKeys = []string{"total", "cart_total", "cart_value", "value", "amount"}

// BuildSessionPatch folds the beacon, its enrichment and the resolved
// attribution into the single patch the session upsert applies.
func BuildSessionPatch(beacon *models.Beacon, existing *models.Session, enriched Enrichment, attr Attribution, now time.Time) *models.SessionPatch {
	patch := &models.SessionPatch{
		LastActiveAt:    now,
		IncrementVisits: models.IsPageView(beacon.Type),
	}

	// Context
	if enriched.MaskedIP != "" {
		patch.IPAddress = strptr(enriched.MaskedIP)
	}
	if beacon.UserAgent != "" {
		patch.UserAgent = strptr(beacon.UserAgent)
		if enriched.UA.DeviceType != "" {
			patch.DeviceType = strptr(enriched.UA.DeviceType)
		}
		if enriched.UA.Browser != "" {
			patch.Browser = strptr(enriched.UA.Browser)
		}
		if enriched.UA.OS != "" {
			patch.OS = strptr(enriched.UA.OS)
		}
	}
	if enriched.Geo != nil {
		if enriched.Geo.Country != "" {
			patch.Country = strptr(enriched.Geo.Country)
		}
		if enriched.Geo.City != "" {
			patch.City = strptr(enriched.Geo.City)
		}
	}
	if p := urlPath(beacon.URL); p != "" {
		patch.CurrentPath = strptr(p)
	}

	// Attribution: last touch always, first touch write-once.
	patch.LastTouchSource = strptr(attr.Source)
	patch.LastTouchAt = timeptr(now)
	if existing == nil || existing.FirstTouchSource == nil {
		patch.FirstTouchSource = strptr(attr.Source)
		patch.FirstTouchAt = timeptr(now)
	}
	patch.UTMSource = attr.UTMSource
	patch.UTMMedium = attr.UTMMedium
	patch.UTMCampaign = attr.UTMCampaign
	patch.Referrer = attr.Referrer

	if apply, ok := sessionEffects[beacon.Type]; ok {
		apply(beacon, existing, patch)
	}

	return patch
}

// applyCartUpdate handles add_to_cart, remove_from_cart and update_cart.
// The item list is replaced only when the payload carries a full list; a
// value-only update keeps the stored items. Any cart mutation resets the
// abandonment clock.
func applyCartUpdate(beacon *models.Beacon, _ *models.Session, patch *models.SessionPatch) {
	if total, ok := payloadAmount(beacon.Payload); ok {
		patch.CartValue = &total
	}
	if currency, ok := beacon.Payload["currency"].(string); ok && currency != "" {
		patch.Currency = strptr(currency)
	}
	if items, ok := payloadItems(beacon.Payload); ok {
		patch.CartItems = items
	}
	patch.ClearAbandonedClaim = true
}

// applyCheckoutStart binds the shopper's email when it is supplied and the
// session does not have one yet.
func applyCheckoutStart(beacon *models.Beacon, existing *models.Session, patch *models.SessionPatch) {
	if existing != nil && existing.Email != nil {
		return
	}
	if email := beaconEmail(beacon); email != "" {
		patch.Email = strptr(email)
	}
}

// applyOrderComplete handles checkout_success and purchase: the cart is
// emptied and the abandonment claim released regardless of prior state.
func applyOrderComplete(beacon *models.Beacon, _ *models.Session, patch *models.SessionPatch) {
	zero := 0.0
	patch.CartValue = &zero
	patch.CartItems = []models.CartItem{}
	patch.ClearAbandonedClaim = true

	if email := beaconEmail(beacon); email != "" {
		patch.Email = strptr(email)
	}
}

// applyIdentify stitches the anonymous session to a known customer.
func applyIdentify(beacon *models.Beacon, _ *models.Session, patch *models.SessionPatch) {
	if id, ok := payloadCustomerID(beacon); ok {
		patch.WooCustomerID = &id
	}
	if email := beaconEmail(beacon); email != "" {
		patch.Email = strptr(email)
	}
}

func beaconEmail(beacon *models.Beacon) string {
	if beacon.Email != "" {
		return beacon.Email
	}
	if email, ok := beacon.Payload["email"].(string); ok {
		return email
	}
	return ""
}

func payloadCustomerID(beacon *models.Beacon) (int64, bool) {
	candidates := []interface{}{
		beacon.Payload["customer_id"],
		beacon.Payload["customerId"],
	}
	if beacon.CustomerID != "" {
		candidates = append(candidates, beacon.CustomerID)
	}

	for _, candidate := range candidates {
		switch v := candidate.(type) {
		case float64:
			return int64(v), true
		case string:
			if id, err := strconv.ParseInt(v, 10, 64); err == nil {
				return id, true
			}
		case json.Number:
			if id, err := v.Int64(); err == nil {
				return id, true
			}
		}
	}
	return 0, false
}

func payloadAmount(payload map[string]interface{}) (float64, bool) {
	for _, key := range cartAmountKeys {
		switch v := payload[key].(type) {
		case float64:
			return v, true
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f, true
			}
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// payloadItems parses payload.items into cart items. Returns ok=false when
// the key is absent or malformed, which keeps the stored list untouched.
func payloadItems(payload map[string]interface{}) ([]models.CartItem, bool) {
	raw, present := payload["items"]
	if !present {
		return nil, false
	}

	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, false
	}

	var items []models.CartItem
	if err := json.Unmarshal(encoded, &items); err != nil {
		return nil, false
	}
	if items == nil {
		items = []models.CartItem{}
	}
	return items, true
}

func urlPath(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Path
}
