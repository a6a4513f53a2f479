package tracking

import (
	"net/url"
	"strings"
	"time"

	"github.com/merchpulse/merchpulse/pkg/models"
)

// Marketing source categories resolved per event.
const (
	SourcePaid     = "paid"
	SourceOrganic  = "organic"
	SourceSocial   = "social"
	SourceEmail    = "email"
	SourceAI       = "ai"
	SourceCampaign = "campaign"
	SourceReferral = "referral"
	SourceDirect   = "direct"
)

var searchEngines = []string{
	"google", "bing", "yahoo", "duckduckgo", "baidu", "yandex", "ecosia",
	"qwant", "startpage", "brave",
}

var socialPlatforms = []string{
	"facebook", "instagram", "twitter", "tiktok", "pinterest", "linkedin",
	"youtube", "reddit", "snapchat", "threads", "whatsapp", "telegram",
}

// socialAliases are short source tags snippets commonly emit; matched
// exactly, never as substrings.
var socialAliases = map[string]bool{"fb": true, "ig": true, "x": true, "t.co": true}

var emailPlatforms = []string{
	"mailchimp", "klaviyo", "brevo", "sendinblue", "activecampaign",
	"hubspot", "constantcontact", "convertkit", "omnisend", "drip",
	"mailerlite", "newsletter", "email",
}

var aiAssistants = []string{
	"chatgpt", "openai", "perplexity", "gemini", "bard", "copilot",
	"claude", "anthropic", "phind", "you.com",
}

// paidMediums are utm_medium values that mark search-engine traffic as paid.
var paidMediums = map[string]bool{"cpc": true, "ppc": true}

// Attribution is the resolver's output for one beacon: the current touch's
// source plus the attribution fields to persist.
type Attribution struct {
	Source      string
	UTMSource   *string
	UTMMedium   *string
	UTMCampaign *string
	Referrer    *string
}

// ResolveAttribution decides the marketing source of the current touch.
// Priority, first match wins: click ID, explicit UTM source, landing
// referrer, current referrer, direct. Same-site navigation and empty
// referrers never reset an established lastTouchSource to direct.
func ResolveAttribution(beacon *models.Beacon, existing *models.Session) Attribution {
	attr := Attribution{}

	if beacon.UTMSource != "" {
		attr.UTMSource = strptr(beacon.UTMSource)
	}
	if beacon.UTMMedium != "" {
		attr.UTMMedium = strptr(beacon.UTMMedium)
	}
	if beacon.UTMCampaign != "" {
		attr.UTMCampaign = strptr(beacon.UTMCampaign)
	}

	// 1. Ad-platform click ID proves a paid click.
	if beacon.ClickID != "" && beacon.ClickPlatform != "" {
		attr.Source = SourcePaid
		attr.UTMSource = strptr(beacon.ClickPlatform)
		attr.UTMMedium = strptr("cpc")
		return attr
	}

	// 2. Explicit UTM tagging.
	if beacon.UTMSource != "" {
		attr.Source = classifyUTMSource(beacon.UTMSource, beacon.UTMMedium)
		return attr
	}

	// 3. Landing referrer: the external referrer captured at session
	// start. It is only stored when the session has no referrer yet, but
	// still drives the current touch.
	if beacon.LandingReferrer != "" {
		attr.Source = classifyReferrerDomain(beacon.LandingReferrer)
		if existing == nil || existing.Referrer == nil {
			attr.Referrer = strptr(beacon.LandingReferrer)
		}
		return attr
	}

	if beacon.Referrer != "" {
		attr.Referrer = strptr(beacon.Referrer)
	}

	// 4. Current referrer, pre-classified by the snippet when possible.
	if beacon.ReferrerType != "" {
		if beacon.ReferrerType == models.ReferrerInternal {
			// Same-site navigation keeps whatever source got the
			// visitor here.
			attr.Source = carryLastTouch(existing)
		} else {
			attr.Source = beacon.ReferrerType
		}
		return attr
	}

	if beacon.Referrer != "" {
		source := classifyReferrerDomain(beacon.Referrer)
		if source == SourceDirect {
			source = carryLastTouch(existing)
		}
		attr.Source = source
		return attr
	}

	// 5. No referrer at all. An established source survives; a truly new
	// visitor is direct.
	attr.Source = carryLastTouch(existing)
	return attr
}

// carryLastTouch reuses the session's existing lastTouchSource instead of
// resetting attribution to direct on internal or referrer-less navigation.
func carryLastTouch(existing *models.Session) string {
	if existing != nil && existing.LastTouchSource != nil && *existing.LastTouchSource != "" {
		return *existing.LastTouchSource
	}
	return SourceDirect
}

func classifyUTMSource(source, medium string) string {
	lower := strings.ToLower(source)

	switch {
	case matchesAny(lower, searchEngines):
		if paidMediums[strings.ToLower(medium)] {
			return SourcePaid
		}
		return SourceOrganic
	case matchesAny(lower, socialPlatforms) || socialAliases[lower]:
		return SourceSocial
	case matchesAny(lower, emailPlatforms):
		return SourceEmail
	case matchesAny(lower, aiAssistants):
		return SourceAI
	default:
		return SourceCampaign
	}
}

// classifyReferrerDomain maps a referrer URL to organic, social, ai,
// referral or direct by domain heuristics.
func classifyReferrerDomain(referrer string) string {
	host := referrerHost(referrer)
	if host == "" {
		return SourceDirect
	}

	switch {
	case matchesAny(host, searchEngines):
		return SourceOrganic
	case matchesAny(host, socialPlatforms) || socialAliases[host]:
		return SourceSocial
	case matchesAny(host, aiAssistants):
		return SourceAI
	default:
		return SourceReferral
	}
}

func referrerHost(referrer string) string {
	parsed, err := url.Parse(referrer)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	return strings.TrimPrefix(host, "www.")
}

func matchesAny(s string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}

func strptr(s string) *string {
	return &s
}

func timeptr(t time.Time) *time.Time {
	return &t
}
