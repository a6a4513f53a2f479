// Package useragent classifies user-agent strings into the device, browser
// and OS labels stored on sessions and visits.
package useragent

import (
	"strings"

	ua "github.com/mileusna/useragent"
	"github.com/merchpulse/merchpulse/pkg/domain"
)

// Device types stored on sessions and visits.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
)

// extraBotMarkers catches crawlers the parser's bot table misses. Matched
// case-insensitively as substrings.
var extraBotMarkers = []string{
	"bot", "crawler", "spider", "crawling", "scraper", "slurp",
	"headlesschrome", "phantomjs", "lighthouse", "pingdom", "uptimerobot",
	"facebookexternalhit", "wget", "curl/", "python-requests", "go-http-client",
}

// Classifier implements domain.UAClassifier with mileusna/useragent.
type Classifier struct{}

// New creates a new classifier.
func New() *Classifier {
	return &Classifier{}
}

// Parse classifies a user-agent string. Ambiguous signals default to
// desktop.
func (c *Classifier) Parse(userAgent string) domain.UAProfile {
	parsed := ua.Parse(userAgent)

	profile := domain.UAProfile{
		DeviceType: DeviceDesktop,
		Browser:    parsed.Name,
		OS:         parsed.OS,
		Bot:        parsed.Bot || matchesBotMarker(userAgent),
	}

	switch {
	case parsed.Tablet:
		profile.DeviceType = DeviceTablet
	case parsed.Mobile:
		profile.DeviceType = DeviceMobile
	}

	return profile
}

func matchesBotMarker(userAgent string) bool {
	lower := strings.ToLower(userAgent)
	for _, marker := range extraBotMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
