// Package tracking implements the beacon ingestion pipeline: filtering,
// enrichment, attribution, session upkeep, visit segmentation and event
// logging.
package tracking

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/merchpulse/merchpulse/pkg/domain"
	"github.com/merchpulse/merchpulse/pkg/exclusion"
	"github.com/merchpulse/merchpulse/pkg/models"
)

// Drop reasons reported by the filter, used as metric labels.
const (
	DropReasonBot         = "bot"
	DropReasonExcludedIP  = "excluded_ip"
	DropReasonStaticAsset = "static_asset"
)

// staticAssetExts are URL path suffixes whose pageviews are tracker noise
// (prefetches, misconfigured snippets), never shopper navigation.
var staticAssetExts = map[string]bool{
	".js": true, ".mjs": true, ".css": true, ".map": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
	".svg": true, ".ico": true, ".avif": true, ".bmp": true,
	".woff": true, ".woff2": true, ".ttf": true, ".otf": true, ".eot": true,
	".mp4": true, ".webm": true, ".mp3": true, ".wav": true, ".ogg": true,
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".zip": true, ".gz": true, ".rar": true,
	".json": true, ".xml": true, ".txt": true, ".csv": true,
}

// Filter rejects bot and excluded traffic before any state is touched.
type Filter struct {
	classifier domain.UAClassifier
	exclusions *exclusion.Service
}

// NewFilter creates a new filter.
func NewFilter(classifier domain.UAClassifier, exclusions *exclusion.Service) *Filter {
	return &Filter{
		classifier: classifier,
		exclusions: exclusions,
	}
}

// Check returns a non-empty drop reason when the beacon must be silently
// discarded. Rules run in order: bot signature, account IP exclusion,
// static-asset pageview.
func (f *Filter) Check(ctx context.Context, accountID int64, beacon *models.Beacon) string {
	if beacon.UserAgent != "" && f.classifier.Parse(beacon.UserAgent).Bot {
		return DropReasonBot
	}

	if beacon.IPAddress != "" && f.exclusions.IsExcluded(ctx, accountID, beacon.IPAddress) {
		return DropReasonExcludedIP
	}

	if beacon.Type == models.EventPageview && isStaticAssetURL(beacon.URL) {
		return DropReasonStaticAsset
	}

	return ""
}

// isStaticAssetURL reports whether the URL path (query string ignored)
// ends in a known static-asset extension.
func isStaticAssetURL(rawURL string) bool {
	if rawURL == "" {
		return false
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	ext := strings.ToLower(path.Ext(parsed.Path))
	return staticAssetExts[ext]
}
