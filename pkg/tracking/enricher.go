package tracking

import (
	"context"

	"github.com/merchpulse/merchpulse/pkg/domain"
	"github.com/merchpulse/merchpulse/pkg/ipaddr"
	"github.com/merchpulse/merchpulse/pkg/logger"
	"github.com/merchpulse/merchpulse/pkg/models"
)

// Enrichment is the derived context for one beacon. Geo is nil when the
// address could not be located. MaskedIP is the only form of the address
// that ever reaches the store.
type Enrichment struct {
	MaskedIP string
	Geo      *domain.GeoLocation
	UA       domain.UAProfile
}

// Enricher derives geo and device context from a beacon. Failures degrade
// to empty fields; enrichment never blocks ingestion.
type Enricher struct {
	geo        domain.GeoResolver
	classifier domain.UAClassifier
	log        logger.Logger
}

// NewEnricher creates a new enricher.
func NewEnricher(geo domain.GeoResolver, classifier domain.UAClassifier, log logger.Logger) *Enricher {
	return &Enricher{
		geo:        geo,
		classifier: classifier,
		log:        log,
	}
}

// Enrich resolves the beacon's IP and user-agent.
func (e *Enricher) Enrich(ctx context.Context, beacon *models.Beacon) Enrichment {
	enriched := Enrichment{}

	if beacon.IPAddress != "" {
		enriched.MaskedIP = ipaddr.Mask(beacon.IPAddress)

		loc, err := e.geo.Lookup(ctx, beacon.IPAddress)
		if err != nil {
			e.log.Debug("geo lookup failed", "error", err)
		} else {
			enriched.Geo = loc
		}
	}

	if beacon.UserAgent != "" {
		enriched.UA = e.classifier.Parse(beacon.UserAgent)
	}

	return enriched
}
