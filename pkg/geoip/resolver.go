// Package geoip resolves IP addresses to coarse locations using a local
// MaxMind database.
package geoip

import (
	"context"
	"fmt"
	"net"
	"time"

	json "github.com/goccy/go-json"
	"github.com/oschwald/geoip2-golang"
	"github.com/sony/gobreaker/v2"

	"github.com/merchpulse/merchpulse/pkg/cache"
	"github.com/merchpulse/merchpulse/pkg/domain"
	"github.com/merchpulse/merchpulse/pkg/logger"
)

// Resolver implements domain.GeoResolver over a MaxMind city database. A
// circuit breaker keeps a corrupt or missing database from slowing down
// ingestion; results are cached per IP.
type Resolver struct {
	reader  *geoip2.Reader
	breaker *gobreaker.CircuitBreaker[*domain.GeoLocation]
	cache   *cache.Namespace
	log     logger.Logger
}

// New opens the MaxMind database at path. The cache namespace may be nil.
func New(path string, cacheNS *cache.Namespace, log logger.Logger) (*Resolver, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening geoip database: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker[*domain.GeoLocation](gobreaker.Settings{
		Name:    "geoip",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Resolver{
		reader:  reader,
		breaker: breaker,
		cache:   cacheNS,
		log:     log,
	}, nil
}

// Close releases the database handle.
func (r *Resolver) Close() error {
	return r.reader.Close()
}

// Lookup resolves an IP to a location. Unknown or unparseable addresses
// return (nil, nil); enrichment treats that as "no geo".
func (r *Resolver) Lookup(ctx context.Context, ip string) (*domain.GeoLocation, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.IsLoopback() || parsed.IsPrivate() {
		return nil, nil
	}

	if r.cache != nil {
		if cached, err := r.cache.Get(ctx, ip); err == nil {
			var loc domain.GeoLocation
			if err := json.Unmarshal([]byte(cached), &loc); err == nil {
				if loc.Country == "" {
					return nil, nil
				}
				return &loc, nil
			}
		}
	}

	loc, err := r.breaker.Execute(func() (*domain.GeoLocation, error) {
		record, err := r.reader.City(parsed)
		if err != nil {
			return nil, err
		}
		if record.Country.IsoCode == "" {
			return nil, nil
		}

		loc := &domain.GeoLocation{
			Country: record.Country.IsoCode,
			City:    record.City.Names["en"],
		}
		if len(record.Subdivisions) > 0 {
			loc.Region = record.Subdivisions[0].Names["en"]
		}
		return loc, nil
	})
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		cached := domain.GeoLocation{}
		if loc != nil {
			cached = *loc
		}
		if encoded, err := json.Marshal(cached); err == nil {
			if err := r.cache.Set(ctx, ip, string(encoded)); err != nil {
				r.log.Debug("geo cache write failed", "error", err)
			}
		}
	}

	return loc, nil
}

// Noop is a resolver that never locates anything, used when no MaxMind
// database is configured.
type Noop struct{}

// Lookup always returns no location.
func (Noop) Lookup(ctx context.Context, ip string) (*domain.GeoLocation, error) {
	return nil, nil
}
