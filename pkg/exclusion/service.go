// Package exclusion decides whether a beacon's IP belongs to an account's
// excluded ranges (shop staff, office networks, known admin IPs).
package exclusion

import (
	"context"
	"net"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/merchpulse/merchpulse/pkg/cache"
	"github.com/merchpulse/merchpulse/pkg/domain"
	"github.com/merchpulse/merchpulse/pkg/ipaddr"
	"github.com/merchpulse/merchpulse/pkg/logger"
)

// Service checks IPs against per-account exclusion lists. Lists are cached
// with a short TTL so ingestion does not hit the store per beacon.
type Service struct {
	repo  domain.ExclusionRepository
	cache *cache.Namespace
	log   logger.Logger
}

// NewService creates a new exclusion service.
func NewService(repo domain.ExclusionRepository, cacheNS *cache.Namespace, log logger.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cacheNS,
		log:   log,
	}
}

// IsExcluded reports whether the IP matches the account's exclusion list,
// by exact address or CIDR containment. Lookup failures are absorbed: a
// beacon is never dropped because the exclusion list could not be loaded.
func (s *Service) IsExcluded(ctx context.Context, accountID int64, ip string) bool {
	if ip == "" {
		return false
	}

	parsed := ipaddr.Normalize(ip)
	if parsed == nil {
		return false
	}

	entries, err := s.load(ctx, accountID)
	if err != nil {
		s.log.Warn("exclusion list unavailable, allowing beacon",
			"account_id", accountID, "error", err)
		return false
	}

	for _, entry := range entries {
		if matches(parsed, entry) {
			return true
		}
	}
	return false
}

// Invalidate drops the cached list for an account, for use when the
// exclusion list is edited.
func (s *Service) Invalidate(ctx context.Context, accountID int64) error {
	return s.cache.Invalidate(ctx, cacheKey(accountID))
}

func (s *Service) load(ctx context.Context, accountID int64) ([]string, error) {
	key := cacheKey(accountID)

	if cached, err := s.cache.Get(ctx, key); err == nil {
		var entries []string
		if err := json.Unmarshal([]byte(cached), &entries); err == nil {
			return entries, nil
		}
	}

	entries, err := s.repo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []string{}
	}

	if encoded, err := json.Marshal(entries); err == nil {
		if err := s.cache.Set(ctx, key, string(encoded)); err != nil {
			s.log.Debug("exclusion cache write failed", "error", err)
		}
	}

	return entries, nil
}

func cacheKey(accountID int64) string {
	return "account:" + strconv.FormatInt(accountID, 10)
}

func matches(ip net.IP, entry string) bool {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return false
	}

	if strings.Contains(entry, "/") {
		_, network, err := net.ParseCIDR(entry)
		if err != nil {
			return false
		}
		return network.Contains(ip)
	}

	other := ipaddr.Normalize(entry)
	return other != nil && other.Equal(ip)
}
