package cache

import (
	"context"
	"errors"
	"time"

	"github.com/merchpulse/merchpulse/pkg/domain"
	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Namespace.Get when the key is absent.
var ErrMiss = errors.New("cache: miss")

// Namespace is a TTL cache scoped to a key prefix, with the TTL injected at
// construction. Services own a Namespace instead of reaching for a shared
// client with ad-hoc keys and expirations.
type Namespace struct {
	cache  domain.CacheRepository
	prefix string
	ttl    time.Duration
}

// NewNamespace creates a namespaced TTL cache over the given backend.
func NewNamespace(cache domain.CacheRepository, prefix string, ttl time.Duration) *Namespace {
	return &Namespace{
		cache:  cache,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (n *Namespace) key(k string) string {
	return n.prefix + ":" + k
}

// Get returns the cached value or ErrMiss.
func (n *Namespace) Get(ctx context.Context, key string) (string, error) {
	val, err := n.cache.Get(ctx, n.key(key))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrMiss
		}
		return "", err
	}
	return val, nil
}

// Set stores the value under the namespace's TTL.
func (n *Namespace) Set(ctx context.Context, key string, value interface{}) error {
	return n.cache.Set(ctx, n.key(key), value, n.ttl)
}

// Invalidate removes a key.
func (n *Namespace) Invalidate(ctx context.Context, key string) error {
	return n.cache.Delete(ctx, n.key(key))
}
