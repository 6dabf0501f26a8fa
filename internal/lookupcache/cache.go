// Package lookupcache memoizes domain resolutions for the proxy. Entries
// expire lazily: a stale entry is only replaced when the next lookup for its
// domain resolves afresh.
package lookupcache

import (
	"context"
	"log/slog"
	"time"

	"antns/internal/naming"
	"antns/internal/platform/metrics"
)

// Entry is a cached resolution.
type Entry struct {
	Target    string    `json:"target"`
	Timestamp time.Time `json:"timestamp"`
}

// Store holds entries by domain. Implementations must be safe for
// concurrent use.
type Store interface {
	Get(ctx context.Context, domain string) (Entry, bool, error)
	Put(ctx context.Context, domain string, entry Entry) error
}

// Resolver is the fresh-resolution path.
type Resolver interface {
	Lookup(ctx context.Context, domain string) (*naming.Resolution, error)
}

// Cache answers lookups from Store while the entry is younger than the TTL.
// Concurrent misses for one domain each resolve independently and the last
// writer wins; resolution is deterministic for a given history, so this is
// safe.
type Cache struct {
	resolver Resolver
	store    Store
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Cache)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithClock overrides the time source. Tests use it to move across the TTL.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New builds a cache. A ttl of zero disables caching.
func New(resolver Resolver, store Store, ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		resolver: resolver,
		store:    store,
		ttl:      ttl,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether lookups may be served from the store.
func (c *Cache) Enabled() bool {
	return c.ttl > 0
}

// Lookup returns the active target of domain.
func (c *Cache) Lookup(ctx context.Context, domain string) (string, error) {
	if !c.Enabled() {
		c.metrics.IncrementCacheLookup("disabled")
		return c.resolve(ctx, domain)
	}

	entry, ok, err := c.store.Get(ctx, domain)
	if err != nil {
		// A broken cache must not break resolution.
		c.logger.WarnContext(ctx, "lookup cache read failed", "domain", domain, "error", err)
	}
	if ok && c.now().Sub(entry.Timestamp) < c.ttl {
		c.metrics.IncrementCacheLookup("hit")
		c.logger.DebugContext(ctx, "lookup cache hit", "domain", domain, "target", entry.Target)
		return entry.Target, nil
	}

	c.metrics.IncrementCacheLookup("miss")
	target, err := c.resolve(ctx, domain)
	if err != nil {
		return "", err
	}
	if err := c.store.Put(ctx, domain, Entry{Target: target, Timestamp: c.now()}); err != nil {
		c.logger.WarnContext(ctx, "lookup cache write failed", "domain", domain, "error", err)
	}
	return target, nil
}

func (c *Cache) resolve(ctx context.Context, domain string) (string, error) {
	res, err := c.resolver.Lookup(ctx, domain)
	if err != nil {
		return "", err
	}
	return res.Target, nil
}
