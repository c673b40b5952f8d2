// Package cache memoizes remote digest lookups per image reference for a fixed time to live.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a looked up digest, including an absent one, stays fresh.
const DefaultTTL = time.Hour

// Resolver looks up the remote digest of an image reference, returning an empty string when
// it cannot be determined.
type Resolver interface {
	Resolve(ctx context.Context, ref string) string
}

// Recorder receives cache hit and miss events.
type Recorder interface {
	RegisterCacheLookup(hit bool)
}

type entry struct {
	digest    string
	fetchedAt time.Time
}

// Cache is a time-bounded map from raw image reference to remote digest.
//
// It is safe for concurrent use. Concurrent misses for the same reference share one
// registry lookup.
type Cache struct {
	resolver Resolver
	ttl      time.Duration
	now      func() time.Time
	recorder Recorder

	mu      sync.Mutex
	entries map[string]entry
	group   singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets the freshness window of an entry.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithClock replaces the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithRecorder reports every lookup as a hit or a miss.
func WithRecorder(recorder Recorder) Option {
	return func(c *Cache) {
		c.recorder = recorder
	}
}

// New creates an empty cache in front of resolver.
func New(resolver Resolver, opts ...Option) *Cache {
	c := &Cache{
		resolver: resolver,
		ttl:      DefaultTTL,
		now:      time.Now,
		entries:  make(map[string]entry),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get returns the remote digest for ref, or an empty string when the registry lookup failed.
//
// A fresh entry is returned without contacting the registry unless force is set. A failed
// lookup is cached like a successful one, so an unreachable registry is not retried until
// the entry expires.
func (c *Cache) Get(ctx context.Context, ref string, force bool) string {
	if !force {
		if digest, ok := c.lookup(ref); ok {
			c.record(true)

			return digest
		}
	}

	c.record(false)

	value, _, _ := c.group.Do(ref, func() (any, error) {
		digest := c.resolver.Resolve(ctx, ref)

		c.mu.Lock()
		c.entries[ref] = entry{digest: digest, fetchedAt: c.now()}
		c.mu.Unlock()

		logrus.WithFields(logrus.Fields{
			"image":  ref,
			"digest": digest,
			"forced": force,
		}).Debug("Cached remote digest")

		return digest, nil
	})

	digest, _ := value.(string)

	return digest
}

// Invalidate drops the entry for ref.
func (c *Cache) Invalidate(ref string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, ref)
}

// Len returns the number of entries, fresh or expired.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

func (c *Cache) lookup(ref string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached, ok := c.entries[ref]
	if !ok || c.now().Sub(cached.fetchedAt) >= c.ttl {
		return "", false
	}

	return cached.digest, true
}

func (c *Cache) record(hit bool) {
	if c.recorder != nil {
		c.recorder.RegisterCacheLookup(hit)
	}
}
