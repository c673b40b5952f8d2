package status

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nicholas-fedor/docker-monitor/internal/actions"
	"github.com/nicholas-fedor/docker-monitor/pkg/types"
)

// DefaultStatsTTL is how long a stats sample is reused for the same container.
const DefaultStatsTTL = 2 * time.Second

// Meta describes a container next to its update status.
//
// Stats are only present in full meta. Nil stats fields were not reported by the runtime.
type Meta struct {
	State *string `json:"state"`
	Image *string `json:"image"`
	*types.ContainerStats
}

// LightMeta returns the state and image reference of a container.
func LightMeta(c types.Container) Meta {
	var meta Meta

	if state := c.State(); state != "" {
		meta.State = &state
	}

	if image := actions.ImageReference(c); image != "" {
		meta.Image = &image
	}

	return meta
}

type statsEntry struct {
	sampledAt time.Time
	meta      Meta
}

// StatsCache samples container resource usage, reusing a sample per container name for a short
// time.
type StatsCache struct {
	client  types.Client
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
	entries map[string]statsEntry
}

// NewStatsCache creates a StatsCache. A non-positive ttl uses DefaultStatsTTL.
func NewStatsCache(client types.Client, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = DefaultStatsTTL
	}

	return &StatsCache{
		client:  client,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]statsEntry),
	}
}

// FullMeta returns the light meta of c enriched with a resource usage sample.
//
// Failed samples are not cached.
func (s *StatsCache) FullMeta(ctx context.Context, c types.Container) (Meta, error) {
	name := c.Name()
	now := s.now()

	s.mu.Lock()
	entry, found := s.entries[name]
	s.mu.Unlock()

	if found && now.Sub(entry.sampledAt) < s.ttl {
		return entry.meta, nil
	}

	meta := LightMeta(c)

	stats, err := s.client.ContainerStats(ctx, c.ID())
	if err != nil {
		return meta, fmt.Errorf("failed to sample stats of %s: %w", name, err)
	}

	meta.ContainerStats = &stats

	s.mu.Lock()
	s.entries[name] = statsEntry{sampledAt: now, meta: meta}
	s.mu.Unlock()

	logrus.WithField("container", name).Trace("Sampled container stats")

	return meta, nil
}
