// event_cache.go - short-lived LRU cache in front of event lookups.
// Every issuance and read request resolves the event owner; the owner
// rarely changes, so a TTL of seconds is enough.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kintsugi/eventsync/internal/domain/model"
	"github.com/kintsugi/eventsync/internal/repository"
)

// EventCache resolves events by id through an expirable LRU.
type EventCache struct {
	repo  repository.EventRepository
	cache *expirable.LRU[string, *model.Event]
}

// NewEventCache creates the cache. maxSize bounds the entry count, ttl the entry age.
func NewEventCache(repo repository.EventRepository, maxSize int, ttl time.Duration) *EventCache {
	return &EventCache{
		repo:  repo,
		cache: expirable.NewLRU[string, *model.Event](maxSize, nil, ttl),
	}
}

// Get returns the event or ErrNotFound. Misses are not cached.
func (c *EventCache) Get(ctx context.Context, id string) (*model.Event, error) {
	if e, ok := c.cache.Get(id); ok {
		eventCacheHitsTotal.Inc()
		return e, nil
	}
	eventCacheMissesTotal.Inc()

	e, err := c.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("Event not found", "event %s", id)
		}
		return nil, fmt.Errorf("load event: %w", err)
	}
	c.cache.Add(id, e)
	return e, nil
}
