package core

// cache.go keeps loaded models in memory keyed by file version.
//
// Lookups of present entries go straight to the LRU, which has its own
// internal lock. A miss takes the cache-wide load lock, checks again and
// only then runs the loader, so concurrent misses for the same version
// collapse into a single load and every caller gets the same instance.
// Evicting an entry only drops the cache's reference; requests already
// holding the model keep using it.

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/xlcalc/internal/engine"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of models kept when no size is configured.
const DefaultCacheSize = 128

// Loader produces the model for a cache miss.
type Loader func(ctx context.Context) (engine.Model, error)

// ModelCache maps file version IDs to loaded models.
type ModelCache struct {
	models *lru.Cache[uuid.UUID, engine.Model]

	// loadLock admits one loader at a time; a channel so waiting honours
	// context cancellation.
	loadLock chan struct{}
}

// NewModelCache creates a cache holding at most size models.
func NewModelCache(size int) (*ModelCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	models, err := lru.NewWithEvict(size, func(id uuid.UUID, m engine.Model) {
		slog.Debug("model evicted from cache", "file_id", id, "book", m.Name())
	})
	if err != nil {
		return nil, fmt.Errorf("create model cache: %w", err)
	}
	return &ModelCache{
		models:   models,
		loadLock: make(chan struct{}, 1),
	}, nil
}

// Resolve returns the model cached under id, calling load on a miss.
// A failed load stores nothing.
func (c *ModelCache) Resolve(ctx context.Context, id uuid.UUID, load Loader) (engine.Model, error) {
	if m, ok := c.models.Get(id); ok {
		return m, nil
	}

	select {
	case c.loadLock <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.loadLock }()

	if m, ok := c.models.Get(id); ok {
		return m, nil
	}

	m, err := load(ctx)
	if err != nil {
		return nil, err
	}
	c.models.Add(id, m)
	slog.Debug("model loaded into cache", "file_id", id, "book", m.Name(), "cached", c.models.Len())
	return m, nil
}

// Evict drops the model cached under id, if any.
func (c *ModelCache) Evict(id uuid.UUID) {
	c.models.Remove(id)
}

// Len reports the number of cached models.
func (c *ModelCache) Len() int {
	return c.models.Len()
}
