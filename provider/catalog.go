package provider

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/franktheglock/openllm/model"
)

// FetchModelsFunc loads a model catalogue from the vendor.
type FetchModelsFunc func(ctx context.Context) ([]model.ModelInfo, error)

// Catalog caches a remote model list for a fixed TTL. Concurrent refreshes
// share one fetch. When a fetch fails the last good list, or the static
// fallback, is served instead.
type Catalog struct {
	provider string
	fetch    FetchModelsFunc
	fallback []model.ModelInfo
	ttl      time.Duration
	now      func() time.Time

	mu        sync.RWMutex
	models    []model.ModelInfo
	byID      map[string]model.ModelInfo
	fetchedAt time.Time

	group singleflight.Group
}

// NewCatalog creates a cache over fetch. A nil now uses time.Now and a
// non-positive ttl uses DefaultCatalogTTL.
func NewCatalog(provider string, fetch FetchModelsFunc, fallback []model.ModelInfo, ttl time.Duration, now func() time.Time) *Catalog {
	if ttl <= 0 {
		ttl = DefaultCatalogTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Catalog{
		provider: provider,
		fetch:    fetch,
		fallback: fallback,
		ttl:      ttl,
		now:      now,
	}
}

// Models returns the cached list, fetching when empty or expired.
func (c *Catalog) Models(ctx context.Context) ([]model.ModelInfo, error) {
	c.mu.RLock()
	fresh := c.models != nil && c.now().Sub(c.fetchedAt) < c.ttl
	models := c.models
	c.mu.RUnlock()

	if fresh {
		return cloneModels(models), nil
	}

	models, err := c.Refresh(ctx)
	if len(models) > 0 {
		return models, nil
	}
	return models, err
}

// Refresh fetches regardless of cache age. On failure it returns the stale
// or fallback list together with the error.
func (c *Catalog) Refresh(ctx context.Context) ([]model.ModelInfo, error) {
	v, err, _ := c.group.Do("models", func() (any, error) {
		models, err := c.fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.store(models)
		return models, nil
	})
	if err == nil {
		return cloneModels(v.([]model.ModelInfo)), nil
	}

	c.mu.RLock()
	stale := c.models
	c.mu.RUnlock()

	if stale != nil {
		slog.Warn("model catalogue refresh failed, serving cached list",
			"component", "provider", "provider", c.provider, "error", err)
		return cloneModels(stale), err
	}
	slog.Warn("model catalogue refresh failed, serving default list",
		"component", "provider", "provider", c.provider, "error", err)
	return cloneModels(c.fallback), err
}

// Lookup returns cached metadata for id without fetching.
func (c *Catalog) Lookup(id string) (model.ModelInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.byID[id]
	return info, ok
}

// Set primes the cache, e.g. from metadata fetched elsewhere.
func (c *Catalog) Set(models []model.ModelInfo) {
	c.store(models)
}

func (c *Catalog) store(models []model.ModelInfo) {
	byID := make(map[string]model.ModelInfo, len(models))
	for _, m := range models {
		byID[m.ID] = m
	}
	if models == nil {
		models = []model.ModelInfo{}
	}

	c.mu.Lock()
	c.models = models
	c.byID = byID
	c.fetchedAt = c.now()
	c.mu.Unlock()
}

func cloneModels(in []model.ModelInfo) []model.ModelInfo {
	if in == nil {
		return nil
	}
	return append([]model.ModelInfo(nil), in...)
}

// staticModels builds catalogue entries from bare ids.
func staticModels(provider string, ids ...string) []model.ModelInfo {
	out := make([]model.ModelInfo, len(ids))
	for i, id := range ids {
		out[i] = model.ModelInfo{ID: id, Name: id, Provider: provider}
	}
	return out
}
