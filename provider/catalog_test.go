package provider

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franktheglock/openllm/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestCatalogCachesForTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	var fetches atomic.Int32
	cat := NewCatalog("test", func(context.Context) ([]model.ModelInfo, error) {
		fetches.Add(1)
		return staticModels("test", "a", "b"), nil
	}, nil, time.Hour, clock.Now)

	ctx := context.Background()
	models, err := cat.Models(ctx)
	require.NoError(t, err)
	assert.Len(t, models, 2)

	clock.Advance(30 * time.Minute)
	_, err = cat.Models(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), fetches.Load(), "served from cache inside TTL")

	clock.Advance(31 * time.Minute)
	_, err = cat.Models(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fetches.Load(), "refetched after TTL")

	_, err = cat.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(3), fetches.Load(), "refresh ignores TTL")

	info, ok := cat.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, "test", info.Provider)
}

func TestCatalogServesStaleListOnFailure(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	fail := false
	cat := NewCatalog("test", func(context.Context) ([]model.ModelInfo, error) {
		if fail {
			return nil, errors.New("boom")
		}
		return staticModels("test", "live"), nil
	}, staticModels("test", "fallback"), time.Minute, clock.Now)

	ctx := context.Background()
	_, err := cat.Models(ctx)
	require.NoError(t, err)

	fail = true
	clock.Advance(2 * time.Minute)

	models, err := cat.Models(ctx)
	require.NoError(t, err, "stale data hides the error")
	assert.Equal(t, "live", models[0].ID)

	models, err = cat.Refresh(ctx)
	assert.Error(t, err)
	assert.Equal(t, "live", models[0].ID)
}

func TestCatalogServesFallbackWhenNeverFetched(t *testing.T) {
	cat := NewCatalog("test", func(context.Context) ([]model.ModelInfo, error) {
		return nil, errors.New("offline")
	}, staticModels("test", "x", "y"), 0, nil)

	models, err := cat.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, []string{models[0].ID, models[1].ID})

	_, ok := cat.Lookup("x")
	assert.False(t, ok, "fallback entries are not cached metadata")

	empty := NewCatalog("test", func(context.Context) ([]model.ModelInfo, error) {
		return nil, errors.New("offline")
	}, nil, 0, nil)
	models, err = empty.Models(context.Background())
	assert.Error(t, err)
	assert.Empty(t, models)
}

func TestCatalogSharesConcurrentFetch(t *testing.T) {
	release := make(chan struct{})
	var fetches atomic.Int32
	cat := NewCatalog("test", func(context.Context) ([]model.ModelInfo, error) {
		fetches.Add(1)
		<-release
		return staticModels("test", "m"), nil
	}, nil, time.Hour, nil)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			models, err := cat.Models(context.Background())
			assert.NoError(t, err)
			assert.Len(t, models, 1)
		}()
	}

	assert.Eventually(t, func() bool { return fetches.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, fetches.Load(), int32(2))
}

func TestCatalogSet(t *testing.T) {
	cat := NewCatalog("test", func(context.Context) ([]model.ModelInfo, error) {
		return nil, errors.New("unused")
	}, nil, time.Hour, nil)
	cat.Set([]model.ModelInfo{{ID: "m", ContextLength: 8192}})

	info, ok := cat.Lookup("m")
	require.True(t, ok)
	assert.Equal(t, 8192, info.ContextLength)

	models, err := cat.Models(context.Background())
	require.NoError(t, err)
	assert.Len(t, models, 1)
}
