package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGetDelete(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", map[string]string{"a": "b"}, time.Minute))

	var got map[string]string
	require.NoError(t, c.Get(ctx, "k1", &got))
	assert.Equal(t, "b", got["a"])

	require.NoError(t, c.Delete(ctx, "k1"))
	assert.ErrorIs(t, c.Get(ctx, "k1", &got), ErrCacheMiss)
}

func TestMemoryCache_Expiration(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", "v", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	var got string
	assert.ErrorIs(t, c.Get(ctx, "k1", &got), ErrCacheMiss)
}

func TestMemoryCache_DeletePattern(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "messages:chat:1:page:a", "x", time.Minute))
	require.NoError(t, c.Set(ctx, "messages:chat:1:page:b", "x", time.Minute))
	require.NoError(t, c.Set(ctx, "messages:chat:2:page:a", "x", time.Minute))

	require.NoError(t, c.DeletePattern(ctx, MessagesPagePattern(1)))

	var dest string
	assert.ErrorIs(t, c.Get(ctx, "messages:chat:1:page:a", &dest), ErrCacheMiss)
	assert.ErrorIs(t, c.Get(ctx, "messages:chat:1:page:b", &dest), ErrCacheMiss)
	assert.NoError(t, c.Get(ctx, "messages:chat:2:page:a", &dest))
}

func TestMemoryCache_Ping(t *testing.T) {
	c := NewMemoryCache()
	assert.NoError(t, c.Ping(context.Background()))
}

func TestGateway_GetOrCompute_CacheHit(t *testing.T) {
	svc := NewMemoryCache()
	ctx := context.Background()
	require.NoError(t, svc.Set(ctx, "k", "cached-value", time.Minute))

	gw := NewGateway(svc)

	var computeCalls int32
	var dest string
	err := gw.GetOrCompute(ctx, "k", time.Minute, &dest, func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&computeCalls, 1)
		return "computed-value", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "cached-value", dest)
	assert.EqualValues(t, 0, computeCalls)
}

func TestGateway_GetOrCompute_MissComputesAndCaches(t *testing.T) {
	svc := NewMemoryCache()
	ctx := context.Background()
	gw := NewGateway(svc)

	var computeCalls int32
	var dest string
	err := gw.GetOrCompute(ctx, "k", time.Minute, &dest, func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&computeCalls, 1)
		return "computed-value", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "computed-value", dest)
	assert.EqualValues(t, 1, computeCalls)

	var cached string
	require.NoError(t, svc.Get(ctx, "k", &cached))
	assert.Equal(t, "computed-value", cached)
}

func TestGateway_GetOrCompute_ConcurrentMissesCollapseToOneCompute(t *testing.T) {
	svc := NewMemoryCache()
	ctx := context.Background()
	gw := NewGateway(svc)

	var computeCalls int32
	var wg sync.WaitGroup
	results := make([]string, 20)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			var dest string
			err := gw.GetOrCompute(ctx, "stampede-key", time.Minute, &dest, func(ctx context.Context) (interface{}, error) {
				atomic.AddInt32(&computeCalls, 1)
				time.Sleep(20 * time.Millisecond)
				return "single-computed-value", nil
			})
			assert.NoError(t, err)
			results[idx] = dest
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, computeCalls, "concurrent misses on the same key should collapse into one compute")
	for _, r := range results {
		assert.Equal(t, "single-computed-value", r)
	}
}

func TestGateway_Invalidate(t *testing.T) {
	svc := NewMemoryCache()
	ctx := context.Background()
	require.NoError(t, svc.Set(ctx, "k1", "v", time.Minute))
	require.NoError(t, svc.Set(ctx, "k2", "v", time.Minute))

	gw := NewGateway(svc)
	gw.Invalidate(ctx, "k1", "k2")

	var dest string
	assert.ErrorIs(t, svc.Get(ctx, "k1", &dest), ErrCacheMiss)
	assert.ErrorIs(t, svc.Get(ctx, "k2", &dest), ErrCacheMiss)
}
