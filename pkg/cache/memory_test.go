package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type entryPrice struct {
	Price  float64 `json:"price"`
	Source string  `json:"source"`
}

func TestMemoryCacheRoundTripsStructs(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "entry:1", entryPrice{Price: 50000, Source: "broker"}, time.Minute))

	var got entryPrice
	require.NoError(t, mc.Get(ctx, "entry:1", &got))
	require.Equal(t, entryPrice{Price: 50000, Source: "broker"}, got)

	var missing entryPrice
	require.ErrorIs(t, mc.Get(ctx, "entry:2", &missing), ErrCacheMiss)
}

func TestMemoryCacheExpires(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	var s string
	require.ErrorIs(t, mc.Get(ctx, "k", &s), ErrCacheMiss)
	ok, err := mc.Exists(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryCacheTryLock(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	ok, err := mc.TryLock(ctx, "resolve:1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = mc.TryLock(ctx, "resolve:1", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, "resolve:1"))
	ok, err = mc.TryLock(ctx, "resolve:1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMemoryCacheDeleteByPattern(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, GenerateKey("entry", "a"), 1.0, 0))
	require.NoError(t, mc.Set(ctx, GenerateKey("entry", "b"), 2.0, 0))
	require.NoError(t, mc.Set(ctx, GenerateKey("resolve", "a"), "x", 0))

	require.NoError(t, mc.DeleteByPattern(ctx, BuildPattern("entry")))

	ok, err := mc.Exists(ctx, "entry:a", "entry:b")
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = mc.Exists(ctx, "resolve:a")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "a", "1", 0))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "b", "2", 0))
	time.Sleep(time.Millisecond)
	var s string
	require.NoError(t, mc.Get(ctx, "a", &s))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "c", "3", 0))

	require.ErrorIs(t, mc.Get(ctx, "b", &s), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "a", &s))
	require.Equal(t, "1", s)
}

func TestOptionsKeepDefaultsOnZero(t *testing.T) {
	rc := &RedisConfig{PoolSize: 10, MinIdleConns: 5, PoolTimeout: 30 * time.Second}
	WithRedisPool(0, 2, 0)(rc)
	require.Equal(t, 10, rc.PoolSize)
	require.Equal(t, 2, rc.MinIdleConns)
	require.Equal(t, 30*time.Second, rc.PoolTimeout)

	mcfg := &MemoryConfig{MaxSize: 1000, CleanupInterval: 5 * time.Minute}
	WithMemoryMaxSize(0)(mcfg)
	WithMemoryCleanup(time.Second)(mcfg)
	require.Equal(t, 1000, mcfg.MaxSize)
	require.Equal(t, time.Second, mcfg.CleanupInterval)

	lcfg := &LayeredConfig{MemoryMaxSize: 1000}
	WithLayeredMemorySize(50)(lcfg)
	require.Equal(t, 50, lcfg.MemoryMaxSize)

	mc := NewMemoryCache(WithMemoryMaxSize(1), WithMemoryCleanup(10*time.Millisecond))
	defer mc.Close()
	ctx := context.Background()
	require.NoError(t, mc.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, mc.Set(ctx, "b", 2, time.Minute))
	var v int
	require.ErrorIs(t, mc.Get(ctx, "a", &v), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "b", &v))
	require.Equal(t, 2, v)
}
