package cache_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ineyio/aigate"
	"github.com/ineyio/aigate/cache"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func result(text string) aigate.GenerationResult {
	return aigate.GenerationResult{
		ID:    "req-1",
		Text:  text,
		Usage: aigate.Usage{InputTokens: 10, OutputTokens: 5},
		Model: "gemini-2.0-flash",
	}
}

func TestMemory_GetPut(t *testing.T) {
	c := cache.NewMemory(4)
	ctx := context.Background()

	_, ok := c.Get(ctx, "fp")
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, "fp", result("positive"), time.Hour))

	got, ok := c.Get(ctx, "fp")
	require.True(t, ok)
	assert.Equal(t, "positive", got.Text)

	st := c.Stats()
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
	assert.Equal(t, 1, st.Size)
}

func TestMemory_Expiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)}
	c := cache.NewMemory(4, cache.WithClock(clock.now))
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "fp", result("x"), time.Minute))

	clock.advance(59 * time.Second)
	_, ok := c.Get(ctx, "fp")
	assert.True(t, ok)

	clock.advance(time.Second)
	_, ok = c.Get(ctx, "fp")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Stats().Size)
}

func TestMemory_EvictsLeastRecentlyUsed(t *testing.T) {
	c := cache.NewMemory(2)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "a", result("a"), time.Hour))
	require.NoError(t, c.Put(ctx, "b", result("b"), time.Hour))
	_, _ = c.Get(ctx, "a")
	require.NoError(t, c.Put(ctx, "c", result("c"), time.Hour))

	_, ok := c.Get(ctx, "b")
	assert.False(t, ok, "b was least recently used")
	_, ok = c.Get(ctx, "a")
	assert.True(t, ok)
	_, ok = c.Get(ctx, "c")
	assert.True(t, ok)
}

func TestMemory_FromConfig(t *testing.T) {
	c := cache.NewMemoryFromConfig(aigate.CacheConfig{Enabled: true, Capacity: 3})
	assert.Equal(t, 3, c.Stats().Capacity)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, c.Put(ctx, fmt.Sprintf("fp-%d", i), result("x"), time.Hour))
	}
	assert.Equal(t, 3, c.Stats().Size)

	unset := cache.NewMemoryFromConfig(aigate.CacheConfig{})
	assert.Equal(t, aigate.DefaultCacheCapacity, unset.Stats().Capacity)
}

func TestMemory_CleanupExpired(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)}
	c := cache.NewMemory(10, cache.WithClock(clock.now))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Put(ctx, fmt.Sprint("short", i), result("s"), time.Minute))
	}
	require.NoError(t, c.Put(ctx, "long", result("l"), time.Hour))

	clock.advance(2 * time.Minute)
	assert.Equal(t, 3, c.CleanupExpired())
	assert.Equal(t, 1, c.Stats().Size)
}

func TestMemory_NonPositiveTTLStoresNothing(t *testing.T) {
	c := cache.NewMemory(2)
	require.NoError(t, c.Put(context.Background(), "fp", result("x"), 0))
	_, ok := c.Get(context.Background(), "fp")
	assert.False(t, ok)
}

func newRedisCache(t *testing.T) (*cache.Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return cache.NewRedis(client), mr
}

func TestRedis_GetPut(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()

	_, ok := c.Get(ctx, "fp")
	assert.False(t, ok)

	want := result("negative")
	want.Calls = []aigate.FunctionCallRequest{{Name: "lookup", Args: map[string]any{"sku": "A1"}}}
	require.NoError(t, c.Put(ctx, "fp", want, time.Hour))
	assert.True(t, mr.Exists("aigate:cache:fp"))

	got, ok := c.Get(ctx, "fp")
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestRedis_TTL(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "fp", result("x"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, ok := c.Get(ctx, "fp")
	assert.False(t, ok)
}

func TestRedis_CorruptEntryIsMiss(t *testing.T) {
	c, mr := newRedisCache(t)
	require.NoError(t, mr.Set("aigate:cache:fp", "{not json"))

	_, ok := c.Get(context.Background(), "fp")
	assert.False(t, ok)
}
