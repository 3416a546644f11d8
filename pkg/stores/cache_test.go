package stores

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/theapemachine/scenes/pkg/types"
)

func history(requestKey string) []types.AiSceneResponse {
	return []types.AiSceneResponse{
		types.NewAiSceneResponse(requestKey, types.StatusStarting),
		types.NewAiSceneResponse(requestKey, types.StatusFinishedOk,
			types.WithScene("Weather"), types.WithMessage("Sunny, 21C"),
		),
	}
}

func TestNewCache(t *testing.T) {
	cache, err := NewCache(CacheConfig{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, cache)

	cache, err = NewCache(CacheConfig{Backend: "redis", Redis: RedisConfig{Addr: "localhost:6379"}})
	require.NoError(t, err)
	assert.IsType(t, &RedisCache{}, cache)

	_, err = NewCache(CacheConfig{Backend: "tape"})
	assert.Error(t, err)
}

func TestMemoryCache_GetMissing(t *testing.T) {
	cache := NewMemoryCache()

	responses, err := cache.Get(context.Background(), "nothing")
	assert.NoError(t, err)
	assert.NotNil(t, responses)
	assert.Empty(t, responses)
}

func TestMemoryCache_RoundTrip(t *testing.T) {
	cache := NewMemoryCache()
	want := history("req-1")

	require.NoError(t, cache.Set(context.Background(), "req-1", want, time.Minute))

	got, err := cache.Get(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got[0].Message = "mutated"
	again, _ := cache.Get(context.Background(), "req-1")
	assert.Empty(t, again[0].Message)
}

func TestMemoryCache_Expiry(t *testing.T) {
	cache := NewMemoryCache()

	require.NoError(t, cache.Set(context.Background(), "short", history("short"), time.Millisecond))
	require.NoError(t, cache.Set(context.Background(), "forever", history("forever"), 0))

	time.Sleep(5 * time.Millisecond)

	got, err := cache.Get(context.Background(), "short")
	assert.NoError(t, err)
	assert.Empty(t, got)

	cache.Cleanup()

	got, err = cache.Get(context.Background(), "forever")
	assert.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestMemoryCache_EvictKeepsNewerSet(t *testing.T) {
	cache := NewMemoryCache()

	require.NoError(t, cache.Set(context.Background(), "req-1", history("req-1"), time.Millisecond))

	cache.mu.RLock()
	stale := cache.entries["req-1"]
	cache.mu.RUnlock()

	time.Sleep(5 * time.Millisecond)
	require.True(t, stale.expired(time.Now()))

	require.NoError(t, cache.Set(context.Background(), "req-1", history("req-1"), time.Minute))

	cache.mu.Lock()
	cache.evict("req-1", stale)
	cache.mu.Unlock()

	got, err := cache.Get(context.Background(), "req-1")
	assert.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRedisCache(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}

	ctx := context.Background()

	container, err := tcredis.Run(ctx,
		"docker.io/redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("* Ready to accept connections").
				WithOccurrence(1).
				WithStartupTimeout(time.Minute),
		),
	)

	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}

	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(container)
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	cache := NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: endpoint}))
	defer cache.Close()

	got, err := cache.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, got)

	want := history("req-2")
	require.NoError(t, cache.Set(ctx, "req-2", want, time.Minute))

	got, err = cache.Get(ctx, "req-2")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, want[1].Message, got[1].Message)
	assert.True(t, want[1].Timestamp.Equal(got[1].Timestamp))
}
