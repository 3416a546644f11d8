package stores

import (
	"context"
	"sync"
	"time"

	"github.com/theapemachine/scenes/pkg/types"
)

type entry struct {
	responses []types.AiSceneResponse
	expiresAt time.Time
}

func (entry *entry) expired(now time.Time) bool {
	return !entry.expiresAt.IsZero() && now.After(entry.expiresAt)
}

/*
MemoryCache is a process-local Cache, safe for concurrent use. Expired
entries are dropped lazily on read and by Cleanup.
*/
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]*entry),
	}
}

func (cache *MemoryCache) Get(ctx context.Context, key string) ([]types.AiSceneResponse, error) {
	cache.mu.RLock()
	found, ok := cache.entries[key]
	cache.mu.RUnlock()

	if !ok {
		return []types.AiSceneResponse{}, nil
	}

	if found.expired(time.Now()) {
		cache.mu.Lock()
		cache.evict(key, found)
		cache.mu.Unlock()

		return []types.AiSceneResponse{}, nil
	}

	return append([]types.AiSceneResponse(nil), found.responses...), nil
}

/*
evict removes key only while it still holds the expired entry, so a Set
that landed after the read survives. Callers hold the write lock.
*/
func (cache *MemoryCache) evict(key string, expired *entry) {
	if cache.entries[key] == expired {
		delete(cache.entries, key)
	}
}

/*
Set replaces the history under key. A zero ttl never expires.
*/
func (cache *MemoryCache) Set(
	ctx context.Context, key string, responses []types.AiSceneResponse, ttl time.Duration,
) error {
	stored := &entry{
		responses: append([]types.AiSceneResponse(nil), responses...),
	}

	if ttl > 0 {
		stored.expiresAt = time.Now().Add(ttl)
	}

	cache.mu.Lock()
	cache.entries[key] = stored
	cache.mu.Unlock()

	return nil
}

func (cache *MemoryCache) Cleanup() {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	now := time.Now()

	for key, stored := range cache.entries {
		if stored.expired(now) {
			delete(cache.entries, key)
		}
	}
}

/*
Run calls Cleanup on every tick until the context is done.
*/
func (cache *MemoryCache) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cache.Cleanup()
		}
	}
}
