package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/theapemachine/scenes/pkg/stores/s3"
	"github.com/theapemachine/scenes/pkg/types"
)

/*
Cache keeps the response history of a request, keyed by request key.
A key that was never written, or that expired, reads as an empty history
with a nil error.
*/
type Cache interface {
	Get(ctx context.Context, key string) ([]types.AiSceneResponse, error)
	Set(ctx context.Context, key string, responses []types.AiSceneResponse, ttl time.Duration) error
}

/*
CacheConfig selects and configures a cache backend.
*/
type CacheConfig struct {
	Backend string      `mapstructure:"backend"`
	Redis   RedisConfig `mapstructure:"redis"`
	S3      s3.Config   `mapstructure:"s3"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

/*
NewCache builds the configured backend. The in-memory cache is the
default.
*/
func NewCache(cfg CacheConfig) (Cache, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryCache(), nil
	case "redis":
		return NewRedisCache(cfg.Redis), nil
	case "s3":
		cache, err := s3.NewCache(cfg.S3)

		if err != nil {
			return nil, err
		}

		return cache, nil
	}

	return nil, fmt.Errorf("unknown cache backend: %s", cfg.Backend)
}
