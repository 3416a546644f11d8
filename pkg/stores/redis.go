package stores

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/theapemachine/scenes/pkg/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const keyPrefix = "scenes:history:"

/*
RedisCache stores each history as one JSON value with the ttl set on the
key, so expiry is handled by redis itself.
*/
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(cfg RedisConfig) *RedisCache {
	return NewRedisCacheWithClient(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}))
}

func NewRedisCacheWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (cache *RedisCache) Get(ctx context.Context, key string) ([]types.AiSceneResponse, error) {
	buf, err := cache.client.Get(ctx, keyPrefix+key).Bytes()

	if err == redis.Nil {
		return []types.AiSceneResponse{}, nil
	}

	if err != nil {
		log.Error("failed to read history", "key", key, "error", err)
		return nil, err
	}

	responses := []types.AiSceneResponse{}

	if err := json.Unmarshal(buf, &responses); err != nil {
		return nil, err
	}

	return responses, nil
}

func (cache *RedisCache) Set(
	ctx context.Context, key string, responses []types.AiSceneResponse, ttl time.Duration,
) error {
	buf, err := json.Marshal(responses)

	if err != nil {
		return err
	}

	if err := cache.client.Set(ctx, keyPrefix+key, buf, ttl).Err(); err != nil {
		log.Error("failed to write history", "key", key, "error", err)
		return err
	}

	return nil
}

func (cache *RedisCache) Close() error {
	return cache.client.Close()
}
