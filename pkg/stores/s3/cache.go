package s3

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	jsoniter "github.com/json-iterator/go"
	"github.com/theapemachine/scenes/pkg/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

/*
envelope carries the expiry next to the history, object storage has no
native per-object ttl.
*/
type envelope struct {
	ExpiresAt time.Time               `json:"expiresAt,omitempty"`
	Responses []types.AiSceneResponse `json:"responses"`
}

/*
Cache keeps request histories as JSON objects under history/<key>.json.
*/
type Cache struct {
	conn *Conn
	now  func() time.Time
}

func NewCache(cfg Config) (*Cache, error) {
	conn, err := NewConn(cfg)

	if err != nil {
		return nil, err
	}

	return &Cache{conn: conn, now: time.Now}, nil
}

func objectKey(key string) string {
	return "history/" + key + ".json"
}

func (cache *Cache) EnsureBucket(ctx context.Context) error {
	return cache.conn.EnsureBucket(ctx)
}

func (cache *Cache) Get(ctx context.Context, key string) ([]types.AiSceneResponse, error) {
	buf, ok, err := cache.conn.Get(ctx, objectKey(key))

	if err != nil {
		log.Error("failed to read history", "key", key, "error", err)
		return nil, err
	}

	if !ok {
		return []types.AiSceneResponse{}, nil
	}

	return decode(buf, cache.now())
}

func (cache *Cache) Set(
	ctx context.Context, key string, responses []types.AiSceneResponse, ttl time.Duration,
) error {
	buf, err := encode(responses, ttl, cache.now())

	if err != nil {
		return err
	}

	return cache.conn.Put(ctx, objectKey(key), buf)
}

func encode(responses []types.AiSceneResponse, ttl time.Duration, now time.Time) ([]byte, error) {
	stored := envelope{Responses: responses}

	if ttl > 0 {
		stored.ExpiresAt = now.Add(ttl).UTC()
	}

	return json.Marshal(stored)
}

func decode(buf []byte, now time.Time) ([]types.AiSceneResponse, error) {
	var stored envelope

	if err := json.Unmarshal(buf, &stored); err != nil {
		return nil, err
	}

	if !stored.ExpiresAt.IsZero() && now.After(stored.ExpiresAt) {
		return []types.AiSceneResponse{}, nil
	}

	if stored.Responses == nil {
		return []types.AiSceneResponse{}, nil
	}

	return stored.Responses, nil
}
