package redirect

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"edgelink/internal/engine/links"
	"edgelink/internal/platform/config"
)

const redisKeyPrefix = "edgelink:slug:"

// RedisCache shares hot snapshots across edge instances. Any Redis failure
// degrades to a cache miss; the redirect path then falls back to the store.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(cfg config.RedisConfig, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

func (c *RedisCache) Get(slug string) (*Snapshot, bool) {
	ctx, cancel := opContext()
	defer cancel()

	raw, err := c.client.Get(ctx, redisKeyPrefix+slug).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Warn().Err(err).Str("slug", slug).Msg("redis cache read failed")
		return nil, false
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		log.Warn().Err(err).Str("slug", slug).Msg("corrupt cache entry")
		return nil, false
	}
	return &snap, true
}

func (c *RedisCache) Refresh(slug string, link *links.Link) {
	raw, err := json.Marshal(NewSnapshot(link))
	if err != nil {
		return
	}

	ctx, cancel := opContext()
	defer cancel()

	if err := c.client.Set(ctx, redisKeyPrefix+slug, raw, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("slug", slug).Msg("redis cache write failed")
	}
}

func (c *RedisCache) Invalidate(slug string) {
	ctx, cancel := opContext()
	defer cancel()

	if err := c.client.Del(ctx, redisKeyPrefix+slug).Err(); err != nil {
		log.Warn().Err(err).Str("slug", slug).Msg("redis cache invalidate failed")
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 250*time.Millisecond)
}
