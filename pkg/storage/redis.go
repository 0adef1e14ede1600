package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/byosync/facecommit/pkg/enrollment"
	"github.com/byosync/facecommit/pkg/failure"
	"github.com/byosync/facecommit/pkg/options"
	"github.com/go-redis/redis/v8"
)

const redisPrefix = "facecommit:enrollment:"

// Cache is the subset of Redis commands the repository needs.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, key string) error
}

// RedisCache adapts a go-redis client to Cache.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.client.Set(ctx, key, value, expiration).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, key).Result()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// Redis stores encoded stores under facecommit:enrollment:<user>/<device>.
type Redis struct {
	cache  Cache
	codec  *Codec
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedis returns a repository over cache. A zero ttl keeps stores forever.
func NewRedis(cache Cache, codec *Codec, ttl time.Duration, opts ...options.Option) *Redis {
	oo := options.NewOptions(opts...)
	return &Redis{
		cache:  cache,
		codec:  codec,
		ttl:    ttl,
		logger: oo.Logger,
	}
}

func (r *Redis) Save(ctx context.Context, id enrollment.Identity, store *enrollment.Store) error {
	k, err := key(redisPrefix, id)
	if err != nil {
		return err
	}

	payload, err := r.codec.Encode(store)
	if err != nil {
		return err
	}

	if err := r.cache.Set(ctx, k, payload, r.ttl); err != nil {
		return fmt.Errorf("cannot save enrollment for %s: %w", id, err)
	}

	r.logger.Debug("enrollment saved", "backend", "redis", "identity", id.String(), "records", store.Len())
	return nil
}

func (r *Redis) Load(ctx context.Context, id enrollment.Identity) (*enrollment.Store, error) {
	k, err := key(redisPrefix, id)
	if err != nil {
		return nil, err
	}

	payload, err := r.cache.Get(ctx, k)
	if errors.Is(err, redis.Nil) {
		return nil, failure.ErrNoEnrollment
	}
	if err != nil {
		return nil, fmt.Errorf("cannot load enrollment for %s: %w", id, err)
	}

	return r.codec.Decode([]byte(payload))
}

func (r *Redis) Delete(ctx context.Context, id enrollment.Identity) error {
	k, err := key(redisPrefix, id)
	if err != nil {
		return err
	}

	if err := r.cache.Del(ctx, k); err != nil {
		return fmt.Errorf("cannot delete enrollment for %s: %w", id, err)
	}
	return nil
}
