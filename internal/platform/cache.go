package platform

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/Taichi-iskw/lesson-media/internal/logger"
	"github.com/Taichi-iskw/lesson-media/internal/model"
)

const metadataKeyPrefix = "lessonmedia:metadata:"

// Cache stores serialized metadata by key; Get returns ok=false on a miss
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisCache implements Cache on a go-redis client
type RedisCache struct {
	rdb *redis.Client
}

// NewRedisCache creates a new RedisCache
func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// CachedFetcher caches successful fetches, collapses concurrent fetches of one URL
// and rate limits outbound provider calls
type CachedFetcher struct {
	next    MetadataFetcher
	cache   Cache
	ttl     time.Duration
	limiter *rate.Limiter
	group   singleflight.Group
	log     *logger.Logger
}

// NewCachedFetcher creates a CachedFetcher; cache may be nil to disable caching
func NewCachedFetcher(next MetadataFetcher, cache Cache, ttl time.Duration, limiter *rate.Limiter, log *logger.Logger) *CachedFetcher {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &CachedFetcher{
		next:    next,
		cache:   cache,
		ttl:     ttl,
		limiter: limiter,
		log:     log.With("component", "CachedFetcher"),
	}
}

// FetchMetadata serves from cache when possible
func (f *CachedFetcher) FetchMetadata(ctx context.Context, rawURL string) (*model.VideoMetadata, error) {
	key := metadataKeyPrefix + rawURL

	if f.cache != nil {
		raw, ok, err := f.cache.Get(ctx, key)
		if err != nil {
			f.log.Warn("metadata cache read failed", "url", rawURL, "error", err)
		} else if ok {
			var meta model.VideoMetadata
			if err := json.Unmarshal([]byte(raw), &meta); err == nil {
				return &meta, nil
			}
		}
	}

	v, err, shared := f.group.Do(key, func() (interface{}, error) {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return f.next.FetchMetadata(ctx, rawURL)
	})
	if err != nil {
		return nil, err
	}
	meta := v.(*model.VideoMetadata)

	if f.cache != nil && meta.Available && !shared {
		if raw, err := json.Marshal(meta); err == nil {
			if err := f.cache.Set(ctx, key, string(raw), f.ttl); err != nil {
				f.log.Warn("metadata cache write failed", "url", rawURL, "error", err)
			}
		}
	}

	// callers may mutate the result; shared results must not alias
	out := *meta
	return &out, nil
}
