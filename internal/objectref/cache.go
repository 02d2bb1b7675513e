package objectref

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// missingMarker is the cached value for entities that no longer exist, so
// repeated list renders don't re-query the host tables for deleted objects.
const missingMarker = "\x00missing"

// NameCache resolves current display names through the adapter registry with
// a Redis cache in front. The activity list surface renders a name per row;
// without the cache every page load fans out one host-table query per event.
type NameCache struct {
	rdb *redis.Client
	reg *Registry
	ttl time.Duration
}

// NewNameCache creates a name cache. rdb may be nil, in which case every
// lookup goes straight to the adapter.
func NewNameCache(rdb *redis.Client, reg *Registry, ttl time.Duration) *NameCache {
	return &NameCache{rdb: rdb, reg: reg, ttl: ttl}
}

// Name returns the current display name for an entity. Returns ErrNotFound
// if the entity no longer exists (this outcome is cached briefly too).
func (c *NameCache) Name(ctx context.Context, objectType string, key any) (string, error) {
	cacheKey := c.key(objectType, key)

	if c.rdb != nil {
		val, err := c.rdb.Get(ctx, cacheKey).Result()
		if err == nil {
			if val == missingMarker {
				return "", ErrNotFound
			}
			return val, nil
		}
		if !errors.Is(err, redis.Nil) {
			slog.Debug("name cache read failed", slog.String("key", cacheKey), slog.Any("error", err))
		}
	}

	a, err := c.reg.Adapter(objectType)
	if err != nil {
		return "", err
	}

	name, err := a.Name(ctx, key)
	switch {
	case err == nil:
		c.store(ctx, cacheKey, name)
		return name, nil
	case errors.Is(err, ErrNotFound):
		c.store(ctx, cacheKey, missingMarker)
		return "", ErrNotFound
	default:
		return "", err
	}
}

// Invalidate drops a cached name, e.g. after the underlying entity changed.
func (c *NameCache) Invalidate(ctx context.Context, objectType string, key any) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, c.key(objectType, key)).Err(); err != nil {
		slog.Debug("name cache invalidate failed", slog.Any("error", err))
	}
}

func (c *NameCache) store(ctx context.Context, cacheKey, val string) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, cacheKey, val, c.ttl).Err(); err != nil {
		slog.Debug("name cache write failed", slog.String("key", cacheKey), slog.Any("error", err))
	}
}

func (c *NameCache) key(objectType string, key any) string {
	return fmt.Sprintf("scribe:objname:%s:%v", objectType, key)
}
