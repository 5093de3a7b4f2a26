package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"asset-migrator/internal/common/database"
)

const objectCacheTTL = 24 * time.Hour

// ObjectCache memoizes external ID resolutions in Redis. Resolving a thing
// id against ACF is one API call per object; across reruns of the same
// tenant most of those calls resolve to the same object again.
type ObjectCache struct {
	redis    *database.RedisClient
	tenantID string
}

// NewObjectCache creates a tenant-scoped cache.
func NewObjectCache(rc *database.RedisClient, tenantID string) *ObjectCache {
	return &ObjectCache{redis: rc, tenantID: tenantID}
}

func (c *ObjectCache) key(kind, externalID string) string {
	return fmt.Sprintf("objectmap:%s:%s:%s", c.tenantID, kind, externalID)
}

// GetOrResolve returns the cached object id for an external id, calling
// resolve and caching the result on a miss.
func (c *ObjectCache) GetOrResolve(ctx context.Context, kind, externalID string, resolve func(context.Context, string) (string, error)) (string, error) {
	key := c.key(kind, externalID)

	cached, err := c.redis.Client.Get(ctx, key).Result()
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("failed to read object cache: %w", err)
	}

	objectID, err := resolve(ctx, externalID)
	if err != nil {
		return "", err
	}

	if err := c.redis.Client.Set(ctx, key, objectID, objectCacheTTL).Err(); err != nil {
		return "", fmt.Errorf("failed to write object cache: %w", err)
	}
	return objectID, nil
}

// Invalidate drops one cached resolution.
func (c *ObjectCache) Invalidate(ctx context.Context, kind, externalID string) error {
	return c.redis.Client.Del(ctx, c.key(kind, externalID)).Err()
}
