package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultCatalogCacheTTL = 10 * time.Minute

// CachedCatalog is a read-through Redis cache in front of another Catalog.
// Redis failures are logged and the lookup falls through to next.
type CachedCatalog struct {
	next        Catalog
	redisClient *redis.Client
	cacheTTL    time.Duration
	logger      *zap.Logger
}

// NewCachedCatalog wraps next with a cache whose entries live for ttl
func NewCachedCatalog(next Catalog, redisClient *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedCatalog {
	if ttl <= 0 {
		ttl = defaultCatalogCacheTTL
	}
	return &CachedCatalog{
		next:        next,
		redisClient: redisClient,
		cacheTTL:    ttl,
		logger:      logger,
	}
}

func catalogCacheKey(itemID uint) string {
	return fmt.Sprintf("menu_item:%d", itemID)
}

// Resolve returns the cached pricing of itemID, loading it from next on a miss
func (c *CachedCatalog) Resolve(ctx context.Context, itemID uint) (*CatalogItem, error) {
	key := catalogCacheKey(itemID)

	val, err := c.redisClient.Get(ctx, key).Result()
	switch {
	case err == nil:
		var item CatalogItem
		if jsonErr := json.Unmarshal([]byte(val), &item); jsonErr == nil {
			return &item, nil
		}
		c.logger.Warn("Discarding corrupt catalog cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("Catalog cache read failed", zap.String("key", key), zap.Error(err))
	}

	item, err := c.next.Resolve(ctx, itemID)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(item)
	if err == nil {
		if err := c.redisClient.Set(ctx, key, data, c.cacheTTL).Err(); err != nil {
			c.logger.Warn("Catalog cache write failed", zap.String("key", key), zap.Error(err))
		}
	}

	return item, nil
}

// Invalidate drops the cached entry of itemID
func (c *CachedCatalog) Invalidate(ctx context.Context, itemID uint) {
	if err := c.redisClient.Del(ctx, catalogCacheKey(itemID)).Err(); err != nil {
		c.logger.Warn("Catalog cache invalidation failed", zap.Uint("menu_item_id", itemID), zap.Error(err))
	}
}
