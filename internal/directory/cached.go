package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/t77yq/coastal-alert/internal/model"
)

const (
	cacheKeyPrefix = "ctas:recipients:"
	cacheKeyAll    = cacheKeyPrefix + "all"
)

// CachedDirectory serves recipient lists from Redis and falls back to the
// wrapped directory on a miss. Redis errors degrade to a direct read.
type CachedDirectory struct {
	logger *zap.Logger
	next   Directory
	redis  *redis.Client
	ttl    time.Duration
}

// NewCachedDirectory wraps next with a Redis cache
func NewCachedDirectory(next Directory, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedDirectory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedDirectory{
		logger: logger.Named("directory_cache"),
		next:   next,
		redis:  client,
		ttl:    ttl,
	}
}

// ListAll returns every recipient
func (c *CachedDirectory) ListAll(ctx context.Context) ([]model.Recipient, error) {
	return c.cached(ctx, cacheKeyAll, func() ([]model.Recipient, error) {
		return c.next.ListAll(ctx)
	})
}

// ListByZone returns recipients in zone
func (c *CachedDirectory) ListByZone(ctx context.Context, zone string) ([]model.Recipient, error) {
	return c.cached(ctx, zoneKey(zone), func() ([]model.Recipient, error) {
		return c.next.ListByZone(ctx, zone)
	})
}

func (c *CachedDirectory) cached(ctx context.Context, key string, load func() ([]model.Recipient, error)) ([]model.Recipient, error) {
	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var recipients []model.Recipient
		if jsonErr := json.Unmarshal(data, &recipients); jsonErr == nil {
			return recipients, nil
		}
		c.logger.Warn("Discarding corrupt cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("Redis unavailable, reading directory directly", zap.String("key", key), zap.Error(err))
	}

	recipients, err := load()
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(recipients)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recipients: %w", err)
	}
	if err := c.redis.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to cache recipients", zap.String("key", key), zap.Error(err))
	}
	return recipients, nil
}

// Invalidate drops every cached recipient list
func (c *CachedDirectory) Invalidate(ctx context.Context) error {
	iter := c.redis.Scan(ctx, 0, cacheKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete cache keys: %w", err)
	}
	return nil
}

func zoneKey(zone string) string {
	return cacheKeyPrefix + "zone:" + strings.ToLower(strings.TrimSpace(zone))
}
