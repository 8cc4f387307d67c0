package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheService provides read-through caching for leaderboard queries.
// Entries live for a short TTL only; point writes do not invalidate.
type CacheService struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewCacheService creates a new cache service
func NewCacheService(redis *RedisCache, ttl time.Duration) *CacheService {
	return &CacheService{
		redis: redis,
		ttl:   ttl,
	}
}

// CacheKeyType represents different types of cache keys
type CacheKeyType string

const (
	// CacheKeyLeaderboard is for top-users listings
	CacheKeyLeaderboard CacheKeyType = "leaderboard"
	// CacheKeyRank is for single-user rank lookups
	CacheKeyRank CacheKeyType = "rank"
)

// GenerateCacheKey generates a cache key for a given type and parameters.
// Format: <type>:<param1>:<param2>:...
func (c *CacheService) GenerateCacheKey(keyType CacheKeyType, params ...string) string {
	normalized := make([]string, len(params))
	for i, param := range params {
		normalized[i] = strings.ToLower(param)
	}
	parts := append([]string{string(keyType)}, normalized...)
	return strings.Join(parts, ":")
}

// GenerateLeaderboardKey generates a cache key for a top-users listing.
// Format: leaderboard:<limit>
func (c *CacheService) GenerateLeaderboardKey(limit int) string {
	return c.GenerateCacheKey(CacheKeyLeaderboard, fmt.Sprintf("%d", limit))
}

// GenerateRankKey generates a cache key for a user's rank.
// Format: rank:<address>
func (c *CacheService) GenerateRankKey(address string) string {
	return c.GenerateCacheKey(CacheKeyRank, address)
}

// Set stores a JSON-encoded value in cache with the configured TTL
func (c *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return c.redis.Set(ctx, key, data, c.ttl)
}

// Get retrieves a JSON-encoded value from cache. Returns (false, nil) on a
// cache miss.
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.redis.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get cache value: %w", err)
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return true, nil
}

// Invalidate removes one or more keys
func (c *CacheService) Invalidate(ctx context.Context, keys ...string) error {
	return c.redis.Del(ctx, keys...)
}
