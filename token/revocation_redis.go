package token

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "revoked:"

// RedisRevokedTokenCache shares revocations between instances.
// Entries expire in Redis at the token's own expiry, so Cleanup is a no-op.
type RedisRevokedTokenCache struct {
	client  *redis.Client
	nowFunc func() time.Time
}

var _ RevokedTokenCache = (*RedisRevokedTokenCache)(nil)

func NewRedisRevokedTokenCache(client *redis.Client) *RedisRevokedTokenCache {
	return &RedisRevokedTokenCache{
		client:  client,
		nowFunc: time.Now,
	}
}

func (c *RedisRevokedTokenCache) Add(ctx context.Context, jti string, exp time.Time) error {
	ttl := exp.Sub(c.nowFunc())
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, revokedKeyPrefix+jti, 1, ttl).Err(); err != nil {
		return fmt.Errorf("[RedisRevokedTokenCache Add] %w", err)
	}
	return nil
}

func (c *RedisRevokedTokenCache) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := c.client.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("[RedisRevokedTokenCache IsRevoked] %w", err)
	}
	return n > 0, nil
}

func (c *RedisRevokedTokenCache) Cleanup() {}
