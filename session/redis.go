package session

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "memberauth:revoked:"

// RedisDenylist stores revoked token IDs in Redis, letting key expiry do
// the pruning. Use it when sessions must stay revoked across instances or
// restarts.
type RedisDenylist struct {
	client *redis.Client
	prefix string
}

// NewRedisDenylist wraps client as a Denylist. An empty prefix gets the
// default key namespace.
func NewRedisDenylist(client *redis.Client, prefix string) *RedisDenylist {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisDenylist{client: client, prefix: prefix}
}

// Revoke records tokenID with ttl as the key expiry.
func (d *RedisDenylist) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return d.client.Set(ctx, d.prefix+tokenID, "1", ttl).Err()
}

// IsRevoked reports whether tokenID is present in the denylist.
func (d *RedisDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.client.Exists(ctx, d.prefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
