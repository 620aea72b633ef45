// Package dedup provides an external seen-ID set backed by Redis, so a
// restarted process does not re-announce listings it already broadcast.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "autotrack:seen:"

// RedisSeenSet stores seen listing IDs as Redis keys with a TTL. Entries
// expire on their own once an ad is old enough that re-announcing it no
// longer matters.
type RedisSeenSet struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSeenSet connects to Redis at redisURL and verifies the connection.
// ttl of zero keeps entries forever.
func NewRedisSeenSet(redisURL string, ttl time.Duration) (*RedisSeenSet, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("dedup: invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("dedup: redis ping failed: %w", err)
	}

	return &RedisSeenSet{client: client, ttl: ttl}, nil
}

// Contains reports whether the ID was marked seen before.
func (r *RedisSeenSet) Contains(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Exists(ctx, keyPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("dedup: exists %q: %w", id, err)
	}
	return n > 0, nil
}

// Add marks the ID as seen.
func (r *RedisSeenSet) Add(ctx context.Context, id string) error {
	if err := r.client.Set(ctx, keyPrefix+id, "1", r.ttl).Err(); err != nil {
		return fmt.Errorf("dedup: set %q: %w", id, err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (r *RedisSeenSet) Close() error {
	return r.client.Close()
}
