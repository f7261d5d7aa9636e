package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ChallanLockKey builds the redis key serialising mutations on one challan.
func ChallanLockKey(id string) string {
	return fmt.Sprintf("challan:%s:lock", id)
}

// Locker serialises read-modify-write cycles on a single document.
// Without it two concurrent verifications could both read the same
// received total and lose one increment.
type Locker struct {
	client *redislock.Client
	ttl    time.Duration
}

// NewLocker wraps the redis client with a redislock client.
func NewLocker(rdb *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{client: redislock.New(rdb), ttl: ttl}
}

// Acquire obtains the named lock, retrying briefly before giving up.
func (l *Locker) Acquire(ctx context.Context, key string) (*redislock.Lock, error) {
	lock, err := l.client.Obtain(ctx, key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 50),
	})
	if err != nil {
		return nil, fmt.Errorf("shared: obtain lock %s: %w", key, err)
	}
	return lock, nil
}
