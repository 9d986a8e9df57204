package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"musicstore-backend/internal/domain"
	"musicstore-backend/internal/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "rental_lock:"

// releaseScript deletes the key only while it still carries our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker coordinates several server instances through SET NX PX keys
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

func NewRedisLocker(client redis.UniversalClient, ttl, wait time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{client: client, ttl: ttl, wait: wait, retry: 25 * time.Millisecond}
}

func (l *RedisLocker) Acquire(ctx context.Context, keys []string) (func(), error) {
	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	token := uuid.NewString()
	held := make([]string, 0, len(keys))
	releaseAll := func() {
		// Release must outlive the acquire deadline.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for _, k := range held {
			if err := releaseScript.Run(rctx, l.client, []string{k}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				logger.Warn("Failed to release rental lock", "key", k, "error", err)
			}
		}
	}

	for _, key := range normalize(keys) {
		redisKey := keyPrefix + key
		if err := l.obtain(ctx, redisKey, token); err != nil {
			releaseAll()
			// Only running out of wait time means another holder; a Redis failure is ours.
			if ctx.Err() != nil {
				return nil, contended(key, err)
			}
			logger.Error("Rental lock backend failed", "key", key, "error", err)
			return nil, domain.Wrap(fmt.Errorf("lock %s: %w", key, err), "failed to acquire rental lock")
		}
		held = append(held, redisKey)
	}

	var once sync.Once
	return func() { once.Do(releaseAll) }, nil
}

func (l *RedisLocker) obtain(ctx context.Context, key, token string) error {
	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
