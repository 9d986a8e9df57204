// Package redisseq keeps the per-day rental number counters in Redis
package redisseq

import (
	"context"
	"fmt"
	"time"

	"musicstore-backend/internal/logger"
	"musicstore-backend/internal/repository"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "rental_seq:"

type sequenceRepository struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewSequenceRepository keeps each day's counter for ttl after its last use
func NewSequenceRepository(client redis.UniversalClient, ttl time.Duration) repository.SequenceRepository {
	return &sequenceRepository{client: client, ttl: ttl}
}

func (r *sequenceRepository) Next(ctx context.Context, dayKey string) (int64, error) {
	key := keyPrefix + dayKey
	logger.ExternalServiceCall("redis", "INCR", "key", key)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	_, err := pipe.Exec(ctx)
	logger.ExternalServiceResult("redis", "INCR", err, "key", key)
	if err != nil {
		return 0, fmt.Errorf("failed to advance rental sequence %s: %w", dayKey, err)
	}
	return incr.Val(), nil
}
