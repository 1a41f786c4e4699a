package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter counts generations per client per UTC day. CheckLimit and
// Increment are separate round trips, so concurrent requests from one client
// can each pass the check and overshoot the limit by the number in flight.
type RedisLimiter struct {
	client *redis.Client
	limit  int // max generations per day
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client, limit int) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  limit,
		now:    time.Now,
	}
}

func (r *RedisLimiter) key(clientID string) string {
	return "quota:" + clientID + ":" + r.now().UTC().Format("20060102")
}

func (r *RedisLimiter) CheckLimit(ctx context.Context, clientID string) (bool, error) {
	val, err := r.client.Get(ctx, r.key(clientID)).Result()
	if errors.Is(err, redis.Nil) {
		return true, nil // No usage yet
	}
	if err != nil {
		return false, err
	}
	usage, err := strconv.Atoi(val)
	if err != nil {
		return false, err
	}
	return usage < r.limit, nil
}

// Increment counts one generation. The key expires after 48h so yesterday's
// counter survives until every timezone has rolled over.
func (r *RedisLimiter) Increment(ctx context.Context, clientID string) error {
	key := r.key(clientID)
	pipe := r.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 48*time.Hour)
	_, err := pipe.Exec(ctx)
	return err
}
