package blacklist

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dresos/duckbot/internal/metrics"
)

const redisKey = "duckbot:blacklist"

// RedisStore keeps the blacklist in a Redis sorted set, scored by insertion
// time so List preserves insertion order across processes.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed blacklist and verifies connectivity.
func NewRedisStore(addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisStore{client: client}, nil
}

// Add inserts id. ZAddNX keeps the original score for already-present ids,
// so re-adding neither duplicates nor reorders.
func (r *RedisStore) Add(id int64) error {
	ctx := context.Background()
	err := r.client.ZAddNX(ctx, redisKey, redis.Z{
		Score:  float64(time.Now().UnixNano()),
		Member: strconv.FormatInt(id, 10),
	}).Err()
	if err != nil {
		return err
	}
	r.refreshSizeGauge(ctx)
	return nil
}

// Remove deletes id. Removing an absent id is a no-op.
func (r *RedisStore) Remove(id int64) error {
	ctx := context.Background()
	if err := r.client.ZRem(ctx, redisKey, strconv.FormatInt(id, 10)).Err(); err != nil {
		return err
	}
	r.refreshSizeGauge(ctx)
	return nil
}

// Contains reports whether id is blacklisted.
func (r *RedisStore) Contains(id int64) (bool, error) {
	err := r.client.ZScore(context.Background(), redisKey, strconv.FormatInt(id, 10)).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List returns all blacklisted ids in insertion order.
func (r *RedisStore) List() ([]int64, error) {
	members, err := r.client.ZRange(context.Background(), redisKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, parseErr := strconv.ParseInt(m, 10, 64)
		if parseErr != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Close closes the Redis connection.
func (r *RedisStore) Close() error { return r.client.Close() }

func (r *RedisStore) refreshSizeGauge(ctx context.Context) {
	if n, err := r.client.ZCard(ctx, redisKey).Result(); err == nil {
		metrics.BlacklistSize.Set(float64(n))
	}
}
