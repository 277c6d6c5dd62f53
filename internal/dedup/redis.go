package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "dlmm:sig:"

// Redis remembers signatures with SET NX EX so several instances share state.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a deduper connected to addr.
func NewRedis(addr string, ttl time.Duration) *Redis {
	return NewRedisWithClient(redis.NewClient(&redis.Options{Addr: addr}), ttl)
}

// NewRedisWithClient creates a deduper on an existing client.
func NewRedisWithClient(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

var _ Deduper = (*Redis)(nil)

// FirstSeen implements Deduper.
func (r *Redis) FirstSeen(ctx context.Context, signature string) (bool, error) {
	ok, err := r.client.SetNX(ctx, redisKeyPrefix+signature, time.Now().Unix(), r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

// Forget implements Deduper.
func (r *Redis) Forget(ctx context.Context, signature string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+signature).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close implements Deduper.
func (r *Redis) Close() error {
	return r.client.Close()
}
