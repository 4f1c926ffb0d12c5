package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"cryptorates-service/internal/application"
)

var _ application.RateCache = (*RateCache)(nil)

// RateCache keeps aggregated rates in Redis with a short TTL to avoid
// redundant provider fan-outs.
type RateCache struct {
	Client *redis.Client
}

func NewRateCache(client *redis.Client) *RateCache {
	return &RateCache{Client: client}
}

func (c *RateCache) Get(ctx context.Context, key string) (float64, bool, error) {
	v, err := c.Client.Get(ctx, key).Float64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func (c *RateCache) Set(ctx context.Context, key string, rate float64, ttl time.Duration) error {
	return c.Client.Set(ctx, key, rate, ttl).Err()
}
