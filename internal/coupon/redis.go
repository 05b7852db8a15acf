package coupon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mealkart/storefront/internal/domain"
)

const catalogKey = "coupons:catalog"

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: 10 * time.Minute,
	}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r RedisCache) Get(ctx context.Context) ([]domain.Coupon, error) {
	data, err := r.client.Get(ctx, catalogKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var coupons []domain.Coupon
	if err2 := json.Unmarshal(data, &coupons); err2 != nil {
		return nil, fmt.Errorf("unmarshal coupons failed: %w", err2)
	}
	return coupons, nil
}

func (r RedisCache) Set(ctx context.Context, coupons []domain.Coupon) error {
	data, err := json.Marshal(coupons)
	if err != nil {
		return fmt.Errorf("marshal coupons failed: %w", err)
	}

	// Jitter keeps every storefront replica from refetching at once.
	ttl := r.baseTTL + time.Duration(rand.Intn(120))*time.Second
	if ret := r.client.Set(ctx, catalogKey, string(data), ttl); ret.Err() != nil {
		return fmt.Errorf("redis set failed: %w", ret.Err())
	}
	return nil
}
