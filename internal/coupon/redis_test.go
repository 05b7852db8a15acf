package coupon

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealkart/storefront/internal/domain"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client), mr
}

func TestRedisGet_Success(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	coupons := []domain.Coupon{
		{Code: "FLAT50", Type: domain.DiscountFlat, Value: dec("50"), Active: true},
	}
	data, err := json.Marshal(coupons)
	require.NoError(t, err)
	require.NoError(t, mr.Set(catalogKey, string(data)))

	got, err := cache.Get(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "FLAT50", got[0].Code)
	assert.True(t, got[0].Value.Equal(dec("50")))
}

func TestRedisGet_CacheMiss(t *testing.T) {
	cache, _ := setupTestRedis(t)

	got, err := cache.Get(context.Background())
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, got)
}

func TestRedisGet_InvalidJSON(t *testing.T) {
	cache, mr := setupTestRedis(t)
	require.NoError(t, mr.Set(catalogKey, `[{"code":`))

	_, err := cache.Get(context.Background())
	require.ErrorContains(t, err, "unmarshal coupons failed")
}

func TestRedisSet_RoundTrip(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	coupons := []domain.Coupon{
		{Code: "PCT20", Type: domain.DiscountPercent, Value: dec("20"), Active: true},
	}
	require.NoError(t, cache.Set(ctx, coupons))

	stored, err := mr.Get(catalogKey)
	require.NoError(t, err)
	var got []domain.Coupon
	require.NoError(t, json.Unmarshal([]byte(stored), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "PCT20", got[0].Code)
}

func TestRedisSet_TTLWithJitter(t *testing.T) {
	cache, mr := setupTestRedis(t)

	require.NoError(t, cache.Set(context.Background(), []domain.Coupon{}))

	ttl := mr.TTL(catalogKey)
	assert.True(t, ttl >= 10*time.Minute, "TTL should be at least base TTL")
	assert.True(t, ttl <= 12*time.Minute, "TTL should be base + max jitter")
}
