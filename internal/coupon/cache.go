package coupon

import (
	"context"
	"errors"

	"github.com/mealkart/storefront/internal/domain"
)

// Cache holds the coupon catalog between server fetches.
type Cache interface {
	Get(ctx context.Context) ([]domain.Coupon, error)
	Set(ctx context.Context, coupons []domain.Coupon) error
}

var ErrCacheMiss = errors.New("cache miss")
