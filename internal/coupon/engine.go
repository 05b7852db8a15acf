// Package coupon ranks the coupon catalog against the live cart
// subtotal. Eligibility itself is a server-owned rule; these
// derivations only drive what the UI features and greys out.
package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mealkart/storefront/internal/domain"
	"github.com/mealkart/storefront/internal/gateway"
)

type Engine struct {
	api   gateway.CouponAPI
	cache Cache
	log   *zap.Logger
	now   func() time.Time
}

func NewEngine(api gateway.CouponAPI, cache Cache, log *zap.Logger) *Engine {
	return &Engine{
		api:   api,
		cache: cache,
		log:   log,
		now:   time.Now,
	}
}

// Catalog returns the cached coupon catalog, fetching from the server
// on a miss. Cache write-back happens off the request path.
func (e *Engine) Catalog(ctx context.Context) ([]domain.Coupon, error) {
	coupons, err := e.cache.Get(ctx)
	if err == nil {
		return coupons, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		e.log.Warn("coupon cache get failed", zap.Error(err))
	}

	coupons, err = e.api.ListCoupons(ctx)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}

	go func() {
		if errSet := e.cache.Set(context.Background(), coupons); errSet != nil {
			e.log.Warn("coupon cache set failed", zap.Error(errSet))
		}
	}()

	return coupons, nil
}

// RefreshCatalog fetches the catalog and writes the cache synchronously.
// The background refresher calls this on a tick.
func (e *Engine) RefreshCatalog(ctx context.Context) error {
	coupons, err := e.api.ListCoupons(ctx)
	if err != nil {
		return fmt.Errorf("list coupons: %w", err)
	}
	if err := e.cache.Set(ctx, coupons); err != nil {
		return fmt.Errorf("cache coupons: %w", err)
	}
	return nil
}

// Eligible filters to coupons that are not expired and whose
// minimum-order threshold the subtotal satisfies.
func (e *Engine) Eligible(coupons []domain.Coupon, subtotal decimal.Decimal) []domain.Coupon {
	now := e.now()
	var out []domain.Coupon
	for _, c := range coupons {
		if c.Expired(now) {
			continue
		}
		if c.MinOrderValue != nil && subtotal.LessThan(*c.MinOrderValue) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Best picks the non-expired coupon with the highest discount magnitude
// for the featured slot, eligible or not. Percent and flat values are
// compared raw rather than normalized to currency; this ranks a display
// slot, it does not promise the cheapest bill.
func (e *Engine) Best(coupons []domain.Coupon) (domain.Coupon, bool) {
	now := e.now()
	var best domain.Coupon
	found := false
	for _, c := range coupons {
		if c.Expired(now) {
			continue
		}
		if !found || c.Value.GreaterThan(best.Value) {
			best = c
			found = true
		}
	}
	return best, found
}

// Shortfall reports how much more the subtotal needs before the coupon
// becomes eligible. ok is false when the coupon is already eligible or
// has no threshold.
func Shortfall(c domain.Coupon, subtotal decimal.Decimal) (decimal.Decimal, bool) {
	if c.MinOrderValue == nil {
		return decimal.Decimal{}, false
	}
	diff := c.MinOrderValue.Sub(subtotal)
	if !diff.IsPositive() {
		return decimal.Decimal{}, false
	}
	return diff, true
}
