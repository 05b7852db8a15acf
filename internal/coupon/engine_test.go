package coupon

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mealkart/storefront/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

type mockCouponAPI struct {
	m       sync.Mutex
	coupons []domain.Coupon
	err     error
	calls   int
}

func (m *mockCouponAPI) ListCoupons(context.Context) ([]domain.Coupon, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.coupons, nil
}

type mockCache struct {
	m       sync.Mutex
	coupons []domain.Coupon
	getErr  error
	setErr  error
}

func (m *mockCache) Get(context.Context) ([]domain.Coupon, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.coupons == nil {
		return nil, ErrCacheMiss
	}
	return m.coupons, nil
}

func (m *mockCache) Set(_ context.Context, coupons []domain.Coupon) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.coupons = coupons
	return nil
}

func (m *mockCache) get() []domain.Coupon {
	m.m.Lock()
	defer m.m.Unlock()
	return m.coupons
}

func fixedEngine(api *mockCouponAPI, cache *mockCache) *Engine {
	e := NewEngine(api, cache, zap.NewNop())
	e.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func catalog() []domain.Coupon {
	return []domain.Coupon{
		{Code: "FLAT50", Type: domain.DiscountFlat, Value: dec("50"), MinOrderValue: decPtr("200"), Active: true},
		{Code: "PCT20", Type: domain.DiscountPercent, Value: dec("20"), MinOrderValue: decPtr("500"), Active: true},
		{Code: "OLD10", Type: domain.DiscountFlat, Value: dec("10"), Active: true,
			ValidUntil: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{Code: "DEAD", Type: domain.DiscountFlat, Value: dec("100"), Active: false},
	}
}

func TestCatalog_CacheMissFetchesAndWritesBack(t *testing.T) {
	api := &mockCouponAPI{coupons: catalog()}
	cache := &mockCache{}
	sut := fixedEngine(api, cache)

	got, err := sut.Catalog(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 4)

	require.Eventually(t, func() bool {
		return cache.get() != nil
	}, 100*time.Millisecond, 10*time.Millisecond, "catalog was not written back to cache")
}

func TestCatalog_CacheHitSkipsServer(t *testing.T) {
	api := &mockCouponAPI{}
	cache := &mockCache{coupons: catalog()}
	sut := fixedEngine(api, cache)

	got, err := sut.Catalog(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 4)
	assert.Equal(t, 0, api.calls)
}

func TestCatalog_ServerError(t *testing.T) {
	api := &mockCouponAPI{err: fmt.Errorf("upstream down")}
	sut := fixedEngine(api, &mockCache{})

	_, err := sut.Catalog(context.Background())
	require.ErrorContains(t, err, "upstream down")
}

func TestRefreshCatalog_WritesCacheSynchronously(t *testing.T) {
	api := &mockCouponAPI{coupons: catalog()}
	cache := &mockCache{}
	sut := fixedEngine(api, cache)

	require.NoError(t, sut.RefreshCatalog(context.Background()))
	assert.Len(t, cache.get(), 4)
}

func TestEligible_FiltersExpiredAndBelowThreshold(t *testing.T) {
	sut := fixedEngine(&mockCouponAPI{}, &mockCache{})

	got := sut.Eligible(catalog(), dec("250"))
	require.Len(t, got, 1)
	assert.Equal(t, "FLAT50", got[0].Code, "PCT20 needs 500, OLD10 expired, DEAD inactive")
}

func TestEligible_HigherSubtotalUnlocksMore(t *testing.T) {
	sut := fixedEngine(&mockCouponAPI{}, &mockCache{})

	got := sut.Eligible(catalog(), dec("600"))
	codes := make([]string, 0, len(got))
	for _, c := range got {
		codes = append(codes, c.Code)
	}
	assert.ElementsMatch(t, []string{"FLAT50", "PCT20"}, codes)
}

func TestBest_PicksHighestMagnitudeAmongLive(t *testing.T) {
	sut := fixedEngine(&mockCouponAPI{}, &mockCache{})

	best, ok := sut.Best(catalog())
	require.True(t, ok)
	// FLAT50 beats PCT20 on raw magnitude; DEAD's 100 is inactive.
	assert.Equal(t, "FLAT50", best.Code)
}

func TestBest_IgnoresIneligibilityThreshold(t *testing.T) {
	sut := fixedEngine(&mockCouponAPI{}, &mockCache{})
	coupons := []domain.Coupon{
		{Code: "SMALL", Type: domain.DiscountFlat, Value: dec("10"), Active: true},
		{Code: "BIG", Type: domain.DiscountFlat, Value: dec("75"), MinOrderValue: decPtr("1000"), Active: true},
	}

	best, ok := sut.Best(coupons)
	require.True(t, ok)
	assert.Equal(t, "BIG", best.Code, "the featured slot may show a not-yet-eligible coupon")
}

func TestBest_EmptyCatalog(t *testing.T) {
	sut := fixedEngine(&mockCouponAPI{}, &mockCache{})
	_, ok := sut.Best(nil)
	assert.False(t, ok)
}

func TestShortfall_BelowThreshold(t *testing.T) {
	c := domain.Coupon{Code: "SAVE50", MinOrderValue: decPtr("200")}
	got, ok := Shortfall(c, dec("100"))
	require.True(t, ok)
	assert.True(t, got.Equal(dec("100")))
}

func TestShortfall_AlreadyEligible(t *testing.T) {
	c := domain.Coupon{Code: "SAVE50", MinOrderValue: decPtr("200")}
	_, ok := Shortfall(c, dec("350"))
	assert.False(t, ok)
}

func TestShortfall_NoThreshold(t *testing.T) {
	_, ok := Shortfall(domain.Coupon{Code: "FREE"}, dec("10"))
	assert.False(t, ok)
}
