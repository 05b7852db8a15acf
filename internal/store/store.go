// Package store holds the in-memory mirror of the server cart and owns
// every mutation entry point. Mutations apply optimistically for instant
// feedback, roll back on server failure, and are superseded by a forced
// authoritative refetch on success.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mealkart/storefront/internal/domain"
	"github.com/mealkart/storefront/internal/gateway"
	"github.com/mealkart/storefront/internal/pricing"
)

var (
	ErrLineNotFound    = errors.New("cart line not found")
	ErrEmptyCouponCode = errors.New("coupon code is empty")
)

// ShortfallError reports how much more the cart needs before a coupon's
// minimum-order threshold is met.
type ShortfallError struct {
	Code          string
	MinOrderValue decimal.Decimal
	Shortfall     decimal.Decimal
	Message       string
}

func (e *ShortfallError) Error() string {
	return fmt.Sprintf("coupon %s needs %s more to apply (minimum order %s)",
		e.Code, e.Shortfall.String(), e.MinOrderValue.String())
}

// Store is the single authoritative client-side cart. One instance per
// process, injected into whatever surface consumes it.
type Store struct {
	api gateway.CartAPI
	log *zap.Logger

	mu   sync.Mutex
	cart domain.Cart
	loc  *domain.DeliveryLocation

	// fetchSeq tags every refetch; appliedSeq is the newest one whose
	// response has been applied. Responses older than appliedSeq are
	// discarded so an overlapping slow fetch cannot clobber newer state.
	fetchSeq   uint64
	appliedSeq uint64

	sfg singleflight.Group
}

func New(api gateway.CartAPI, log *zap.Logger) *Store {
	return &Store{api: api, log: log}
}

// Snapshot returns a deep copy of the current cart.
func (s *Store) Snapshot() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

// Location returns the retained delivery-location context, if any.
func (s *Store) Location() *domain.DeliveryLocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loc == nil {
		return nil
	}
	l := *s.loc
	return &l
}

// Refresh refetches the authoritative cart and bill. A non-nil loc is
// retained so later refetches keep pricing delivery against it. When
// the caller is unauthenticated the prior state is left untouched and
// no error is reported.
func (s *Store) Refresh(ctx context.Context, loc *domain.DeliveryLocation) error {
	s.mu.Lock()
	if loc != nil {
		l := *loc
		s.loc = &l
	}
	target := s.loc
	s.fetchSeq++
	seq := s.fetchSeq
	s.mu.Unlock()

	// Concurrent refetches share one server round trip.
	v, err, _ := s.sfg.Do("cart", func() (interface{}, error) {
		return s.api.FetchCart(ctx, target)
	})
	if errors.Is(err, gateway.ErrUnauthenticated) {
		s.log.Debug("cart refresh skipped, no session")
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetch cart: %w", err)
	}

	s.applyFetched(seq, v.(*domain.Cart))
	return nil
}

// applyFetched installs a fetched cart unless a newer fetch already
// landed. Reports whether the cart was applied.
func (s *Store) applyFetched(seq uint64, cart *domain.Cart) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq < s.appliedSeq {
		s.log.Debug("discarding stale cart fetch",
			zap.Uint64("seq", seq), zap.Uint64("applied", s.appliedSeq))
		return false
	}
	s.appliedSeq = seq
	s.cart = cart.Clone()
	// The displayed subtotal must always agree with the displayed lines.
	s.cart.Totals.ItemsSubtotal = pricing.Subtotal(s.cart.Items)
	return true
}

// AddItem merges the product into an existing (product, variant) line or
// appends a new quantity-1 line, shows the estimated bill immediately,
// then confirms with the server and refetches.
func (s *Store) AddItem(ctx context.Context, p domain.Product) error {
	s.mu.Lock()
	prev := s.cart.Clone()
	if idx := indexOfProduct(s.cart.Items, p.ID, p.Variant); idx >= 0 {
		s.cart.Items[idx].Quantity++
	} else {
		s.cart.Items = append(s.cart.Items, domain.CartItem{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.UnitPrice,
			Quantity:  1,
			Variant:   p.Variant,
			ImageURL:  p.ImageURL,
			Type:      p.Type,
		})
	}
	s.cart.Totals = pricing.EstimateTotals(s.cart.Items, prev.Totals)
	s.mu.Unlock()

	if err := s.api.AddItem(ctx, p.ID, p.Variant, 1); err != nil {
		s.rollback(prev, "add item", err)
		return fmt.Errorf("add item: %w", err)
	}
	return s.Refresh(ctx, nil)
}

// IncrementItem bumps the line's quantity by one.
func (s *Store) IncrementItem(ctx context.Context, lineID string) error {
	return s.changeQuantity(ctx, lineID, +1)
}

// DecrementItem lowers the line's quantity by one. A quantity-1 line is
// removed instead of being updated to zero.
func (s *Store) DecrementItem(ctx context.Context, lineID string) error {
	s.mu.Lock()
	idx := indexOfLine(s.cart.Items, lineID)
	if idx >= 0 && s.cart.Items[idx].Quantity <= 1 {
		s.mu.Unlock()
		return s.RemoveItem(ctx, lineID)
	}
	s.mu.Unlock()
	return s.changeQuantity(ctx, lineID, -1)
}

func (s *Store) changeQuantity(ctx context.Context, lineID string, delta int) error {
	s.mu.Lock()
	idx := indexOfLine(s.cart.Items, lineID)
	if idx < 0 {
		s.mu.Unlock()
		return ErrLineNotFound
	}
	prev := s.cart.Clone()
	s.cart.Items[idx].Quantity += delta
	quantity := s.cart.Items[idx].Quantity
	s.cart.Totals = pricing.EstimateTotals(s.cart.Items, prev.Totals)
	s.mu.Unlock()

	if err := s.api.UpdateQuantity(ctx, lineID, quantity); err != nil {
		s.rollback(prev, "update quantity", err)
		return fmt.Errorf("update quantity: %w", err)
	}
	return s.Refresh(ctx, nil)
}

// RemoveItem drops the line optimistically, rolling back on failure.
func (s *Store) RemoveItem(ctx context.Context, lineID string) error {
	s.mu.Lock()
	idx := indexOfLine(s.cart.Items, lineID)
	if idx < 0 {
		s.mu.Unlock()
		return ErrLineNotFound
	}
	prev := s.cart.Clone()
	s.cart.Items = append(s.cart.Items[:idx], s.cart.Items[idx+1:]...)
	s.cart.Totals = pricing.EstimateTotals(s.cart.Items, prev.Totals)
	s.mu.Unlock()

	if err := s.api.RemoveItem(ctx, lineID); err != nil {
		s.rollback(prev, "remove item", err)
		return fmt.Errorf("remove item: %w", err)
	}
	return s.Refresh(ctx, nil)
}

// Clear resets to the empty cart, restoring the full prior snapshot if
// the server call fails.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	prev := s.cart.Clone()
	s.cart = domain.Cart{}
	s.mu.Unlock()

	if err := s.api.Clear(ctx); err != nil {
		s.rollback(prev, "clear cart", err)
		return fmt.Errorf("clear cart: %w", err)
	}
	return s.Refresh(ctx, nil)
}

// ApplyCoupon is not optimistic: eligibility is a server-owned rule, so
// it waits for the round trip and refetches on success. An ineligible
// coupon with a determinable minimum-order threshold surfaces the
// shortfall so the UI can prompt for the difference.
func (s *Store) ApplyCoupon(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrEmptyCouponCode
	}

	if err := s.api.ApplyCoupon(ctx, code); err != nil {
		var apiErr *gateway.APIError
		if errors.As(err, &apiErr) {
			if min, ok := apiErr.MinOrder(); ok {
				s.mu.Lock()
				subtotal := s.cart.Totals.ItemsSubtotal
				s.mu.Unlock()
				if shortfall := min.Sub(subtotal); shortfall.IsPositive() {
					return &ShortfallError{
						Code:          code,
						MinOrderValue: min,
						Shortfall:     shortfall,
						Message:       apiErr.Message,
					}
				}
			}
		}
		return fmt.Errorf("apply coupon: %w", err)
	}
	return s.Refresh(ctx, nil)
}

// RemoveCoupon detaches the active coupon and refetches.
func (s *Store) RemoveCoupon(ctx context.Context) error {
	if err := s.api.RemoveCoupon(ctx); err != nil {
		return fmt.Errorf("remove coupon: %w", err)
	}
	return s.Refresh(ctx, nil)
}

// ResetLocal empties the mirror without a server call. Used after a
// successful order, where the server has already consumed the cart.
func (s *Store) ResetLocal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = domain.Cart{}
}

func (s *Store) rollback(prev domain.Cart, op string, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = prev
	s.log.Warn("rolled back optimistic cart mutation",
		zap.String("op", op), zap.Error(cause))
}

func indexOfProduct(items []domain.CartItem, productID, variant string) int {
	for i, it := range items {
		if it.ProductID == productID && it.Variant == variant {
			return i
		}
	}
	return -1
}

func indexOfLine(items []domain.CartItem, lineID string) int {
	for i, it := range items {
		if it.LineID == lineID {
			return i
		}
	}
	return -1
}
