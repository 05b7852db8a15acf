// Package pricing computes the optimistic bill shown between a local
// cart mutation and the next authoritative refetch. It is an
// approximation bridge, not a tax authority: whatever it produces is
// superseded by the server bill.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/mealkart/storefront/internal/domain"
)

// fallbackTaxRate applies when there is no previous bill to derive an
// effective rate from (first item added to an empty cart).
var fallbackTaxRate = decimal.NewFromFloat(0.04)

// Subtotal sums unit price times quantity over all lines.
func Subtotal(items []domain.CartItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

// EstimateTotals derives an approximate bill for a candidate item set
// from the previous authoritative totals: the subtotal is exact, the
// tax reuses the previous effective rate, the delivery fee carries over
// (zeroed when the cart empties) and the discount is clamped to the new
// subtotal.
func EstimateTotals(items []domain.CartItem, prev domain.CartTotals) domain.CartTotals {
	subtotal := Subtotal(items)

	rate := fallbackTaxRate
	if prev.ItemsSubtotal.IsPositive() {
		rate = prev.TaxAmount.Div(prev.ItemsSubtotal)
	}
	tax := subtotal.Mul(rate).Round(2)

	delivery := prev.DeliveryFee
	if len(items) == 0 {
		delivery = decimal.Zero
	}

	discount := prev.DiscountAmount
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}

	return domain.CartTotals{
		ItemsSubtotal:  subtotal,
		TaxAmount:      tax,
		DeliveryFee:    delivery,
		DiscountAmount: discount,
		FinalTotal:     subtotal.Add(tax).Add(delivery).Sub(discount),
	}
}
