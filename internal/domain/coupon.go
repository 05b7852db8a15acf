package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	// DiscountPercent discounts a percentage of the subtotal.
	DiscountPercent DiscountType = "percent"
	// DiscountFlat discounts a fixed amount.
	DiscountFlat DiscountType = "flat"
)

// Coupon is a catalog entry. Value is percentage points for percent
// coupons and a currency amount for flat ones.
type Coupon struct {
	Code          string           `json:"code"`
	Type          DiscountType     `json:"type"`
	Value         decimal.Decimal  `json:"value"`
	MinOrderValue *decimal.Decimal `json:"min_order_value,omitempty"`
	Description   string           `json:"description,omitempty"`
	Active        bool             `json:"active"`
	ValidUntil    time.Time        `json:"valid_until,omitzero"`
}

// Expired reports whether the coupon is inactive or its validity window
// has elapsed. A zero ValidUntil means no expiry.
func (c Coupon) Expired(now time.Time) bool {
	if !c.Active {
		return true
	}
	return !c.ValidUntil.IsZero() && now.After(c.ValidUntil)
}
