package domain

import "github.com/shopspring/decimal"

type ProductType string

const (
	ProductTypeVeg    ProductType = "veg"
	ProductTypeNonVeg ProductType = "non-veg"
)

// Product is a catalog entry as the menu presents it. The catalog itself
// is owned by the server; this is only what a cart mutation needs.
type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Variant   string          `json:"variant,omitempty"`
	ImageURL  string          `json:"image_url,omitempty"`
	Type      ProductType     `json:"product_type,omitempty"`
}

// CartItem is one product(+variant) line in the cart. LineID is assigned
// by the server and stays empty until the first authoritative refetch
// confirms the line.
type CartItem struct {
	LineID    string          `json:"line_id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Variant   string          `json:"variant,omitempty"`
	ImageURL  string          `json:"image_url,omitempty"`
	Type      ProductType     `json:"product_type,omitempty"`
}

// LineTotal is unit price times quantity for this line.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type TaxComponent struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// CartTotals is the computed bill. ItemsSubtotal is always recomputed
// locally from the item lines; every other figure is server-owned and
// only approximated between refetches.
type CartTotals struct {
	ItemsSubtotal  decimal.Decimal `json:"items_subtotal"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	TaxBreakdown   []TaxComponent  `json:"tax_breakdown,omitempty"`
	DeliveryFee    decimal.Decimal `json:"delivery_fee"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalTotal     decimal.Decimal `json:"final_total"`
}

// AppliedCoupon is the at-most-one discount attached to the cart.
type AppliedCoupon struct {
	Code           string           `json:"code"`
	DiscountAmount decimal.Decimal  `json:"discount_amount"`
	MinOrderValue  *decimal.Decimal `json:"min_order_value,omitempty"`
}

// DeliveryLocation prices the delivery fee on bill requests. It is
// supplied by the address-selection flow and retained by the store.
type DeliveryLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Cart struct {
	Items  []CartItem     `json:"items"`
	Totals CartTotals     `json:"totals"`
	Coupon *AppliedCoupon `json:"coupon,omitempty"`
}

// Clone returns a deep copy, used for optimistic-mutation snapshots.
func (c *Cart) Clone() Cart {
	out := Cart{Totals: c.Totals}
	if c.Items != nil {
		out.Items = make([]CartItem, len(c.Items))
		copy(out.Items, c.Items)
	}
	if c.Totals.TaxBreakdown != nil {
		out.Totals.TaxBreakdown = make([]TaxComponent, len(c.Totals.TaxBreakdown))
		copy(out.Totals.TaxBreakdown, c.Totals.TaxBreakdown)
	}
	if c.Coupon != nil {
		cp := *c.Coupon
		if c.Coupon.MinOrderValue != nil {
			mv := *c.Coupon.MinOrderValue
			cp.MinOrderValue = &mv
		}
		out.Coupon = &cp
	}
	return out
}
