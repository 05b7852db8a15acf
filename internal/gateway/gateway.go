// Package gateway defines the server collaborator contracts the
// storefront consumes, plus their HTTP implementation. The server owns
// all persistence and business rules; this side only mirrors.
package gateway

import (
	"context"

	"github.com/mealkart/storefront/internal/domain"
)

// CartAPI is the authoritative cart: reads return items together with
// the computed bill, mutations return no body and the caller refetches.
type CartAPI interface {
	FetchCart(ctx context.Context, loc *domain.DeliveryLocation) (*domain.Cart, error)
	AddItem(ctx context.Context, productID, variant string, quantity int) error
	UpdateQuantity(ctx context.Context, lineID string, quantity int) error
	RemoveItem(ctx context.Context, lineID string) error
	Clear(ctx context.Context) error
	ApplyCoupon(ctx context.Context, code string) error
	RemoveCoupon(ctx context.Context) error
}

// CouponAPI serves the coupon catalog.
type CouponAPI interface {
	ListCoupons(ctx context.Context) ([]domain.Coupon, error)
}

// PaymentOrder is a gateway-side transaction opened before any
// persisted order exists.
type PaymentOrder struct {
	GatewayOrderID string `json:"gateway_order_id"`
	AmountMinor    int64  `json:"amount_minor"`
	Currency       string `json:"currency"`
}

// OrderAPI opens payment-gateway transactions and persists finalized
// orders. PlaceOrder returns the new order's identifier.
type OrderAPI interface {
	CreatePaymentOrder(ctx context.Context, draft domain.OrderDraft) (*PaymentOrder, error)
	PlaceOrder(ctx context.Context, draft domain.OrderDraft) (string, error)
}
