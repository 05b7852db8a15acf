// Package checkout drives the order-commit protocol. For online
// payments a gateway transaction is opened before any order exists and
// the order is only persisted after the gateway confirms payment, so
// money never moves without an order except for the one acknowledged
// orphan case, which is surfaced and never retried.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mealkart/storefront/internal/domain"
	"github.com/mealkart/storefront/internal/gateway"
	"github.com/mealkart/storefront/internal/payment"
	"github.com/mealkart/storefront/internal/store"
)

var (
	ErrCheckoutInFlight = errors.New("checkout already in progress")
	ErrNoAddress        = errors.New("no delivery address selected")
	ErrEmptyCart        = errors.New("cart is empty, nothing to checkout")
	ErrPaymentCancelled = errors.New("payment cancelled or failed")
)

// OrphanedPaymentError is the one state the protocol cannot recover
// locally: the gateway captured payment but the order record failed to
// persist. Retrying the confirmation without idempotency keys could
// double-create, so it is surfaced for support instead.
type OrphanedPaymentError struct {
	GatewayOrderID string
	PaymentID      string
	Err            error
}

func (e *OrphanedPaymentError) Error() string {
	return fmt.Sprintf("payment %s was received but creating the order failed: %v; contact support, do not pay again",
		e.PaymentID, e.Err)
}

func (e *OrphanedPaymentError) Unwrap() error { return e.Err }

type PlaceOrderRequest struct {
	AddressID string
	Method    domain.PaymentMethod
	Contact   payment.Contact
}

type Result struct {
	OrderID string
	Status  Status
}

// Orchestrator runs one checkout attempt at a time. The in-flight guard
// covers the whole branch, payment modal included, so repeated taps on
// the call-to-action cannot double-submit.
type Orchestrator struct {
	store    *store.Store
	orders   gateway.OrderAPI
	payments *payment.Adapter
	log      *zap.Logger

	inFlight atomic.Bool
	mu       sync.Mutex
	status   Status
}

func New(st *store.Store, orders gateway.OrderAPI, payments *payment.Adapter, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:    st,
		orders:   orders,
		payments: payments,
		log:      log,
		status:   StatusIdle,
	}
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// PlaceOrder validates, then runs the branch for the requested payment
// method to a terminal status.
func (o *Orchestrator) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Result, error) {
	if !o.inFlight.CompareAndSwap(false, true) {
		return nil, ErrCheckoutInFlight
	}
	defer o.inFlight.Store(false)

	if strings.TrimSpace(req.AddressID) == "" {
		return nil, ErrNoAddress
	}

	snap := o.store.Snapshot()
	if len(snap.Items) == 0 {
		return nil, ErrEmptyCart
	}

	o.setStatus(StatusIdle)
	draft := draftFrom(snap, req)
	log := o.log.With(zap.String("client_request_id", draft.ClientRequestID),
		zap.String("payment_method", string(req.Method)))

	switch req.Method {
	case domain.PaymentCOD:
		return o.placeCOD(ctx, draft, log)
	case domain.PaymentOnline:
		return o.placeOnline(ctx, draft, req.Contact, log)
	default:
		return nil, fmt.Errorf("unsupported payment method %q", req.Method)
	}
}

func (o *Orchestrator) placeCOD(ctx context.Context, draft domain.OrderDraft, log *zap.Logger) (*Result, error) {
	o.transition(StatusPlacing)

	orderID, err := o.orders.PlaceOrder(ctx, draft)
	if err != nil {
		o.transition(StatusFailed)
		return nil, fmt.Errorf("place order: %w", err)
	}

	o.store.ResetLocal()
	o.transition(StatusSucceeded)
	log.Info("order placed", zap.String("order_id", orderID))
	return &Result{OrderID: orderID, Status: StatusSucceeded}, nil
}

func (o *Orchestrator) placeOnline(ctx context.Context, draft domain.OrderDraft, contact payment.Contact, log *zap.Logger) (*Result, error) {
	o.transition(StatusAwaitingGatewayOrder)

	// No persisted order exists yet: money cannot be taken against an
	// order that doesn't exist, and no order is created until it moves.
	po, err := o.orders.CreatePaymentOrder(ctx, draft)
	if err != nil {
		o.transition(StatusFailed)
		return nil, fmt.Errorf("create payment order: %w", err)
	}

	o.transition(StatusAwaitingPayment)
	outcome := o.payments.Collect(ctx, payment.CollectRequest{
		GatewayOrderID: po.GatewayOrderID,
		AmountMinor:    po.AmountMinor,
		Currency:       po.Currency,
		Contact:        contact,
	})
	if outcome.Kind != payment.OutcomeSuccess {
		o.transition(StatusPaymentFailed)
		log.Info("payment not completed", zap.String("reason", outcome.Reason))
		return nil, fmt.Errorf("%w: %s", ErrPaymentCancelled, outcome.Reason)
	}

	o.transition(StatusConfirming)
	draft.Payment = &domain.PaymentConfirmation{
		GatewayOrderID: outcome.GatewayOrderID,
		PaymentID:      outcome.PaymentID,
		Signature:      outcome.Signature,
	}

	orderID, err := o.orders.PlaceOrder(ctx, draft)
	if err != nil {
		// Cart is deliberately left intact so nothing is lost while
		// support resolves the captured payment.
		o.transition(StatusPaymentOrphaned)
		log.Error("order creation failed after captured payment",
			zap.String("gateway_order_id", outcome.GatewayOrderID),
			zap.String("payment_id", outcome.PaymentID),
			zap.Error(err))
		return nil, &OrphanedPaymentError{
			GatewayOrderID: outcome.GatewayOrderID,
			PaymentID:      outcome.PaymentID,
			Err:            err,
		}
	}

	o.store.ResetLocal()
	o.transition(StatusSucceeded)
	log.Info("order placed", zap.String("order_id", orderID))
	return &Result{OrderID: orderID, Status: StatusSucceeded}, nil
}

func (o *Orchestrator) setStatus(s Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status = s
}

func (o *Orchestrator) transition(to Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !CanTransitionTo(o.status, to) {
		// Flows in this file are linear; hitting this means a branch bug.
		o.log.Warn("illegal checkout transition",
			zap.String("from", o.status.String()), zap.String("to", to.String()))
	}
	o.status = to
}

func draftFrom(snap domain.Cart, req PlaceOrderRequest) domain.OrderDraft {
	draft := domain.OrderDraft{
		ClientRequestID: uuid.NewString(),
		Totals:          snap.Totals,
		AddressID:       req.AddressID,
		Method:          req.Method,
	}
	for _, it := range snap.Items {
		draft.Lines = append(draft.Lines, domain.OrderLine{
			ProductID: it.ProductID,
			Variant:   it.Variant,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return draft
}
