// Package rest is the HTTP surface the storefront UI talks to. It is a
// thin skin: every handler delegates to the cart store, the coupon
// engine or the checkout orchestrator and maps their typed errors onto
// status codes.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mealkart/storefront/internal/checkout"
	"github.com/mealkart/storefront/internal/coupon"
	"github.com/mealkart/storefront/internal/domain"
	"github.com/mealkart/storefront/internal/gateway"
	"github.com/mealkart/storefront/internal/payment"
	"github.com/mealkart/storefront/internal/store"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Shortfall string `json:"shortfall,omitempty"`
}

type CartHandler struct {
	store   *store.Store
	log     *zap.Logger
	timeout time.Duration
}

func NewCartHandler(st *store.Store, log *zap.Logger, timeout time.Duration) *CartHandler {
	return &CartHandler{store: st, log: log, timeout: timeout}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Snapshot()
	respondJSON(w, http.StatusOK, snap)
}

type refreshRequestDTO struct {
	Location *domain.DeliveryLocation `json:"location"`
}

func (h *CartHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req refreshRequestDTO
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
	}

	if err := h.store.Refresh(ctx, req.Location); err != nil {
		h.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.store.Snapshot())
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req domain.Product
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product id is required")
		return
	}
	if req.UnitPrice.IsNegative() {
		respondError(w, http.StatusBadRequest, "invalid_price", "unit price must not be negative")
		return
	}

	if err := h.store.AddItem(ctx, req); err != nil {
		h.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, h.store.Snapshot())
}

func (h *CartHandler) IncrementItem(w http.ResponseWriter, r *http.Request) {
	h.lineOp(w, r, h.store.IncrementItem)
}

func (h *CartHandler) DecrementItem(w http.ResponseWriter, r *http.Request) {
	h.lineOp(w, r, h.store.DecrementItem)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.lineOp(w, r, h.store.RemoveItem)
}

func (h *CartHandler) lineOp(w http.ResponseWriter, r *http.Request, op func(context.Context, string) error) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	lineID := chi.URLParam(r, "line_id")
	if lineID == "" {
		respondError(w, http.StatusBadRequest, "invalid_line_id", "line id is required")
		return
	}

	if err := op(ctx, lineID); err != nil {
		h.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.store.Snapshot())
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.store.Clear(ctx); err != nil {
		h.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.store.Snapshot())
}

type applyCouponDTO struct {
	Code string `json:"code"`
}

func (h *CartHandler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req applyCouponDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := h.store.ApplyCoupon(ctx, req.Code); err != nil {
		h.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.store.Snapshot())
}

func (h *CartHandler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.store.RemoveCoupon(ctx); err != nil {
		h.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.store.Snapshot())
}

func (h *CartHandler) respondStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var shortfall *store.ShortfallError
	var apiErr *gateway.APIError

	switch {
	case errors.Is(err, store.ErrLineNotFound):
		respondError(w, http.StatusNotFound, "line_not_found", err.Error())
	case errors.Is(err, store.ErrEmptyCouponCode):
		respondError(w, http.StatusBadRequest, "empty_coupon_code", err.Error())
	case errors.As(err, &shortfall):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:     shortfall.Error(),
			Code:      "coupon_min_order",
			Shortfall: shortfall.Shortfall.String(),
		})
	case errors.As(err, &apiErr):
		respondError(w, apiErr.Status, apiErr.Code, apiErr.Message)
	default:
		h.log.Error("cart operation failed",
			zap.String("request_id", getRequestID(r.Context())), zap.Error(err))
		respondError(w, http.StatusBadGateway, "upstream_error", err.Error())
	}
}

type CouponHandler struct {
	engine  *coupon.Engine
	store   *store.Store
	log     *zap.Logger
	timeout time.Duration
}

func NewCouponHandler(engine *coupon.Engine, st *store.Store, log *zap.Logger, timeout time.Duration) *CouponHandler {
	return &CouponHandler{engine: engine, store: st, log: log, timeout: timeout}
}

type couponListDTO struct {
	Coupons  []domain.Coupon `json:"coupons"`
	Eligible []domain.Coupon `json:"eligible"`
	Best     *domain.Coupon  `json:"best,omitempty"`
}

func (h *CouponHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	catalog, err := h.engine.Catalog(ctx)
	if err != nil {
		h.log.Error("coupon catalog fetch failed",
			zap.String("request_id", getRequestID(r.Context())), zap.Error(err))
		respondError(w, http.StatusBadGateway, "upstream_error", err.Error())
		return
	}

	subtotal := h.store.Snapshot().Totals.ItemsSubtotal
	resp := couponListDTO{
		Coupons:  catalog,
		Eligible: h.engine.Eligible(catalog, subtotal),
	}
	if best, ok := h.engine.Best(catalog); ok {
		resp.Best = &best
	}
	respondJSON(w, http.StatusOK, resp)
}

type CheckoutHandler struct {
	orchestrator *checkout.Orchestrator
	widget       *payment.CallbackWidget
	log          *zap.Logger
	timeout      time.Duration
}

func NewCheckoutHandler(orc *checkout.Orchestrator, widget *payment.CallbackWidget, log *zap.Logger, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{orchestrator: orc, widget: widget, log: log, timeout: timeout}
}

type placeOrderDTO struct {
	AddressID string               `json:"address_id"`
	Method    domain.PaymentMethod `json:"payment_method"`
	Name      string               `json:"name"`
	Email     string               `json:"email"`
	Phone     string               `json:"phone"`
}

// PlaceOrder blocks for the whole commit protocol, payment modal
// included, which is why it runs on its own generous timeout.
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req placeOrderDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	res, err := h.orchestrator.PlaceOrder(ctx, checkout.PlaceOrderRequest{
		AddressID: req.AddressID,
		Method:    req.Method,
		Contact:   payment.Contact{Name: req.Name, Email: req.Email, Phone: req.Phone},
	})
	if err != nil {
		h.respondCheckoutError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

func (h *CheckoutHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": h.orchestrator.Status().String()})
}

type confirmPaymentDTO struct {
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

// ConfirmPayment is the gateway's success callback for a pending modal.
func (h *CheckoutHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	gatewayOrderID := chi.URLParam(r, "gateway_order_id")

	var req confirmPaymentDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.PaymentID == "" || req.Signature == "" {
		respondError(w, http.StatusBadRequest, "invalid_confirmation", "payment id and signature are required")
		return
	}

	if err := h.widget.Confirm(gatewayOrderID, req.PaymentID, req.Signature); err != nil {
		respondError(w, http.StatusNotFound, "no_pending_payment", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

type dismissPaymentDTO struct {
	Reason string `json:"reason"`
}

func (h *CheckoutHandler) DismissPayment(w http.ResponseWriter, r *http.Request) {
	gatewayOrderID := chi.URLParam(r, "gateway_order_id")

	var req dismissPaymentDTO
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "payment dismissed"
	}

	if err := h.widget.Dismiss(gatewayOrderID, req.Reason); err != nil {
		respondError(w, http.StatusNotFound, "no_pending_payment", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "dismissed"})
}

func (h *CheckoutHandler) respondCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	var orphan *checkout.OrphanedPaymentError

	switch {
	case errors.Is(err, checkout.ErrCheckoutInFlight):
		respondError(w, http.StatusConflict, "checkout_in_flight", err.Error())
	case errors.Is(err, checkout.ErrNoAddress):
		respondError(w, http.StatusBadRequest, "no_address", err.Error())
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", err.Error())
	case errors.Is(err, checkout.ErrPaymentCancelled):
		respondError(w, http.StatusPaymentRequired, "payment_cancelled", err.Error())
	case errors.As(err, &orphan):
		h.log.Error("orphaned payment",
			zap.String("request_id", getRequestID(r.Context())),
			zap.String("payment_id", orphan.PaymentID),
			zap.Error(err))
		respondError(w, http.StatusBadGateway, "payment_received_order_failed", err.Error())
	default:
		h.log.Error("checkout failed",
			zap.String("request_id", getRequestID(r.Context())), zap.Error(err))
		respondError(w, http.StatusBadGateway, "order_failed", err.Error())
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	if status == 0 {
		status = http.StatusBadGateway
	}
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}
