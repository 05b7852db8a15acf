package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter assembles the storefront API. Handlers carry their own
// timeouts because the checkout route may legitimately wait minutes for
// the payment modal.
func NewRouter(cart *CartHandler, coupons *CouponHandler, chk *CheckoutHandler) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cart.GetCart)
			r.Post("/refresh", cart.Refresh)
			r.Delete("/", cart.ClearCart)
			r.Post("/items", cart.AddItem)
			r.Post("/items/{line_id}/increment", cart.IncrementItem)
			r.Post("/items/{line_id}/decrement", cart.DecrementItem)
			r.Delete("/items/{line_id}", cart.RemoveItem)
			r.Post("/coupon", cart.ApplyCoupon)
			r.Delete("/coupon", cart.RemoveCoupon)
		})

		r.Get("/coupons", coupons.List)

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", chk.PlaceOrder)
			r.Get("/status", chk.Status)
			r.Post("/payment/{gateway_order_id}/confirm", chk.ConfirmPayment)
			r.Post("/payment/{gateway_order_id}/dismiss", chk.DismissPayment)
		})
	})

	return r
}
