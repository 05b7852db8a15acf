// Package payment bridges the hosted checkout widget's callback
// lifecycle into a single blocking call with one tagged outcome, so the
// checkout flow reads top to bottom instead of threading closures.
package payment

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type OutcomeKind int

const (
	// OutcomeSuccess carries the gateway identifiers proving payment.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeCancelled means the buyer dismissed the modal or the
	// widget reported a payment failure. Nothing was committed.
	OutcomeCancelled
	// OutcomeLoadFailed means the widget itself never became usable.
	OutcomeLoadFailed
)

type Outcome struct {
	Kind           OutcomeKind
	GatewayOrderID string
	PaymentID      string
	Signature      string
	Reason         string
}

// Contact prefills the modal's buyer fields.
type Contact struct {
	Name  string
	Email string
	Phone string
}

// CollectRequest configures one payment attempt. Amount is in minor
// currency units, as the gateway requires.
type CollectRequest struct {
	GatewayOrderID string
	AmountMinor    int64
	Currency       string
	Contact        Contact
}

// OpenOptions is what the widget sees: the collect parameters plus the
// completion callbacks. Exactly one callback fires per attempt.
type OpenOptions struct {
	CollectRequest
	OnSuccess func(gatewayOrderID, paymentID, signature string)
	OnDismiss func(reason string)
}

// Widget is the externally hosted checkout surface. Load fetches the
// vendor resource; Open shows the modal and returns immediately,
// reporting the result through the OpenOptions callbacks.
type Widget interface {
	Load(ctx context.Context) error
	Open(opts OpenOptions) error
}

// Adapter owns widget lifecycle. The vendor resource is loaded lazily
// and reused across attempts.
type Adapter struct {
	widget Widget
	log    *zap.Logger

	mu     sync.Mutex
	loaded bool
}

func NewAdapter(widget Widget, log *zap.Logger) *Adapter {
	return &Adapter{widget: widget, log: log}
}

// EnsureLoaded loads the widget resource once and reports whether it is
// usable. It never returns an error; a failed load is retried on the
// next attempt.
func (a *Adapter) EnsureLoaded(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.loaded {
		return true
	}
	if err := a.widget.Load(ctx); err != nil {
		a.log.Warn("checkout widget load failed", zap.Error(err))
		return false
	}
	a.loaded = true
	return true
}

// Collect opens the payment modal and blocks until the widget reports
// success or dismissal, or ctx ends. The first callback to fire wins;
// any duplicate is ignored.
func (a *Adapter) Collect(ctx context.Context, req CollectRequest) Outcome {
	if !a.EnsureLoaded(ctx) {
		return Outcome{Kind: OutcomeLoadFailed, Reason: "checkout widget unavailable"}
	}

	done := make(chan Outcome, 1)
	var once sync.Once
	opts := OpenOptions{
		CollectRequest: req,
		OnSuccess: func(gatewayOrderID, paymentID, signature string) {
			once.Do(func() {
				done <- Outcome{
					Kind:           OutcomeSuccess,
					GatewayOrderID: gatewayOrderID,
					PaymentID:      paymentID,
					Signature:      signature,
				}
			})
		},
		OnDismiss: func(reason string) {
			once.Do(func() {
				done <- Outcome{Kind: OutcomeCancelled, Reason: reason}
			})
		},
	}

	if err := a.widget.Open(opts); err != nil {
		a.log.Warn("checkout widget open failed", zap.Error(err))
		return Outcome{Kind: OutcomeLoadFailed, Reason: err.Error()}
	}

	select {
	case out := <-done:
		return out
	case <-ctx.Done():
		return Outcome{Kind: OutcomeCancelled, Reason: ctx.Err().Error()}
	}
}
