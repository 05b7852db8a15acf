package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var ErrNoPendingPayment = errors.New("no pending payment for gateway order")

// CallbackWidget is the server-side rendition of the hosted modal: the
// modal itself runs on the buyer's device, and the gateway reports the
// result back over HTTP. Open registers the attempt; the confirm and
// dismiss endpoints complete it.
type CallbackWidget struct {
	mu      sync.Mutex
	pending map[string]OpenOptions
}

func NewCallbackWidget() *CallbackWidget {
	return &CallbackWidget{pending: make(map[string]OpenOptions)}
}

func (w *CallbackWidget) Load(context.Context) error {
	return nil
}

func (w *CallbackWidget) Open(opts OpenOptions) error {
	if opts.GatewayOrderID == "" {
		return fmt.Errorf("open payment: missing gateway order id")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[opts.GatewayOrderID] = opts
	return nil
}

// Confirm completes a pending attempt with the gateway's identifiers.
func (w *CallbackWidget) Confirm(gatewayOrderID, paymentID, signature string) error {
	opts, err := w.take(gatewayOrderID)
	if err != nil {
		return err
	}
	opts.OnSuccess(gatewayOrderID, paymentID, signature)
	return nil
}

// Dismiss completes a pending attempt as cancelled or failed.
func (w *CallbackWidget) Dismiss(gatewayOrderID, reason string) error {
	opts, err := w.take(gatewayOrderID)
	if err != nil {
		return err
	}
	opts.OnDismiss(reason)
	return nil
}

func (w *CallbackWidget) take(gatewayOrderID string) (OpenOptions, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	opts, ok := w.pending[gatewayOrderID]
	if !ok {
		return OpenOptions{}, fmt.Errorf("%w: %s", ErrNoPendingPayment, gatewayOrderID)
	}
	delete(w.pending, gatewayOrderID)
	return opts, nil
}
