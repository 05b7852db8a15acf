package checkout

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mealkart/storefront/internal/domain"
	"github.com/mealkart/storefront/internal/gateway"
	"github.com/mealkart/storefront/internal/payment"
	"github.com/mealkart/storefront/internal/store"
)

// stubCartAPI serves a fixed cart; checkout never mutates through it.
type stubCartAPI struct {
	cart domain.Cart
}

func (s *stubCartAPI) FetchCart(context.Context, *domain.DeliveryLocation) (*domain.Cart, error) {
	c := s.cart.Clone()
	return &c, nil
}
func (s *stubCartAPI) AddItem(context.Context, string, string, int) error { return nil }
func (s *stubCartAPI) UpdateQuantity(context.Context, string, int) error  { return nil }
func (s *stubCartAPI) RemoveItem(context.Context, string) error           { return nil }
func (s *stubCartAPI) Clear(context.Context) error                        { return nil }
func (s *stubCartAPI) ApplyCoupon(context.Context, string) error          { return nil }
func (s *stubCartAPI) RemoveCoupon(context.Context) error                 { return nil }

type mockOrderAPI struct {
	m sync.Mutex

	paymentOrderErr error
	placeErr        error
	blockPlace      chan struct{} // when set, PlaceOrder waits until closed
	placeStarted    chan struct{} // closed once PlaceOrder has been entered
	startOnce       sync.Once

	paymentOrderCalls int
	placeCalls        int
	lastDraft         domain.OrderDraft
}

func (m *mockOrderAPI) CreatePaymentOrder(_ context.Context, draft domain.OrderDraft) (*gateway.PaymentOrder, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.paymentOrderCalls++
	if m.paymentOrderErr != nil {
		return nil, m.paymentOrderErr
	}
	return &gateway.PaymentOrder{
		GatewayOrderID: "rzp-1",
		AmountMinor:    draft.Totals.FinalTotal.Mul(decimal.NewFromInt(100)).IntPart(),
		Currency:       "INR",
	}, nil
}

func (m *mockOrderAPI) PlaceOrder(_ context.Context, draft domain.OrderDraft) (string, error) {
	m.m.Lock()
	block := m.blockPlace
	started := m.placeStarted
	m.m.Unlock()
	if started != nil {
		m.startOnce.Do(func() { close(started) })
	}
	if block != nil {
		<-block
	}

	m.m.Lock()
	defer m.m.Unlock()
	m.placeCalls++
	m.lastDraft = draft
	if m.placeErr != nil {
		return "", m.placeErr
	}
	return "ord-42", nil
}

// scriptedWidget confirms or dismisses every opened payment.
type scriptedWidget struct {
	confirm   bool
	openCalls int
	m         sync.Mutex
}

func (w *scriptedWidget) Load(context.Context) error { return nil }

func (w *scriptedWidget) Open(opts payment.OpenOptions) error {
	w.m.Lock()
	w.openCalls++
	w.m.Unlock()
	go func() {
		if w.confirm {
			opts.OnSuccess(opts.GatewayOrderID, "pay-7", "sig-7")
		} else {
			opts.OnDismiss("user closed modal")
		}
	}()
	return nil
}

func testCart() domain.Cart {
	subtotal := decimal.NewFromInt(500)
	return domain.Cart{
		Items: []domain.CartItem{
			{LineID: "l1", ProductID: "p1", Name: "Butter Naan", UnitPrice: decimal.NewFromInt(50), Quantity: 4},
			{LineID: "l2", ProductID: "p2", Name: "Dal Makhani", UnitPrice: decimal.NewFromInt(300), Quantity: 1},
		},
		Totals: domain.CartTotals{
			ItemsSubtotal: subtotal,
			TaxAmount:     decimal.NewFromInt(25),
			DeliveryFee:   decimal.NewFromInt(40),
			FinalTotal:    decimal.NewFromInt(565),
		},
	}
}

func newTestOrchestrator(t *testing.T, orders *mockOrderAPI, widget payment.Widget) (*Orchestrator, *store.Store) {
	t.Helper()
	st := store.New(&stubCartAPI{cart: testCart()}, zap.NewNop())
	require.NoError(t, st.Refresh(context.Background(), nil))
	adapter := payment.NewAdapter(widget, zap.NewNop())
	return New(st, orders, adapter, zap.NewNop()), st
}

func TestPlaceOrder_CODSuccess(t *testing.T) {
	orders := &mockOrderAPI{}
	sut, st := newTestOrchestrator(t, orders, &scriptedWidget{})

	res, err := sut.PlaceOrder(context.Background(), PlaceOrderRequest{
		AddressID: "addr-1",
		Method:    domain.PaymentCOD,
	})
	require.NoError(t, err)
	assert.Equal(t, "ord-42", res.OrderID)
	assert.Equal(t, StatusSucceeded, sut.Status())

	assert.Empty(t, st.Snapshot().Items, "cart clears after a successful order")
	assert.Equal(t, 0, orders.paymentOrderCalls, "COD never opens a gateway transaction")
	require.Len(t, orders.lastDraft.Lines, 2)
	assert.Nil(t, orders.lastDraft.Payment)
	assert.NotEmpty(t, orders.lastDraft.ClientRequestID)
}

func TestPlaceOrder_CODServerFailure(t *testing.T) {
	orders := &mockOrderAPI{placeErr: fmt.Errorf("orders table locked")}
	sut, st := newTestOrchestrator(t, orders, &scriptedWidget{})

	_, err := sut.PlaceOrder(context.Background(), PlaceOrderRequest{
		AddressID: "addr-1",
		Method:    domain.PaymentCOD,
	})
	require.ErrorContains(t, err, "orders table locked")
	assert.Equal(t, StatusFailed, sut.Status())
	assert.Len(t, st.Snapshot().Items, 2, "failed COD leaves the cart untouched")
}

func TestPlaceOrder_NoAddressFailsBeforeNetwork(t *testing.T) {
	orders := &mockOrderAPI{}
	sut, _ := newTestOrchestrator(t, orders, &scriptedWidget{})

	_, err := sut.PlaceOrder(context.Background(), PlaceOrderRequest{
		AddressID: "  ",
		Method:    domain.PaymentCOD,
	})
	assert.ErrorIs(t, err, ErrNoAddress)
	assert.Equal(t, 0, orders.placeCalls)
	assert.Equal(t, 0, orders.paymentOrderCalls)
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	orders := &mockOrderAPI{}
	st := store.New(&stubCartAPI{}, zap.NewNop())
	sut := New(st, orders, payment.NewAdapter(&scriptedWidget{}, zap.NewNop()), zap.NewNop())

	_, err := sut.PlaceOrder(context.Background(), PlaceOrderRequest{
		AddressID: "addr-1",
		Method:    domain.PaymentCOD,
	})
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestPlaceOrder_OnlineSuccess(t *testing.T) {
	orders := &mockOrderAPI{}
	widget := &scriptedWidget{confirm: true}
	sut, st := newTestOrchestrator(t, orders, widget)

	res, err := sut.PlaceOrder(context.Background(), PlaceOrderRequest{
		AddressID: "addr-1",
		Method:    domain.PaymentOnline,
		Contact:   payment.Contact{Name: "Asha", Phone: "9999999999"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ord-42", res.OrderID)
	assert.Equal(t, StatusSucceeded, sut.Status())

	assert.Equal(t, 1, orders.paymentOrderCalls)
	assert.Equal(t, 1, orders.placeCalls, "exactly one order per confirmed payment")
	require.NotNil(t, orders.lastDraft.Payment)
	assert.Equal(t, "rzp-1", orders.lastDraft.Payment.GatewayOrderID)
	assert.Equal(t, "pay-7", orders.lastDraft.Payment.PaymentID)
	assert.Equal(t, "sig-7", orders.lastDraft.Payment.Signature)
	assert.Empty(t, st.Snapshot().Items)
}

func TestPlaceOrder_OnlineNoOrderBeforePaymentConfirm(t *testing.T) {
	orders := &mockOrderAPI{}
	widget := &scriptedWidget{confirm: false}
	sut, st := newTestOrchestrator(t, orders, widget)

	_, err := sut.PlaceOrder(context.Background(), PlaceOrderRequest{
		AddressID: "addr-1",
		Method:    domain.PaymentOnline,
	})
	require.ErrorIs(t, err, ErrPaymentCancelled)
	assert.Equal(t, StatusPaymentFailed, sut.Status())
	assert.Equal(t, 0, orders.placeCalls, "no order may exist without payment confirmation")
	assert.Len(t, st.Snapshot().Items, 2)
}

func TestPlaceOrder_PaymentOrderCreationFails(t *testing.T) {
	orders := &mockOrderAPI{paymentOrderErr: fmt.Errorf("gateway down")}
	widget := &scriptedWidget{confirm: true}
	sut, _ := newTestOrchestrator(t, orders, widget)

	_, err := sut.PlaceOrder(context.Background(), PlaceOrderRequest{
		AddressID: "addr-1",
		Method:    domain.PaymentOnline,
	})
	require.ErrorContains(t, err, "gateway down")
	assert.Equal(t, StatusFailed, sut.Status())
	assert.Equal(t, 0, widget.openCalls, "modal must not open without a gateway order")
}

func TestPlaceOrder_OrphanedPayment(t *testing.T) {
	orders := &mockOrderAPI{placeErr: fmt.Errorf("connection reset")}
	widget := &scriptedWidget{confirm: true}
	sut, st := newTestOrchestrator(t, orders, widget)
	itemsBefore := st.Snapshot().Items

	_, err := sut.PlaceOrder(context.Background(), PlaceOrderRequest{
		AddressID: "addr-1",
		Method:    domain.PaymentOnline,
	})

	var orphan *OrphanedPaymentError
	require.ErrorAs(t, err, &orphan)
	assert.Equal(t, "pay-7", orphan.PaymentID)
	assert.Equal(t, "rzp-1", orphan.GatewayOrderID)
	assert.Contains(t, orphan.Error(), "contact support")

	assert.Equal(t, StatusPaymentOrphaned, sut.Status())
	assert.Equal(t, 1, orders.placeCalls, "confirmation is never retried automatically")
	assert.Equal(t, itemsBefore, st.Snapshot().Items, "cart is preserved for support recovery")
}

func TestPlaceOrder_InFlightGuard(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	orders := &mockOrderAPI{blockPlace: block, placeStarted: started}
	sut, _ := newTestOrchestrator(t, orders, &scriptedWidget{})

	firstDone := make(chan error, 1)
	go func() {
		_, err := sut.PlaceOrder(context.Background(), PlaceOrderRequest{
			AddressID: "addr-1",
			Method:    domain.PaymentCOD,
		})
		firstDone <- err
	}()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first attempt never reached the order API")
	}

	_, err := sut.PlaceOrder(context.Background(), PlaceOrderRequest{
		AddressID: "addr-1",
		Method:    domain.PaymentCOD,
	})
	assert.ErrorIs(t, err, ErrCheckoutInFlight)

	close(block)
	require.NoError(t, <-firstDone)
}

func TestPlaceOrder_UnsupportedMethod(t *testing.T) {
	sut, _ := newTestOrchestrator(t, &mockOrderAPI{}, &scriptedWidget{})
	_, err := sut.PlaceOrder(context.Background(), PlaceOrderRequest{
		AddressID: "addr-1",
		Method:    domain.PaymentMethod("CHEQUE"),
	})
	require.ErrorContains(t, err, "unsupported payment method")
}
