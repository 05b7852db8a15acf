package domain

import "github.com/shopspring/decimal"

type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "COD"
	PaymentOnline PaymentMethod = "ONLINE"
)

type OrderLine struct {
	ProductID string          `json:"product_id"`
	Variant   string          `json:"variant,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// PaymentConfirmation carries the gateway-issued identifiers proving a
// captured online payment. The server verifies the signature before
// persisting the order.
type PaymentConfirmation struct {
	GatewayOrderID string `json:"gateway_order_id"`
	PaymentID      string `json:"payment_id"`
	Signature      string `json:"signature"`
}

// OrderDraft is the write-only payload submitted to the order API.
// Payment is nil for cash-on-delivery.
type OrderDraft struct {
	ClientRequestID string               `json:"client_request_id"`
	Lines           []OrderLine          `json:"lines"`
	Totals          CartTotals           `json:"totals"`
	AddressID       string               `json:"address_id"`
	Method          PaymentMethod        `json:"payment_method"`
	Payment         *PaymentConfirmation `json:"payment,omitempty"`
}
