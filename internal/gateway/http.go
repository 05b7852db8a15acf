package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/mealkart/storefront/internal/domain"
)

// Client talks JSON over REST to the storefront server. A circuit
// breaker guards against hammering a server that is already failing;
// 4xx rejections and missing authentication do not count against it.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	log     *zap.Logger
}

func NewClient(baseURL string, log *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name: "storefront-api",
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
			IsSuccessful: func(err error) bool {
				if err == nil || errors.Is(err, ErrUnauthenticated) {
					return true
				}
				var apiErr *APIError
				return errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError
			},
		}),
		log: log,
	}
}

type cartResponse struct {
	Items []struct {
		LineID    string             `json:"line_id"`
		ProductID string             `json:"product_id"`
		Name      string             `json:"name"`
		UnitPrice decimal.Decimal    `json:"unit_price"`
		Quantity  int                `json:"quantity"`
		Variant   string             `json:"variant"`
		ImageURL  string             `json:"image_url"`
		Type      domain.ProductType `json:"product_type"`
	} `json:"items"`
	Bill struct {
		ItemsSubtotal  decimal.Decimal       `json:"items_subtotal"`
		TaxAmount      decimal.Decimal       `json:"tax_amount"`
		TaxBreakdown   []domain.TaxComponent `json:"tax_breakdown"`
		DeliveryFee    decimal.Decimal       `json:"delivery_fee"`
		DiscountAmount decimal.Decimal       `json:"discount_amount"`
		FinalTotal     decimal.Decimal       `json:"final_total"`
	} `json:"bill"`
	Coupon *domain.AppliedCoupon `json:"coupon"`
}

func (c *Client) FetchCart(ctx context.Context, loc *domain.DeliveryLocation) (*domain.Cart, error) {
	path := "/api/v1/cart"
	if loc != nil {
		q := url.Values{}
		q.Set("lat", strconv.FormatFloat(loc.Lat, 'f', -1, 64))
		q.Set("lng", strconv.FormatFloat(loc.Lng, 'f', -1, 64))
		path += "?" + q.Encode()
	}

	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var resp cartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode cart response: %w", err)
	}

	cart := &domain.Cart{
		Totals: domain.CartTotals{
			ItemsSubtotal:  resp.Bill.ItemsSubtotal,
			TaxAmount:      resp.Bill.TaxAmount,
			TaxBreakdown:   resp.Bill.TaxBreakdown,
			DeliveryFee:    resp.Bill.DeliveryFee,
			DiscountAmount: resp.Bill.DiscountAmount,
			FinalTotal:     resp.Bill.FinalTotal,
		},
		Coupon: resp.Coupon,
	}
	for _, it := range resp.Items {
		cart.Items = append(cart.Items, domain.CartItem{
			LineID:    it.LineID,
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			Variant:   it.Variant,
			ImageURL:  it.ImageURL,
			Type:      it.Type,
		})
	}
	return cart, nil
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Variant   string `json:"variant,omitempty"`
	Quantity  int    `json:"quantity"`
}

func (c *Client) AddItem(ctx context.Context, productID, variant string, quantity int) error {
	_, err := c.do(ctx, http.MethodPost, "/api/v1/cart/items", addItemRequest{
		ProductID: productID,
		Variant:   variant,
		Quantity:  quantity,
	})
	return err
}

func (c *Client) UpdateQuantity(ctx context.Context, lineID string, quantity int) error {
	_, err := c.do(ctx, http.MethodPut, "/api/v1/cart/items/"+url.PathEscape(lineID),
		struct {
			Quantity int `json:"quantity"`
		}{quantity})
	return err
}

func (c *Client) RemoveItem(ctx context.Context, lineID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/v1/cart/items/"+url.PathEscape(lineID), nil)
	return err
}

func (c *Client) Clear(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/v1/cart", nil)
	return err
}

func (c *Client) ApplyCoupon(ctx context.Context, code string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/v1/cart/coupon",
		struct {
			Code string `json:"code"`
		}{code})
	return err
}

func (c *Client) RemoveCoupon(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/v1/cart/coupon", nil)
	return err
}

func (c *Client) ListCoupons(ctx context.Context) ([]domain.Coupon, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/coupons", nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Coupons []domain.Coupon `json:"coupons"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode coupons response: %w", err)
	}
	return resp.Coupons, nil
}

func (c *Client) CreatePaymentOrder(ctx context.Context, draft domain.OrderDraft) (*PaymentOrder, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/v1/payments/order", draft)
	if err != nil {
		return nil, err
	}
	var po PaymentOrder
	if err := json.Unmarshal(body, &po); err != nil {
		return nil, fmt.Errorf("decode payment order response: %w", err)
	}
	return &po, nil
}

func (c *Client) PlaceOrder(ctx context.Context, draft domain.OrderDraft) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/v1/orders", draft)
	if err != nil {
		return "", err
	}
	var resp struct {
		OrderID string `json:"order_id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode order response: %w", err)
	}
	return resp.OrderID, nil
}

type errorBody struct {
	Error         string           `json:"error"`
	Code          string           `json:"code"`
	MinOrderValue *decimal.Decimal `json:"min_order_value"`
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	return c.breaker.Execute(func() ([]byte, error) {
		var reqBody io.Reader
		if payload != nil {
			data, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("marshal request: %w", err)
			}
			reqBody = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("call %s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthenticated
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, c.decodeError(resp.StatusCode, body)
		}
		return body, nil
	})
}

func (c *Client) decodeError(status int, body []byte) error {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || eb.Error == "" {
		c.log.Debug("unparseable error body", zap.Int("status", status), zap.ByteString("body", body))
		return &APIError{Status: status, Message: strings.TrimSpace(string(body))}
	}
	return &APIError{
		Status:        status,
		Code:          eb.Code,
		Message:       eb.Error,
		MinOrderValue: eb.MinOrderValue,
	}
}
