package gateway

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

// ErrUnauthenticated marks the expected-absence case: no session, so no
// server cart. Callers treat it as "keep whatever you have", not a fault.
var ErrUnauthenticated = errors.New("not authenticated")

// APIError is a decoded server rejection. MinOrderValue is populated
// when the server sends a structured coupon-eligibility error body.
type APIError struct {
	Status        int
	Code          string
	Message       string
	MinOrderValue *decimal.Decimal
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server rejected request (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("server rejected request (HTTP %d): %s", e.Status, e.Message)
}

var amountPattern = regexp.MustCompile(`[0-9]+(?:\.[0-9]{1,2})?`)

// MinOrder returns the minimum-order threshold carried by the error.
// It prefers the structured field and falls back to scraping a figure
// out of the human-readable message, which older server builds still
// send ("minimum order value is ₹200").
func (e *APIError) MinOrder() (decimal.Decimal, bool) {
	if e.MinOrderValue != nil {
		return *e.MinOrderValue, true
	}
	match := amountPattern.FindString(e.Message)
	if match == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(match)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
