// Package payment implements the HYP (Yaad Sarig) card-processing client.
//
// The provider speaks a bespoke XML dialect ("ashrait" documents) posted as
// a single form field. Every call is a request-scoped computation: the client
// holds only immutable configuration and an HTTP client, so concurrent calls
// are independent. Failures are never returned as errors — they are
// classified and surfaced in the result so the checkout flow can decide what
// to do with the order.
package payment

import (
	"github.com/shopspring/decimal"
)

// ErrorKind classifies a failed gateway call.
type ErrorKind string

const (
	// ErrorHTTP means the provider answered with a non-200 status.
	ErrorHTTP ErrorKind = "http_error"
	// ErrorParse means the provider's 200 response body was not a
	// well-formed document.
	ErrorParse ErrorKind = "parse_error"
	// ErrorTimeout means the call exceeded the configured timeout.
	ErrorTimeout ErrorKind = "timeout"
	// ErrorNetwork covers transport failures other than timeouts.
	ErrorNetwork ErrorKind = "network_error"
	// ErrorUnexpected covers everything else.
	ErrorUnexpected ErrorKind = "unexpected_error"
)

// CurrencyILS is the provider's code for Israeli new shekel, the only
// settlement currency the terminal is configured for.
const CurrencyILS = "1"

// Request holds the inputs for a sale transaction. Amount is in the major
// currency unit (shekels); the client converts to agorot on the wire.
type Request struct {
	Amount       decimal.Decimal
	CardNumber   string
	ExpiryMonth  string // MM
	ExpiryYear   string // YY
	CVV          string
	OrderID      string
	CustomerName string // optional
	Currency     string // provider currency code, defaults to CurrencyILS
}

// Result is the outcome of a sale transaction. Exactly one of
// "Success with TransactionID" or "Success=false with ErrorKind" holds.
type Result struct {
	Success           bool
	TransactionID     string
	AuthorizationCode string
	ResponseCode      string
	ResponseMessage   string
	OrderID           string
	Amount            decimal.Decimal

	ErrorKind    ErrorKind
	ErrorMessage string

	// Raw holds the full parsed provider response for audit and debugging.
	Raw map[string]string
}

// RefundRequest holds the inputs for refunding a previously settled
// transaction.
type RefundRequest struct {
	TransactionID string // the original sale's transaction id
	Amount        decimal.Decimal
	OrderID       string
}

// RefundResult mirrors Result for refund transactions.
type RefundResult struct {
	Success         bool
	TransactionID   string
	ResponseCode    string
	ResponseMessage string
	OrderID         string
	Amount          decimal.Decimal

	ErrorKind    ErrorKind
	ErrorMessage string

	Raw map[string]string
}
