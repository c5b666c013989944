package payment

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// DefaultEndpoint is the provider's production gateway.
	DefaultEndpoint = "http://icom.yaad.net/"
	// DefaultTimeout bounds a single gateway round trip. The operation
	// fails with ErrorTimeout rather than hang past it.
	DefaultTimeout = 30 * time.Second

	// responseExcerptLimit caps how much of an unparseable body is kept
	// for diagnostics.
	responseExcerptLimit = 500
)

// Config holds the static gateway credentials and endpoint. Loaded
// out-of-band; none of it appears in per-call inputs.
type Config struct {
	MerchantName string
	TerminalID   string
	UserID       string
	APIPassword  string
	Endpoint     string
	Environment  string
}

// withDefaults normalizes the endpoint (provider requires a trailing slash)
// and fills in the production URL when none is configured.
func (c Config) withDefaults() Config {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if !strings.HasSuffix(c.Endpoint, "/") {
		c.Endpoint += "/"
	}
	return c
}

// Client is a stateless HYP gateway client. Construct once and share; all
// methods are safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
	lg   *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The caller owns the
// timeout configuration of the replacement.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a gateway client from static configuration.
func NewClient(cfg Config, lg *zap.Logger, opts ...Option) *Client {
	c := &Client{
		cfg:  cfg.withDefaults(),
		http: &http.Client{Timeout: DefaultTimeout},
		lg:   lg,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.lg.Info("HYP client initialized",
		zap.String("environment", c.cfg.Environment),
		zap.String("terminal", c.cfg.TerminalID))

	return c
}

// ProcessPayment charges a card through the provider. It never returns an
// error: transport, provider, and internal failures are all classified into
// the result so the order workflow can leave the order in its pre-payment
// state and decide about retries (the client itself performs no retries and
// no deduplication).
func (c *Client) ProcessPayment(ctx context.Context, req Request) Result {
	currency := req.Currency
	if currency == "" {
		currency = CurrencyILS
	}

	doc := saleRequest{
		Username: c.cfg.UserID,
		Password: c.cfg.APIPassword,
		Command:  commandDoDeal,
		Terminal: c.cfg.TerminalID,
		Action:   actionSale,
		Sum:      minorUnits(req.Amount),
		Currency: currency,

		CardNumber:     req.CardNumber,
		CardExpiration: req.ExpiryMonth + req.ExpiryYear,
		CVV:            req.CVV,

		ID:       req.OrderID,
		Comments: fmt.Sprintf("Order: %s", req.OrderID),
		Info:     req.CustomerName,
	}

	payload, err := xml.Marshal(doc)
	if err != nil {
		return c.failure(req.OrderID, req.Amount, ErrorUnexpected, err.Error())
	}

	c.lg.Info("processing HYP payment",
		zap.String("order_id", req.OrderID),
		zap.String("amount", req.Amount.StringFixed(2)),
		zap.String("card", maskCard(req.CardNumber)))

	fields, res := c.transmit(ctx, req.OrderID, req.Amount, payload)
	if fields == nil {
		return res
	}

	code := pick(fields, "response_code")
	message := pick(fields, "response_message")
	if message == "" {
		message = "Unknown error"
	}
	result := Result{
		Success:           isApproved(code),
		TransactionID:     pick(fields, "transaction_id"),
		AuthorizationCode: pick(fields, "approval_code"),
		ResponseCode:      code,
		ResponseMessage:   message,
		OrderID:           req.OrderID,
		Amount:            req.Amount,
		Raw:               fields,
	}

	if result.Success {
		c.lg.Info("payment approved",
			zap.String("order_id", req.OrderID),
			zap.String("transaction_id", result.TransactionID))
	} else {
		c.lg.Warn("payment declined",
			zap.String("order_id", req.OrderID),
			zap.String("response_code", code),
			zap.String("response_message", result.ResponseMessage))
	}

	return result
}

// RefundPayment reverses a previously settled transaction. Same transport
// and classification contract as ProcessPayment.
func (c *Client) RefundPayment(ctx context.Context, req RefundRequest) RefundResult {
	doc := refundRequest{
		Username: c.cfg.UserID,
		Password: c.cfg.APIPassword,
		Command:  commandDoDeal,
		Terminal: c.cfg.TerminalID,
		Action:   actionRefund,
		Sum:      minorUnits(req.Amount),

		TransactionID: req.TransactionID,
		ID:            req.OrderID,
	}

	payload, err := xml.Marshal(doc)
	if err != nil {
		r := c.failure(req.OrderID, req.Amount, ErrorUnexpected, err.Error())
		return refundFrom(r)
	}

	c.lg.Info("processing HYP refund",
		zap.String("order_id", req.OrderID),
		zap.String("amount", req.Amount.StringFixed(2)),
		zap.String("transaction_id", req.TransactionID))

	fields, res := c.transmit(ctx, req.OrderID, req.Amount, payload)
	if fields == nil {
		return refundFrom(res)
	}

	code := pick(fields, "response_code")
	result := RefundResult{
		Success:         isApproved(code),
		TransactionID:   pick(fields, "transaction_id"),
		ResponseCode:    code,
		ResponseMessage: pick(fields, "response_message"),
		OrderID:         req.OrderID,
		Amount:          req.Amount,
		Raw:             fields,
	}

	if result.Success {
		c.lg.Info("refund approved", zap.String("order_id", req.OrderID))
	} else {
		c.lg.Warn("refund declined",
			zap.String("order_id", req.OrderID),
			zap.String("response_code", code))
	}

	return result
}

// transmit posts the document as the provider's single `data` form field and
// parses the response. Returns (fields, zero Result) on a parseable 200, or
// (nil, failure Result) otherwise.
func (c *Client) transmit(ctx context.Context, orderID string, amount decimal.Decimal, payload []byte) (map[string]string, Result) {
	form := url.Values{"data": {string(payload)}}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, c.failure(orderID, amount, ErrorUnexpected, err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, c.transportFailure(orderID, amount, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.lg.Info("HYP response received",
		zap.String("order_id", orderID),
		zap.Int("status", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		return nil, c.failure(orderID, amount, ErrorHTTP,
			fmt.Sprintf("HTTP error: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportFailure(orderID, amount, err)
	}

	fields, err := parseResponse(body)
	if err != nil {
		c.lg.Error("failed to parse HYP response",
			zap.String("order_id", orderID),
			zap.Error(err),
			zap.String("body", excerpt(body, responseExcerptLimit)))
		return nil, c.failure(orderID, amount, ErrorParse,
			fmt.Sprintf("failed to parse response: %s", err))
	}

	return fields, Result{}
}

// transportFailure classifies a transport-level error into timeout or
// network failure.
func (c *Client) transportFailure(orderID string, amount decimal.Decimal, err error) Result {
	kind := ErrorNetwork
	msg := fmt.Sprintf("network error: %s", err)

	var ue *url.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &ue) && ue.Timeout()) {
		kind = ErrorTimeout
		msg = "payment gateway timeout"
	}

	return c.failure(orderID, amount, kind, msg)
}

func (c *Client) failure(orderID string, amount decimal.Decimal, kind ErrorKind, msg string) Result {
	c.lg.Error("HYP call failed",
		zap.String("order_id", orderID),
		zap.String("kind", string(kind)),
		zap.String("message", msg))

	return Result{
		OrderID:      orderID,
		Amount:       amount,
		ErrorKind:    kind,
		ErrorMessage: msg,
	}
}

func refundFrom(r Result) RefundResult {
	return RefundResult{
		OrderID:      r.OrderID,
		Amount:       r.Amount,
		ErrorKind:    r.ErrorKind,
		ErrorMessage: r.ErrorMessage,
	}
}
