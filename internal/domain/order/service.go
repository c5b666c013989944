package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/unseenwear/checkout/internal/domain/discount"
	"github.com/unseenwear/checkout/internal/domain/payment"
)

// ErrEmptyItems is returned when a checkout request carries no items.
var ErrEmptyItems = errors.New("items required")

// ErrOrderNotFound is returned when the referenced order does not exist.
var ErrOrderNotFound = errors.New("order not found")

// Gateway is the payment-processing dependency of the checkout workflow.
// Satisfied by *payment.Client.
type Gateway interface {
	ProcessPayment(ctx context.Context, req payment.Request) payment.Result
	RefundPayment(ctx context.Context, req payment.RefundRequest) payment.RefundResult
}

// Validator is the discount-validation dependency. Satisfied by
// *discount.Engine.
type Validator interface {
	Validate(ctx context.Context, code string, orderTotal decimal.Decimal) discount.ValidationResult
}

// CardDetails carries the raw card data through checkout. Never persisted
// and never logged unmasked. Format validation (Luhn, expiry plausibility)
// is the storefront's responsibility; the gateway transmits what it is given.
type CardDetails struct {
	Number      string
	ExpiryMonth string // MM
	ExpiryYear  string // YY
	CVV         string
}

// CheckoutRequest is the input for placing and paying an order.
type CheckoutRequest struct {
	Customer       Customer
	Items          []Item
	ShippingMethod string
	ShippingCost   decimal.Decimal
	DiscountCode   string
	Card           CardDetails
	Notes          string
}

// CheckoutResult is the outcome of a checkout. Order is always persisted;
// Payment carries the gateway outcome, which may be a decline.
type CheckoutResult struct {
	Order    *Order
	Payment  payment.Result
	Discount discount.ValidationResult
}

// Service orchestrates checkout: pricing, discount application, payment
// capture, status transitions, and notifications.
type Service struct {
	orders    Repository
	validator Validator
	codes     discount.Store
	gateway   Gateway
	notifier  Notifier
	lg        *zap.Logger
	now       func() time.Time
}

// NewService creates the checkout service with its domain dependencies.
func NewService(
	orders Repository,
	validator Validator,
	codes discount.Store,
	gateway Gateway,
	notifier Notifier,
	lg *zap.Logger,
) *Service {
	return &Service{
		orders:    orders,
		validator: validator,
		codes:     codes,
		gateway:   gateway,
		notifier:  notifier,
		lg:        lg,
		now:       time.Now,
	}
}

// Checkout creates the order in pending_payment, applies an optional
// discount code, and charges the card. A denied discount code never blocks
// checkout: it yields zero discount. A declined or failed payment is not an
// error; the order stays in its pre-payment state and the gateway outcome is
// reported in the result. Idempotency across retries is the caller's
// concern.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	subtotal := decimal.Zero
	for _, item := range req.Items {
		line := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(line)
	}

	// Apply discount when a code is provided. Invalid codes degrade to a
	// zero discount.
	var dv discount.ValidationResult
	if req.DiscountCode != "" {
		dv = s.validator.Validate(ctx, req.DiscountCode, subtotal)
		if !dv.Valid {
			s.lg.Info("discount code denied",
				zap.String("code", req.DiscountCode),
				zap.String("reason", dv.Message))
		}
	}

	total := subtotal.Sub(dv.Amount).Add(req.ShippingCost)
	if total.IsNegative() {
		total = decimal.Zero
	}
	total = total.Round(2)

	now := s.now()
	o := &Order{
		ID:          uuid.New().String(),
		OrderNumber: s.newOrderNumber(),
		Customer:    req.Customer,
		Items:       req.Items,

		Subtotal:     subtotal.Round(2),
		ShippingCost: req.ShippingCost,
		Discount:     dv.Amount,
		DiscountCode: dv.Code,
		Total:        total,

		Status:        StatusPendingPayment,
		PaymentStatus: PaymentPending,

		ShippingMethod: req.ShippingMethod,
		Notes:          req.Notes,

		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	customerName := strings.TrimSpace(req.Customer.FirstName + " " + req.Customer.LastName)
	pr := s.gateway.ProcessPayment(ctx, payment.Request{
		Amount:       o.Total,
		CardNumber:   req.Card.Number,
		ExpiryMonth:  req.Card.ExpiryMonth,
		ExpiryYear:   req.Card.ExpiryYear,
		CVV:          req.Card.CVV,
		OrderID:      o.OrderNumber,
		CustomerName: customerName,
	})

	if !pr.Success {
		// Order stays pending_payment; the storefront may retry.
		o.PaymentStatus = PaymentFailed
		o.UpdatedAt = s.now()
		if err := s.orders.Update(ctx, o); err != nil {
			s.lg.Error("failed to record payment failure",
				zap.String("order", o.OrderNumber), zap.Error(err))
		}
		return &CheckoutResult{Order: o, Payment: pr, Discount: dv}, nil
	}

	o.Status = StatusPaymentReceived
	o.PaymentStatus = PaymentPaid
	o.TransactionID = pr.TransactionID
	o.UpdatedAt = s.now()
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "confirm order")
	}

	// The code's use is consumed only now that the order is confirmed.
	if o.DiscountCode != "" {
		if err := s.codes.IncrementUses(ctx, o.DiscountCode); err != nil {
			s.lg.Error("failed to increment discount code uses",
				zap.String("code", o.DiscountCode), zap.Error(err))
		}
	}

	s.notify(ctx, o)

	return &CheckoutResult{Order: o, Payment: pr, Discount: dv}, nil
}

// MarkShipped transitions a paid order to shipped and notifies the customer.
func (s *Service) MarkShipped(ctx context.Context, orderID, trackingNumber string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	o.Status = StatusShipped
	o.TrackingNumber = trackingNumber
	o.UpdatedAt = s.now()
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}

	if err := s.notifier.OrderShipped(ctx, o); err != nil {
		s.lg.Error("shipping notification failed",
			zap.String("order", o.OrderNumber), zap.Error(err))
	}

	return o, nil
}

// Refund reverses the payment of a paid order and cancels it. The gateway
// outcome decides whether the order transitions; a declined refund leaves it
// unchanged.
func (s *Service) Refund(ctx context.Context, orderID string) (*Order, payment.RefundResult, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, payment.RefundResult{}, err
	}
	if o.PaymentStatus != PaymentPaid || o.TransactionID == "" {
		return nil, payment.RefundResult{}, errors.New("order has no settled payment")
	}

	rr := s.gateway.RefundPayment(ctx, payment.RefundRequest{
		TransactionID: o.TransactionID,
		Amount:        o.Total,
		OrderID:       o.OrderNumber,
	})
	if !rr.Success {
		return o, rr, nil
	}

	o.Status = StatusCancelled
	o.PaymentStatus = PaymentRefunded
	o.UpdatedAt = s.now()
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, rr, errors.Wrap(err, "update order")
	}

	return o, rr, nil
}

// Stats returns the admin dashboard aggregates.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.orders.Stats(ctx)
}

// newOrderNumber generates numbers like UNS20260830A1B2C3D4: brand prefix,
// date, and an 8-char random suffix.
func (s *Service) newOrderNumber() string {
	suffix := strings.ToUpper(uuid.New().String()[:8])
	return fmt.Sprintf("UNS%s%s", s.now().Format("20060102"), suffix)
}

// notify sends the confirmation and owner-notification emails. Failures are
// logged, never surfaced: the order is already confirmed.
func (s *Service) notify(ctx context.Context, o *Order) {
	if err := s.notifier.OrderConfirmed(ctx, o); err != nil {
		s.lg.Error("customer confirmation failed",
			zap.String("order", o.OrderNumber), zap.Error(err))
	}
	if err := s.notifier.NewOrderReceived(ctx, o); err != nil {
		s.lg.Error("owner notification failed",
			zap.String("order", o.OrderNumber), zap.Error(err))
	}
}
