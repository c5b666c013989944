package order

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unseenwear/checkout/internal/domain/discount"
	"github.com/unseenwear/checkout/internal/domain/payment"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

type memRepo struct {
	orders    map[string]*Order
	createErr error
	updateErr error
	updates   int
}

func newMemRepo() *memRepo {
	return &memRepo{orders: make(map[string]*Order)}
}

func (r *memRepo) Create(_ context.Context, o *Order) error {
	if r.createErr != nil {
		return r.createErr
	}
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (*Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memRepo) GetByNumber(_ context.Context, number string) (*Order, error) {
	for _, o := range r.orders {
		if o.OrderNumber == number {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrOrderNotFound
}

func (r *memRepo) List(context.Context, ListFilter) ([]Order, error) { return nil, nil }

func (r *memRepo) Update(_ context.Context, o *Order) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.updates++
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *memRepo) Stats(context.Context) (*Stats, error) {
	return &Stats{TotalOrders: len(r.orders)}, nil
}

type stubValidator struct {
	result   discount.ValidationResult
	gotCode  string
	gotTotal decimal.Decimal
}

func (v *stubValidator) Validate(_ context.Context, code string, orderTotal decimal.Decimal) discount.ValidationResult {
	v.gotCode = code
	v.gotTotal = orderTotal
	return v.result
}

type stubCodes struct {
	discount.Store
	incremented  []string
	incrementErr error
}

func (s *stubCodes) IncrementUses(_ context.Context, code string) error {
	if s.incrementErr != nil {
		return s.incrementErr
	}
	s.incremented = append(s.incremented, code)
	return nil
}

type stubGateway struct {
	payResult    payment.Result
	refundResult payment.RefundResult
	payReqs      []payment.Request
	refundReqs   []payment.RefundRequest
}

func (g *stubGateway) ProcessPayment(_ context.Context, req payment.Request) payment.Result {
	g.payReqs = append(g.payReqs, req)
	res := g.payResult
	res.OrderID = req.OrderID
	res.Amount = req.Amount
	return res
}

func (g *stubGateway) RefundPayment(_ context.Context, req payment.RefundRequest) payment.RefundResult {
	g.refundReqs = append(g.refundReqs, req)
	res := g.refundResult
	res.OrderID = req.OrderID
	res.Amount = req.Amount
	return res
}

type stubNotifier struct {
	confirmed []string
	received  []string
	shipped   []string
	err       error
}

func (n *stubNotifier) OrderConfirmed(_ context.Context, o *Order) error {
	n.confirmed = append(n.confirmed, o.OrderNumber)
	return n.err
}

func (n *stubNotifier) NewOrderReceived(_ context.Context, o *Order) error {
	n.received = append(n.received, o.OrderNumber)
	return n.err
}

func (n *stubNotifier) OrderShipped(_ context.Context, o *Order) error {
	n.shipped = append(n.shipped, o.OrderNumber)
	return n.err
}

type fixture struct {
	svc      *Service
	repo     *memRepo
	val      *stubValidator
	codes    *stubCodes
	gateway  *stubGateway
	notifier *stubNotifier
}

func newFixture() *fixture {
	f := &fixture{
		repo:     newMemRepo(),
		val:      &stubValidator{},
		codes:    &stubCodes{},
		gateway:  &stubGateway{payResult: payment.Result{Success: true, TransactionID: "TX-1"}},
		notifier: &stubNotifier{},
	}
	f.svc = NewService(f.repo, f.val, f.codes, f.gateway, f.notifier, zap.NewNop())
	f.svc.now = func() time.Time {
		return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	}
	return f
}

func checkoutRequest() CheckoutRequest {
	return CheckoutRequest{
		Customer: Customer{
			FirstName: "Dana",
			LastName:  "Cohen",
			Email:     "dana@example.com",
			Phone:     "050-1234567",
			Address:   "Dizengoff 1",
			City:      "Tel Aviv",
		},
		Items: []Item{
			{ProductID: "tee-black", Name: "Oversize Tee", Price: d("120"), Quantity: 2, Size: "M", Color: "black"},
			{ProductID: "cap-grey", Name: "Cap", Price: d("60"), Quantity: 1, Size: "one", Color: "grey"},
		},
		ShippingMethod: "courier",
		ShippingCost:   d("25"),
		Card: CardDetails{
			Number:      "4111111111111111",
			ExpiryMonth: "12",
			ExpiryYear:  "27",
			CVV:         "123",
		},
	}
}

func TestService_Checkout_Success(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Checkout(context.Background(), checkoutRequest())
	require.NoError(t, err)

	o := res.Order
	assert.True(t, d("300").Equal(o.Subtotal), "got %s", o.Subtotal)
	assert.True(t, d("325").Equal(o.Total), "got %s", o.Total)
	assert.Equal(t, StatusPaymentReceived, o.Status)
	assert.Equal(t, PaymentPaid, o.PaymentStatus)
	assert.Equal(t, "TX-1", o.TransactionID)
	assert.True(t, strings.HasPrefix(o.OrderNumber, "UNS20260830"), o.OrderNumber)

	require.Len(t, f.gateway.payReqs, 1)
	pr := f.gateway.payReqs[0]
	assert.True(t, d("325").Equal(pr.Amount))
	assert.Equal(t, o.OrderNumber, pr.OrderID)
	assert.Equal(t, "Dana Cohen", pr.CustomerName)

	assert.Equal(t, []string{o.OrderNumber}, f.notifier.confirmed)
	assert.Equal(t, []string{o.OrderNumber}, f.notifier.received)
	assert.Empty(t, f.codes.incremented, "no code supplied, nothing to consume")

	stored, err := f.repo.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaymentReceived, stored.Status)
}

func TestService_Checkout_WithDiscount(t *testing.T) {
	f := newFixture()
	f.val.result = discount.ValidationResult{
		Valid:   true,
		Amount:  d("60"),
		Message: "Discount applied: ₪60.00",
		Code:    "SAVE20",
	}

	req := checkoutRequest()
	req.DiscountCode = "save20"

	res, err := f.svc.Checkout(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "save20", f.val.gotCode, "raw code passed through; the engine canonicalizes")
	assert.True(t, d("300").Equal(f.val.gotTotal), "validated against the subtotal")

	o := res.Order
	assert.True(t, d("60").Equal(o.Discount))
	assert.Equal(t, "SAVE20", o.DiscountCode)
	assert.True(t, d("265").Equal(o.Total), "300 - 60 + 25, got %s", o.Total)

	require.Len(t, f.gateway.payReqs, 1)
	assert.True(t, d("265").Equal(f.gateway.payReqs[0].Amount), "gateway charges the discounted total")

	assert.Equal(t, []string{"SAVE20"}, f.codes.incremented, "use consumed after settlement")
}

func TestService_Checkout_InvalidDiscountCode(t *testing.T) {
	f := newFixture()
	f.val.result = discount.ValidationResult{Valid: false, Message: "Invalid discount code"}

	req := checkoutRequest()
	req.DiscountCode = "BOGUS"

	res, err := f.svc.Checkout(context.Background(), req)
	require.NoError(t, err, "a denied code never blocks checkout")

	o := res.Order
	assert.True(t, o.Discount.IsZero())
	assert.Empty(t, o.DiscountCode)
	assert.True(t, d("325").Equal(o.Total), "full price charged")
	assert.Equal(t, "Invalid discount code", res.Discount.Message)
	assert.Empty(t, f.codes.incremented)
}

func TestService_Checkout_PaymentDeclined(t *testing.T) {
	f := newFixture()
	f.val.result = discount.ValidationResult{Valid: true, Amount: d("60"), Code: "SAVE20"}
	f.gateway.payResult = payment.Result{
		Success:         false,
		ResponseCode:    "05",
		ResponseMessage: "Do not honor",
	}

	req := checkoutRequest()
	req.DiscountCode = "SAVE20"

	res, err := f.svc.Checkout(context.Background(), req)
	require.NoError(t, err, "a decline is an outcome, not an error")

	o := res.Order
	assert.Equal(t, StatusPendingPayment, o.Status, "order stays in its pre-payment state")
	assert.Equal(t, PaymentFailed, o.PaymentStatus)
	assert.Empty(t, o.TransactionID)
	assert.False(t, res.Payment.Success)
	assert.Equal(t, "05", res.Payment.ResponseCode)

	assert.Empty(t, f.codes.incremented, "declined payment must not consume a use")
	assert.Empty(t, f.notifier.confirmed)
	assert.Empty(t, f.notifier.received)
}

func TestService_Checkout_GatewayTimeout(t *testing.T) {
	f := newFixture()
	f.gateway.payResult = payment.Result{
		Success:      false,
		ErrorKind:    payment.ErrorTimeout,
		ErrorMessage: "payment gateway timeout",
	}

	res, err := f.svc.Checkout(context.Background(), checkoutRequest())
	require.NoError(t, err)

	assert.Equal(t, StatusPendingPayment, res.Order.Status)
	assert.Equal(t, PaymentFailed, res.Order.PaymentStatus)
	assert.Equal(t, payment.ErrorTimeout, res.Payment.ErrorKind)
}

func TestService_Checkout_EmptyItems(t *testing.T) {
	f := newFixture()

	req := checkoutRequest()
	req.Items = nil

	_, err := f.svc.Checkout(context.Background(), req)
	require.ErrorIs(t, err, ErrEmptyItems)
	assert.Empty(t, f.gateway.payReqs)
}

func TestService_Checkout_TotalFlooredAtZero(t *testing.T) {
	f := newFixture()
	f.val.result = discount.ValidationResult{Valid: true, Amount: d("300"), Code: "FULL"}

	req := checkoutRequest()
	req.DiscountCode = "FULL"
	req.ShippingCost = decimal.Zero

	res, err := f.svc.Checkout(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, res.Order.Total.IsZero(), "got %s", res.Order.Total)
	require.Len(t, f.gateway.payReqs, 1)
	assert.True(t, f.gateway.payReqs[0].Amount.IsZero())
}

func TestService_Checkout_CreateFailure(t *testing.T) {
	f := newFixture()
	f.repo.createErr = errors.New("connection refused")

	_, err := f.svc.Checkout(context.Background(), checkoutRequest())
	require.Error(t, err)
	assert.Empty(t, f.gateway.payReqs, "nothing charged when the order cannot be stored")
}

func TestService_Checkout_NotifierFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	f.notifier.err = errors.New("smtp unreachable")

	res, err := f.svc.Checkout(context.Background(), checkoutRequest())
	require.NoError(t, err)
	assert.Equal(t, StatusPaymentReceived, res.Order.Status)
}

func TestService_Checkout_IncrementFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	f.val.result = discount.ValidationResult{Valid: true, Amount: d("30"), Code: "SAVE10"}
	f.codes.incrementErr = errors.New("deadlock detected")

	req := checkoutRequest()
	req.DiscountCode = "SAVE10"

	res, err := f.svc.Checkout(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, res.Order.PaymentStatus)
}

func TestService_MarkShipped(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Checkout(context.Background(), checkoutRequest())
	require.NoError(t, err)

	o, err := f.svc.MarkShipped(context.Background(), res.Order.ID, "IL123456789")
	require.NoError(t, err)

	assert.Equal(t, StatusShipped, o.Status)
	assert.Equal(t, "IL123456789", o.TrackingNumber)
	assert.Equal(t, []string{o.OrderNumber}, f.notifier.shipped)
}

func TestService_Refund(t *testing.T) {
	t.Run("approved refund cancels the order", func(t *testing.T) {
		f := newFixture()
		f.gateway.refundResult = payment.RefundResult{Success: true, TransactionID: "TX-1"}

		res, err := f.svc.Checkout(context.Background(), checkoutRequest())
		require.NoError(t, err)

		o, rr, err := f.svc.Refund(context.Background(), res.Order.ID)
		require.NoError(t, err)
		require.True(t, rr.Success)

		assert.Equal(t, StatusCancelled, o.Status)
		assert.Equal(t, PaymentRefunded, o.PaymentStatus)

		require.Len(t, f.gateway.refundReqs, 1)
		assert.Equal(t, "TX-1", f.gateway.refundReqs[0].TransactionID)
		assert.True(t, res.Order.Total.Equal(f.gateway.refundReqs[0].Amount))
	})

	t.Run("declined refund leaves the order unchanged", func(t *testing.T) {
		f := newFixture()
		f.gateway.refundResult = payment.RefundResult{Success: false, ResponseCode: "12"}

		res, err := f.svc.Checkout(context.Background(), checkoutRequest())
		require.NoError(t, err)

		o, rr, err := f.svc.Refund(context.Background(), res.Order.ID)
		require.NoError(t, err)
		require.False(t, rr.Success)
		assert.Equal(t, StatusPaymentReceived, o.Status)

		stored, err := f.repo.GetByID(context.Background(), res.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, PaymentPaid, stored.PaymentStatus)
	})

	t.Run("unpaid order cannot be refunded", func(t *testing.T) {
		f := newFixture()
		f.gateway.payResult = payment.Result{Success: false, ResponseCode: "05"}

		res, err := f.svc.Checkout(context.Background(), checkoutRequest())
		require.NoError(t, err)

		_, _, err = f.svc.Refund(context.Background(), res.Order.ID)
		require.Error(t, err)
		assert.Empty(t, f.gateway.refundReqs)
	})
}
