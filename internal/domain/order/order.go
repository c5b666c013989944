// Package order implements the checkout workflow: order creation, discount
// application, payment capture, and status transitions.
package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Status is an order's lifecycle state.
type Status string

const (
	StatusPendingPayment  Status = "pending_payment"
	StatusPaymentReceived Status = "payment_received"
	StatusProcessing      Status = "processing"
	StatusShipped         Status = "shipped"
	StatusDelivered       Status = "delivered"
	StatusCancelled       Status = "cancelled"
)

// PaymentStatus tracks the payment side of an order independent of
// fulfilment.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Item is a single order line.
type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	Image     string          `json:"image,omitempty"`
}

// Customer holds the buyer's contact and shipping details.
type Customer struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Order is a customer order with pricing, discount, and payment details.
type Order struct {
	ID          string
	OrderNumber string
	Customer    Customer
	Items       []Item

	Subtotal     decimal.Decimal
	ShippingCost decimal.Decimal
	Discount     decimal.Decimal
	DiscountCode string
	Total        decimal.Decimal

	Status        Status
	PaymentStatus PaymentStatus
	TransactionID string

	ShippingMethod string
	TrackingNumber string
	Notes          string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Stats aggregates order counts and revenue for the admin dashboard.
type Stats struct {
	TotalOrders   int
	PendingOrders int
	TotalRevenue  decimal.Decimal
	TodayOrders   int
	TodayRevenue  decimal.Decimal
}

// ListFilter narrows List results.
type ListFilter struct {
	Status Status // empty matches all
	Offset int
	Limit  int
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)
	List(ctx context.Context, f ListFilter) ([]Order, error)
	Update(ctx context.Context, o *Order) error
	Stats(ctx context.Context) (*Stats, error)
}

// Notifier emits order lifecycle notifications. Implementations receive only
// data values; rendering is their concern.
type Notifier interface {
	OrderConfirmed(ctx context.Context, o *Order) error
	NewOrderReceived(ctx context.Context, o *Order) error
	OrderShipped(ctx context.Context, o *Order) error
}
