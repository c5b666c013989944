// Package notify sends order lifecycle emails over SMTP.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/unseenwear/checkout/internal/domain/order"
)

// Config holds SMTP connection details and addressing.
type Config struct {
	Host       string
	Port       int
	Username   string
	Password   string
	FromEmail  string
	OwnerEmail string
}

// Sender abstracts gomail's DialAndSend for testing.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer implements order.Notifier over SMTP. Messages are plain text built
// from order data values only.
type Mailer struct {
	cfg    Config
	sender Sender
	lg     *zap.Logger
}

var _ order.Notifier = (*Mailer)(nil)

// NewMailer creates a Mailer that dials the configured SMTP host.
func NewMailer(cfg Config, lg *zap.Logger) *Mailer {
	return &Mailer{
		cfg:    cfg,
		sender: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		lg:     lg,
	}
}

// NewMailerWithSender creates a Mailer with a custom Sender.
func NewMailerWithSender(cfg Config, sender Sender, lg *zap.Logger) *Mailer {
	return &Mailer{cfg: cfg, sender: sender, lg: lg}
}

// OrderConfirmed emails the customer their order confirmation.
func (m *Mailer) OrderConfirmed(ctx context.Context, o *order.Order) error {
	subject := fmt.Sprintf("Order Confirmation #%s - UNSEEN", o.OrderNumber)
	greeting := fmt.Sprintf("Hi %s,\n\nThank you for your order! We've received it and will process it shortly.",
		o.Customer.FirstName)

	return m.send(o.Customer.Email, subject, greeting, o)
}

// NewOrderReceived emails the store owner about a new order.
func (m *Mailer) NewOrderReceived(ctx context.Context, o *order.Order) error {
	subject := fmt.Sprintf("New Order #%s - ₪%s", o.OrderNumber, o.Total.StringFixed(2))
	greeting := fmt.Sprintf("New order received from %s %s.",
		o.Customer.FirstName, o.Customer.LastName)

	return m.send(m.cfg.OwnerEmail, subject, greeting, o)
}

// OrderShipped emails the customer their shipping notification.
func (m *Mailer) OrderShipped(ctx context.Context, o *order.Order) error {
	subject := fmt.Sprintf("Your Order #%s Has Shipped! - UNSEEN", o.OrderNumber)

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", o.Customer.FirstName)
	fmt.Fprintf(&b, "Great news! Your order #%s has been shipped and is on its way.\n", o.OrderNumber)
	if o.TrackingNumber != "" {
		fmt.Fprintf(&b, "\nTracking number: %s\n", o.TrackingNumber)
	}
	b.WriteString("\nThank you for shopping with UNSEEN!\n")

	msg := m.message(o.Customer.Email, subject, b.String())
	if err := m.sender.DialAndSend(msg); err != nil {
		return errors.Wrap(err, "send shipping notification")
	}

	m.lg.Info("shipping notification sent",
		zap.String("order", o.OrderNumber),
		zap.String("to", o.Customer.Email))
	return nil
}

func (m *Mailer) send(to, subject, greeting string, o *order.Order) error {
	msg := m.message(to, subject, composeBody(greeting, o))
	if err := m.sender.DialAndSend(msg); err != nil {
		return errors.Wrap(err, "send order email")
	}

	m.lg.Info("order email sent",
		zap.String("order", o.OrderNumber),
		zap.String("to", to))
	return nil
}

func (m *Mailer) message(to, subject, body string) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.FromEmail)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	return msg
}

// composeBody renders the order summary: itemized lines, subtotal, shipping,
// discount line when present, total, shipping address, and contact details.
func composeBody(greeting string, o *order.Order) string {
	var b strings.Builder
	b.WriteString(greeting)
	fmt.Fprintf(&b, "\n\nOrder #%s\n\n", o.OrderNumber)

	for _, item := range o.Items {
		line := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		fmt.Fprintf(&b, "  %s (%s / %s) x%d  ₪%s\n",
			item.Name, item.Color, item.Size, item.Quantity, line.StringFixed(2))
	}

	fmt.Fprintf(&b, "\nSubtotal: ₪%s\n", o.Subtotal.StringFixed(2))
	fmt.Fprintf(&b, "Shipping: ₪%s\n", o.ShippingCost.StringFixed(2))
	if o.Discount.IsPositive() {
		fmt.Fprintf(&b, "Discount (%s): -₪%s\n", o.DiscountCode, o.Discount.StringFixed(2))
	}
	fmt.Fprintf(&b, "Total: ₪%s\n", o.Total.StringFixed(2))

	fmt.Fprintf(&b, "\nShipping address:\n%s %s\n%s\n%s, %s\n%s\n",
		o.Customer.FirstName, o.Customer.LastName,
		o.Customer.Address, o.Customer.City, o.Customer.PostalCode,
		o.Customer.Country)
	fmt.Fprintf(&b, "\nPhone: %s\nEmail: %s\n", o.Customer.Phone, o.Customer.Email)

	return b.String()
}
