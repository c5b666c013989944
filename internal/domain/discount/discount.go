// Package discount validates discount codes against order totals and
// computes discount amounts.
package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind enumerates the supported discount strategies.
type Kind string

const (
	// KindPercentage applies a percentage of the order total.
	KindPercentage Kind = "percentage"
	// KindFixed applies a fixed monetary amount capped at the order total.
	KindFixed Kind = "fixed"
)

// ErrCodeNotFound is returned by Store lookups when no active code matches.
var ErrCodeNotFound = errors.New("discount code not found")

// Code is a discount code record. Code values are canonical uppercase.
type Code struct {
	Code           string
	Kind           Kind
	Value          decimal.Decimal // percentage 0-100 or fixed amount
	MinOrderAmount decimal.Decimal
	MaxUses        int // 0 means unlimited
	Uses           int
	Active         bool
	ExpiresAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ValidationResult is the outcome of validating a code against an order
// total. Amount is zero whenever Valid is false.
type ValidationResult struct {
	Valid   bool
	Amount  decimal.Decimal
	Message string
	Code    string // canonical code, set only when valid
}

// Store provides lookup and mutation of discount codes. Lookups match the
// canonical uppercase code and only return active records.
type Store interface {
	FindActiveByCode(ctx context.Context, code string) (*Code, error)
	// IncrementUses bumps the usage counter. The engine never calls it;
	// the order workflow does, after the order is durably confirmed, so
	// an abandoned checkout does not consume a use.
	IncrementUses(ctx context.Context, code string) error

	Create(ctx context.Context, c *Code) error
	Update(ctx context.Context, c *Code) error
	Deactivate(ctx context.Context, code string) error
	List(ctx context.Context) ([]Code, error)
}
