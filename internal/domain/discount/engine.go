package discount

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// User-facing validation messages. Returned verbatim to the storefront.
const (
	msgInvalid      = "Invalid discount code"
	msgExpired      = "This discount code has expired"
	msgLimitReached = "This discount code has reached its usage limit"
)

// Engine validates discount codes. It is read-only: it never mutates usage
// counters (see Store.IncrementUses) and never returns an error into the
// checkout flow — every internal failure degrades to an invalid result.
type Engine struct {
	store Store
	lg    *zap.Logger
	now   func() time.Time
}

// NewEngine creates a validation engine over the given store.
func NewEngine(store Store, lg *zap.Logger) *Engine {
	return &Engine{store: store, lg: lg, now: time.Now}
}

// Validate checks a code against the order total and computes the discount.
// Checks short-circuit in a fixed order so the first failing condition
// determines the message. The computed amount never exceeds the order total.
func (e *Engine) Validate(ctx context.Context, code string, orderTotal decimal.Decimal) ValidationResult {
	canonical := strings.ToUpper(strings.TrimSpace(code))

	rec, err := e.store.FindActiveByCode(ctx, canonical)
	if err != nil {
		if !errors.Is(err, ErrCodeNotFound) {
			// Degrade to a denied discount rather than fail checkout.
			e.lg.Error("discount lookup failed",
				zap.String("code", canonical), zap.Error(err))
		}
		return invalid(msgInvalid)
	}

	if rec.ExpiresAt != nil && rec.ExpiresAt.Before(e.now()) {
		return invalid(msgExpired)
	}

	if rec.MaxUses > 0 && rec.Uses >= rec.MaxUses {
		return invalid(msgLimitReached)
	}

	if orderTotal.LessThan(rec.MinOrderAmount) {
		return invalid(fmt.Sprintf("Minimum order amount of ₪%s required",
			rec.MinOrderAmount.StringFixed(2)))
	}

	amount, err := compute(rec, orderTotal)
	if err != nil {
		e.lg.Error("discount computation failed",
			zap.String("code", canonical), zap.Error(err))
		return invalid(msgInvalid)
	}

	return ValidationResult{
		Valid:   true,
		Amount:  amount,
		Message: fmt.Sprintf("Discount applied: ₪%s", amount.StringFixed(2)),
		Code:    canonical,
	}
}

// compute returns the discount amount for a code, clamped to the order total
// so the payable amount can never go negative, rounded to 2 decimals.
func compute(rec *Code, orderTotal decimal.Decimal) (decimal.Decimal, error) {
	var raw decimal.Decimal
	switch rec.Kind {
	case KindPercentage:
		raw = orderTotal.Mul(rec.Value).Div(hundred)
	case KindFixed:
		raw = rec.Value
	default:
		return decimal.Zero, errors.Errorf("unsupported discount kind: %q", rec.Kind)
	}

	return decimal.Min(raw, orderTotal).Round(2), nil
}

func invalid(msg string) ValidationResult {
	return ValidationResult{Valid: false, Amount: decimal.Zero, Message: msg}
}
