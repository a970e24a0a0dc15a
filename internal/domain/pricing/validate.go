package pricing

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidInput is matched by every validation failure.
var ErrInvalidInput = errors.New("invalid input")

// InputError describes a rejected product or coupon.
type InputError struct {
	// Field is the offending attribute, e.g. "products[2].price".
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

// Unwrap allows errors.Is(err, ErrInvalidInput).
func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

// Validate checks products and coupons for values that would produce
// nonsensical totals.
func Validate(products []Product, coupons []Coupon) error {
	for i, p := range products {
		if p.Price.IsNegative() {
			return inputErr("products[%d].price", i, "must not be negative")
		}
		if p.Quantity < 1 {
			return inputErr("products[%d].quantity", i, "must be at least 1")
		}
	}
	for i, c := range coupons {
		pol, ok := c.policyValue()
		if !ok {
			return inputErr("coupons[%d]", i, "policy is required")
		}
		switch pol := pol.(type) {
		case FixedDiscount:
			if pol.Threshold.IsNegative() {
				return inputErr("coupons[%d].threshold", i, "must not be negative")
			}
			if pol.Amount.IsNegative() {
				return inputErr("coupons[%d].amount", i, "must not be negative")
			}
		case PercentageDiscount:
			if !validRate(pol.Rate) {
				return inputErr("coupons[%d].rate", i, "must be in (0, 1]")
			}
		default:
			return inputErr("coupons[%d]", i, fmt.Sprintf("unsupported policy %T", pol))
		}
	}
	return nil
}

func validRate(rate decimal.Decimal) bool {
	return rate.IsPositive() && rate.LessThanOrEqual(one)
}

func inputErr(format string, idx int, reason string) *InputError {
	return &InputError{Field: fmt.Sprintf(format, idx), Reason: reason}
}
