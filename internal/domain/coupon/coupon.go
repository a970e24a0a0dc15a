package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pricing/internal/domain/pricing"
)

var (
	// ErrInvalidCoupon is returned when a coupon code is not found, is inactive
	// or stores a kind the engine does not know.
	ErrInvalidCoupon = errors.New("invalid coupon code")
	// ErrCouponExpired is returned when a coupon is outside its valid time window.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrCouponUsageLimitReached is returned when a coupon has exhausted its allowed uses.
	ErrCouponUsageLimitReached = errors.New("coupon usage limit reached")
)

// Rule is a stored coupon definition. Threshold and Amount are set for fixed
// discounts, Rate for percentage discounts.
type Rule struct {
	Code       string
	Name       string
	Kind       pricing.CouponKind
	Threshold  decimal.Decimal
	Amount     decimal.Decimal
	Rate       decimal.Decimal
	ValidFrom  *time.Time
	ValidUntil *time.Time
	MaxUses    int
	Uses       int
}

// Coupon converts the rule into an engine coupon.
func (r *Rule) Coupon() (pricing.Coupon, error) {
	switch r.Kind {
	case pricing.KindFixedDiscount:
		return pricing.NewFixedCoupon(r.Code, r.Name, r.Threshold, r.Amount), nil
	case pricing.KindPercentageDiscount:
		return pricing.NewPercentageCoupon(r.Code, r.Name, r.Rate), nil
	default:
		return pricing.Coupon{}, errors.Wrapf(ErrInvalidCoupon, "coupon %s: unknown kind %q", r.Code, r.Kind)
	}
}

// Repository provides lookup of active coupon rules. FindByCode is
// case-insensitive and returns ErrInvalidCoupon for unknown codes.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
}

// NormalizeCode canonicalizes a user-supplied coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
