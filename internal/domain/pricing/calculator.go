package pricing

import (
	"fmt"
	"slices"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	zero = decimal.Zero
	one  = decimal.NewFromInt(1)
	ten  = decimal.NewFromInt(10)

	// DefaultMemberRate is the share of the discountable amount a member pays.
	DefaultMemberRate = decimal.RequireFromString("0.95")
)

const memberDiscountName = "会员折扣"

// Calculator applies member, percentage and fixed discounts to an order.
// It is immutable and safe for concurrent use.
type Calculator struct {
	memberRate decimal.Decimal
	validate   bool
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithMemberRate overrides DefaultMemberRate. The rate must be in (0, 1].
func WithMemberRate(rate decimal.Decimal) Option {
	return func(c *Calculator) {
		c.memberRate = rate
	}
}

// WithValidation toggles input validation. When disabled, negative prices and
// malformed coupons flow through the arithmetic unchecked; coupons without a
// policy are ignored.
func WithValidation(enabled bool) Option {
	return func(c *Calculator) {
		c.validate = enabled
	}
}

// NewCalculator returns a Calculator with the given options applied.
func NewCalculator(opts ...Option) (*Calculator, error) {
	c := &Calculator{
		memberRate: DefaultMemberRate,
		validate:   true,
	}
	for _, opt := range opts {
		opt(c)
	}
	if !validRate(c.memberRate) {
		return nil, errors.Wrapf(ErrInvalidInput, "member rate %s outside (0, 1]", c.memberRate)
	}
	return c, nil
}

var defaultCalculator = &Calculator{memberRate: DefaultMemberRate, validate: true}

// Calculate prices an order with the default member rate and validation
// enabled.
func Calculate(products []Product, user User, coupons []Coupon) (*OrderCalculation, error) {
	return defaultCalculator.Calculate(products, user, coupons)
}

// MemberRate returns the share of the discountable amount a member pays.
func (c *Calculator) MemberRate() decimal.Decimal {
	return c.memberRate
}

// Calculate prices an order. Empty products or coupons are valid and yield
// zero discounts. An error is returned only when validation is enabled and an
// input is rejected; the error matches ErrInvalidInput.
func (c *Calculator) Calculate(products []Product, user User, coupons []Coupon) (*OrderCalculation, error) {
	if c.validate {
		if err := Validate(products, coupons); err != nil {
			return nil, err
		}
	}

	calc := partition(products)

	excl := c.exclusiveDiscount(calc.DiscountableAmount, user, coupons)
	calc.MemberDiscount = excl.member
	calc.CouponDiscount = excl.coupon

	remaining := calc.DiscountableAmount.Sub(excl.member).Sub(excl.coupon)
	fixed := applyFixed(remaining, sortedFixed(coupons))
	calc.FixedDiscounts = fixed.applied
	calc.TotalFixedDiscount = fixed.total

	calc.TotalDiscount = excl.member.Add(excl.coupon).Add(fixed.total)
	calc.FinalAmount = calc.Subtotal.Sub(calc.TotalDiscount)

	apportion(calc.Items, calc.TotalDiscount, calc.DiscountableAmount)

	calc.DiscountDetails = make([]DiscountDetail, 0, len(fixed.applied)+1)
	if excl.detail != nil {
		calc.DiscountDetails = append(calc.DiscountDetails, *excl.detail)
	}
	calc.DiscountDetails = append(calc.DiscountDetails, fixed.applied...)

	return calc, nil
}

// partition builds one OrderItem per product and splits the subtotal into
// discountable and non-discountable parts.
func partition(products []Product) *OrderCalculation {
	calc := &OrderCalculation{
		Items:                 make([]OrderItem, len(products)),
		Subtotal:              zero,
		DiscountableAmount:    zero,
		NonDiscountableAmount: zero,
		FixedDiscounts:        []DiscountDetail{},
	}
	for i, p := range products {
		line := p.Price.Mul(decimal.NewFromInt(int64(p.Quantity)))
		calc.Items[i] = OrderItem{
			Product:         p,
			Subtotal:        line,
			DiscountApplied: zero,
		}
		calc.Subtotal = calc.Subtotal.Add(line)
		if p.Eligible {
			calc.DiscountableAmount = calc.DiscountableAmount.Add(line)
		} else {
			calc.NonDiscountableAmount = calc.NonDiscountableAmount.Add(line)
		}
	}
	return calc
}

// exclusive is the outcome of the member-versus-percentage-coupon choice.
// At most one of member and coupon is non-zero.
type exclusive struct {
	member decimal.Decimal
	coupon decimal.Decimal
	detail *DiscountDetail
}

func (c *Calculator) exclusiveDiscount(discountable decimal.Decimal, user User, coupons []Coupon) exclusive {
	res := exclusive{member: zero, coupon: zero}
	if user.Member {
		res.member = discountable.Mul(one.Sub(c.memberRate))
		res.detail = &DiscountDetail{
			Type:        DetailMember,
			Name:        memberDiscountName,
			Amount:      res.member,
			Description: fmt.Sprintf("会员专享%s折优惠，优惠金额：¥%s", zhe(c.memberRate), res.member.StringFixed(2)),
		}
	}

	// Only the first percentage coupon is considered.
	var (
		cp    Coupon
		rate  decimal.Decimal
		found bool
	)
	for _, x := range coupons {
		pol, ok := x.policyValue()
		if !ok {
			continue
		}
		if pd, ok := pol.(PercentageDiscount); ok {
			cp, rate, found = x, pd.Rate, true
			break
		}
	}
	if !found {
		return res
	}

	amount := discountable.Mul(one.Sub(rate))
	if !amount.GreaterThan(res.member) {
		return res
	}
	return exclusive{
		member: zero,
		coupon: amount,
		detail: &DiscountDetail{
			Type:        DetailCoupon,
			Name:        cp.Name,
			Amount:      amount,
			Description: fmt.Sprintf("折扣券%s折优惠，优惠金额：¥%s", zhe(rate), amount.StringFixed(2)),
		},
	}
}

type fixedCoupon struct {
	name   string
	policy FixedDiscount
}

// sortedFixed returns the fixed-discount coupons ordered by ascending
// threshold. Coupons with equal thresholds keep their input order.
func sortedFixed(coupons []Coupon) []fixedCoupon {
	var out []fixedCoupon
	for _, c := range coupons {
		pol, ok := c.policyValue()
		if !ok {
			continue
		}
		if fd, ok := pol.(FixedDiscount); ok {
			out = append(out, fixedCoupon{name: c.Name, policy: fd})
		}
	}
	slices.SortStableFunc(out, func(a, b fixedCoupon) int {
		return a.policy.Threshold.Cmp(b.policy.Threshold)
	})
	return out
}

// fixedPass is the accumulator of the fixed-discount fold.
type fixedPass struct {
	remaining decimal.Decimal
	total     decimal.Decimal
	applied   []DiscountDetail
}

// applyFixed folds the sorted coupons over the amount left after the
// exclusive discount. Each coupon is checked once against the amount that
// remains after every coupon applied before it; a skipped coupon is never
// reconsidered.
func applyFixed(remaining decimal.Decimal, coupons []fixedCoupon) fixedPass {
	acc := fixedPass{remaining: remaining, total: zero, applied: []DiscountDetail{}}
	for _, fc := range coupons {
		acc = acc.step(fc)
	}
	return acc
}

func (p fixedPass) step(fc fixedCoupon) fixedPass {
	if p.remaining.LessThan(fc.policy.Threshold) {
		return p
	}
	amount := fc.policy.Amount
	detail := DiscountDetail{
		Type:   DetailFixed,
		Name:   fc.name,
		Amount: amount,
		Description: fmt.Sprintf("满%s减%s，优惠金额：¥%s",
			fc.policy.Threshold.StringFixed(2), amount.StringFixed(2), amount.StringFixed(2)),
	}
	return fixedPass{
		remaining: p.remaining.Sub(amount),
		total:     p.total.Add(amount),
		applied:   append(p.applied, detail),
	}
}

// apportion spreads the total discount over eligible items in proportion to
// their subtotals.
func apportion(items []OrderItem, total, discountable decimal.Decimal) {
	if !discountable.IsPositive() {
		return
	}
	ratio := total.Div(discountable)
	for i := range items {
		if items[i].Product.Eligible {
			items[i].DiscountApplied = items[i].Subtotal.Mul(ratio)
		}
	}
}

// zhe renders a pay rate in the customary "折" notation: 0.95 -> "9.5",
// 0.90 -> "9".
func zhe(rate decimal.Decimal) string {
	return rate.Mul(ten).String()
}
