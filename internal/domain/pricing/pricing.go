// Package pricing computes itemized order totals from a cart, a purchaser and a
// set of coupons.
//
// The calculation is a pure function: it performs no I/O, keeps no state
// between calls and never mutates its inputs, so a single Calculator may be
// shared by any number of goroutines.
package pricing

import (
	"github.com/shopspring/decimal"
)

// CouponKind enumerates the supported coupon policies.
type CouponKind string

const (
	// KindFixedDiscount deducts a flat amount once spend reaches a threshold.
	// Fixed discounts stack.
	KindFixedDiscount CouponKind = "fixed_discount"
	// KindPercentageDiscount charges a fraction of the discountable amount.
	// It is mutually exclusive with the member discount.
	KindPercentageDiscount CouponKind = "percentage_discount"
)

// DetailType tags an applied discount in OrderCalculation.DiscountDetails.
type DetailType string

const (
	DetailMember DetailType = "member_discount"
	DetailCoupon DetailType = "coupon_discount"
	DetailFixed  DetailType = "fixed_discount"
)

// Product is a single cart line.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Quantity int
	// Eligible marks the line as participating in promotions. Ineligible
	// lines are always charged in full.
	Eligible bool
}

// User is the purchaser context relevant to pricing.
type User struct {
	ID     string
	Name   string
	Member bool
}

// Policy is the kind-specific part of a coupon. It is implemented only by
// FixedDiscount and PercentageDiscount; pointers to either are accepted and
// read as values.
type Policy interface {
	Kind() CouponKind
	policy()
}

// FixedDiscount deducts Amount when the remaining discountable amount is at
// least Threshold.
type FixedDiscount struct {
	Threshold decimal.Decimal
	Amount    decimal.Decimal
}

// Kind implements Policy.
func (FixedDiscount) Kind() CouponKind { return KindFixedDiscount }

func (FixedDiscount) policy() {}

// PercentageDiscount charges Rate of the discountable amount, e.g. 0.90 means
// the customer pays 90%.
type PercentageDiscount struct {
	Rate decimal.Decimal
}

// Kind implements Policy.
func (PercentageDiscount) Kind() CouponKind { return KindPercentageDiscount }

func (PercentageDiscount) policy() {}

// Coupon is a discount instrument presented with an order.
type Coupon struct {
	ID     string
	Name   string
	Policy Policy
}

// NewFixedCoupon returns a threshold coupon ("满减券").
func NewFixedCoupon(id, name string, threshold, amount decimal.Decimal) Coupon {
	return Coupon{
		ID:     id,
		Name:   name,
		Policy: FixedDiscount{Threshold: threshold, Amount: amount},
	}
}

// NewPercentageCoupon returns a rate coupon ("折扣券").
func NewPercentageCoupon(id, name string, rate decimal.Decimal) Coupon {
	return Coupon{
		ID:     id,
		Name:   name,
		Policy: PercentageDiscount{Rate: rate},
	}
}

// Kind returns the coupon kind, or an empty kind when the policy is unset.
func (c Coupon) Kind() CouponKind {
	pol, ok := c.policyValue()
	if !ok {
		return ""
	}
	return pol.Kind()
}

// policyValue returns the policy as a FixedDiscount or PercentageDiscount
// value, dereferencing pointer forms. It reports false for a nil policy or a
// nil pointer.
func (c Coupon) policyValue() (Policy, bool) {
	switch pol := c.Policy.(type) {
	case FixedDiscount:
		return pol, true
	case PercentageDiscount:
		return pol, true
	case *FixedDiscount:
		if pol != nil {
			return *pol, true
		}
	case *PercentageDiscount:
		if pol != nil {
			return *pol, true
		}
	}
	return nil, false
}

// OrderItem is one product's computed contribution to the order.
type OrderItem struct {
	Product         Product
	Subtotal        decimal.Decimal
	DiscountApplied decimal.Decimal
}

// DiscountDetail records one applied policy.
type DiscountDetail struct {
	Type        DetailType
	Name        string
	Amount      decimal.Decimal
	Description string
}

// OrderCalculation is the itemized result of a calculation. Amounts are exact
// and unrounded; round at presentation time.
type OrderCalculation struct {
	Items                 []OrderItem
	Subtotal              decimal.Decimal
	DiscountableAmount    decimal.Decimal
	NonDiscountableAmount decimal.Decimal
	MemberDiscount        decimal.Decimal
	CouponDiscount        decimal.Decimal
	FixedDiscounts        []DiscountDetail
	TotalFixedDiscount    decimal.Decimal
	TotalDiscount         decimal.Decimal
	FinalAmount           decimal.Decimal
	// DiscountDetails lists the exclusive (member or coupon) detail first,
	// followed by fixed discounts in the order they were applied.
	DiscountDetails []DiscountDetail
}
