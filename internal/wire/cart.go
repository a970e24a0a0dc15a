package wire

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pricing/internal/domain/pricing"
)

// Cart is a self-contained pricing job: everything the engine needs, without
// store lookups.
type Cart struct {
	ID       string
	User     pricing.User
	Products []pricing.Product
	Coupons  []pricing.Coupon
}

// DecodeCart parses one cart object.
func DecodeCart(data []byte) (Cart, error) {
	var c Cart
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			c.ID, err = d.Str()
		case "user":
			c.User, err = decodeUser(d)
		case "products":
			err = d.Arr(func(d *jx.Decoder) error {
				p, err := decodeProduct(d)
				if err != nil {
					return err
				}
				c.Products = append(c.Products, p)
				return nil
			})
		case "coupons":
			err = d.Arr(func(d *jx.Decoder) error {
				cp, err := decodeCoupon(d)
				if err != nil {
					return err
				}
				c.Coupons = append(c.Coupons, cp)
				return nil
			})
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return c, malformed(err, "cart")
	}
	return c, nil
}

func decodeUser(d *jx.Decoder) (pricing.User, error) {
	var u pricing.User
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			u.ID, err = d.Str()
		case "name":
			u.Name, err = d.Str()
		case "member":
			u.Member, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
	return u, err
}

func decodeProduct(d *jx.Decoder) (pricing.Product, error) {
	p := pricing.Product{Eligible: true}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "price":
			p.Price, err = decodeMoney(d)
		case "quantity":
			p.Quantity, err = d.Int()
		case "eligible":
			p.Eligible, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
	return p, err
}

func decodeCoupon(d *jx.Decoder) (pricing.Coupon, error) {
	var (
		c                       pricing.Coupon
		kind                    pricing.CouponKind
		threshold, amount, rate decimal.NullDecimal
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			c.ID, err = d.Str()
		case "name":
			c.Name, err = d.Str()
		case "type":
			var s string
			s, err = d.Str()
			kind = pricing.CouponKind(s)
		case "threshold":
			threshold.Decimal, err = decodeMoney(d)
			threshold.Valid = err == nil
		case "amount":
			amount.Decimal, err = decodeMoney(d)
			amount.Valid = err == nil
		case "rate":
			rate.Decimal, err = decodeMoney(d)
			rate.Valid = err == nil
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return c, err
	}

	switch kind {
	case pricing.KindFixedDiscount:
		if !threshold.Valid || !amount.Valid {
			return c, errors.Errorf("coupon %q: fixed_discount requires threshold and amount", c.ID)
		}
		c.Policy = pricing.FixedDiscount{Threshold: threshold.Decimal, Amount: amount.Decimal}
	case pricing.KindPercentageDiscount:
		if !rate.Valid {
			return c, errors.Errorf("coupon %q: percentage_discount requires rate", c.ID)
		}
		c.Policy = pricing.PercentageDiscount{Rate: rate.Decimal}
	default:
		return c, errors.Errorf("coupon %q: unknown type %q", c.ID, kind)
	}
	return c, nil
}

// EncodeCartResult writes a priced cart line.
func EncodeCartResult(e *jx.Encoder, id string, calc *pricing.OrderCalculation) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(id)
	e.FieldStart("calculation")
	EncodeCalculation(e, calc)
	e.ObjEnd()
}

// EncodeCartError writes a rejected cart line.
func EncodeCartError(e *jx.Encoder, id string, err error) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(id)
	e.FieldStart("error")
	e.Str(err.Error())
	e.ObjEnd()
}
