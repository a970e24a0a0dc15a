package wire

import (
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-pricing/internal/domain/coupon"
	"github.com/xenking/kart-pricing/internal/domain/pricing"
	"github.com/xenking/kart-pricing/internal/domain/quote"
)

// EncodeCalculation writes calc as a JSON object.
func EncodeCalculation(e *jx.Encoder, calc *pricing.OrderCalculation) {
	e.ObjStart()
	encodeCalculationFields(e, calc)
	e.ObjEnd()
}

func encodeCalculationFields(e *jx.Encoder, calc *pricing.OrderCalculation) {
	e.FieldStart("items")
	e.ArrStart()
	for _, item := range calc.Items {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(item.Product.ID)
		e.FieldStart("name")
		e.Str(item.Product.Name)
		e.FieldStart("price")
		Money(e, item.Product.Price)
		e.FieldStart("quantity")
		e.Int(item.Product.Quantity)
		e.FieldStart("eligible")
		e.Bool(item.Product.Eligible)
		e.FieldStart("subtotal")
		Money(e, item.Subtotal)
		e.FieldStart("discountApplied")
		Money(e, item.DiscountApplied)
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("subtotal")
	Money(e, calc.Subtotal)
	e.FieldStart("discountableAmount")
	Money(e, calc.DiscountableAmount)
	e.FieldStart("nonDiscountableAmount")
	Money(e, calc.NonDiscountableAmount)
	e.FieldStart("memberDiscount")
	Money(e, calc.MemberDiscount)
	e.FieldStart("couponDiscount")
	Money(e, calc.CouponDiscount)
	e.FieldStart("totalFixedDiscount")
	Money(e, calc.TotalFixedDiscount)
	e.FieldStart("totalDiscount")
	Money(e, calc.TotalDiscount)
	e.FieldStart("finalAmount")
	Money(e, calc.FinalAmount)

	e.FieldStart("discountDetails")
	e.ArrStart()
	for _, dd := range calc.DiscountDetails {
		e.ObjStart()
		e.FieldStart("type")
		e.Str(string(dd.Type))
		e.FieldStart("name")
		e.Str(dd.Name)
		e.FieldStart("amount")
		Money(e, dd.Amount)
		e.FieldStart("description")
		e.Str(dd.Description)
		e.ObjEnd()
	}
	e.ArrEnd()
}

// EncodeQuote writes q as the calculation object extended with the quote
// identity.
func EncodeQuote(e *jx.Encoder, q *quote.Quote) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(q.ID.String())
	e.FieldStart("customerId")
	e.Str(q.CustomerID)
	e.FieldStart("createdAt")
	e.Str(q.CreatedAt.UTC().Format(time.RFC3339))
	encodeCalculationFields(e, q.Calculation)
	e.ObjEnd()
}

// DecodeQuoteRequest parses a quote request body.
func DecodeQuoteRequest(data []byte) (quote.Request, error) {
	var req quote.Request
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "customerId":
			req.CustomerID, err = d.Str()
		case "couponCodes":
			req.CouponCodes, err = decodeStrings(d)
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				var item quote.Item
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "productId":
						item.ProductID, err = d.Str()
					case "quantity":
						item.Quantity, err = d.Int()
					default:
						err = d.Skip()
					}
					return err
				}); err != nil {
					return err
				}
				req.Items = append(req.Items, item)
				return nil
			})
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return quote.Request{}, malformed(err, "quote request")
	}
	return req, nil
}

// EncodeRule writes a coupon rule.
func EncodeRule(e *jx.Encoder, r *coupon.Rule) {
	e.ObjStart()
	e.FieldStart("code")
	e.Str(r.Code)
	e.FieldStart("name")
	e.Str(r.Name)
	e.FieldStart("type")
	e.Str(string(r.Kind))
	switch r.Kind {
	case pricing.KindFixedDiscount:
		e.FieldStart("threshold")
		Money(e, r.Threshold)
		e.FieldStart("amount")
		Money(e, r.Amount)
	case pricing.KindPercentageDiscount:
		e.FieldStart("rate")
		e.Str(r.Rate.String())
	}
	if r.ValidFrom != nil {
		e.FieldStart("validFrom")
		e.Str(r.ValidFrom.UTC().Format(time.RFC3339))
	}
	if r.ValidUntil != nil {
		e.FieldStart("validUntil")
		e.Str(r.ValidUntil.UTC().Format(time.RFC3339))
	}
	if r.MaxUses > 0 {
		e.FieldStart("remainingUses")
		e.Int(max(r.MaxUses-r.Uses, 0))
	}
	e.ObjEnd()
}
