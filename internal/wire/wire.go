// Package wire encodes and decodes the JSON representation of quotes and
// calculations. Money is written as a string with exactly two decimal places
// and read from either a string or a number.
package wire

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// ErrMalformed is returned for input that is not valid JSON of the expected
// shape.
var ErrMalformed = errors.New("malformed request")

func malformed(err error, what string) error {
	return errors.Wrapf(ErrMalformed, "%s: %v", what, err)
}

// Money writes amount rounded to two decimal places.
func Money(e *jx.Encoder, amount decimal.Decimal) {
	e.Str(amount.StringFixed(2))
}

func decodeMoney(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch tt := d.Next(); tt {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = string(n)
	default:
		return decimal.Zero, errors.Errorf("expected amount, got %s", tt)
	}
	return decimal.NewFromString(raw)
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	var out []string
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

// EncodeError writes the error body shared by every endpoint.
func EncodeError(e *jx.Encoder, code int, message string) {
	e.ObjStart()
	e.FieldStart("code")
	e.Int(code)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()
}
