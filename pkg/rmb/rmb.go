// Package rmb spells monetary amounts in Chinese financial capitals
// ("大写金额"), e.g. 123.45 -> 壹佰贰拾叁元肆角伍分.
package rmb

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNegative is returned for amounts below zero.
	ErrNegative = errors.New("amount must not be negative")
	// ErrOutOfRange is returned for amounts above Max.
	ErrOutOfRange = errors.New("amount out of range")
	// ErrMalformed is returned by Parse for input that is not a plain amount
	// with at most two decimal places.
	ErrMalformed = errors.New("malformed amount")

	// Max is the largest amount Words accepts.
	Max = decimal.RequireFromString("999999999999.99")
)

var (
	digits     = [10]string{"零", "壹", "贰", "叁", "肆", "伍", "陆", "柒", "捌", "玖"}
	units      = [4]string{"", "拾", "佰", "仟"}
	groupUnits = [3]string{"", "万", "亿"}
)

// Parse reads a plain decimal amount such as "1,234.5". Spaces and thousands
// separators are ignored; at most two fractional digits are allowed.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.NewReplacer(" ", "", ",", "").Replace(s)
	if s == "" {
		return decimal.Zero, errors.Wrap(ErrMalformed, "empty input")
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	if !allDigits(intPart) || (hasFrac && (len(frac) < 1 || len(frac) > 2 || !allDigits(frac))) {
		return decimal.Zero, errors.Wrapf(ErrMalformed, "%q", s)
	}
	return decimal.NewFromString(s)
}

// Convert parses s and spells it.
func Convert(s string) (string, error) {
	amount, err := Parse(s)
	if err != nil {
		return "", err
	}
	return Words(amount)
}

// Words spells amount rounded half-up to the fen.
func Words(amount decimal.Decimal) (string, error) {
	if amount.IsNegative() {
		return "", ErrNegative
	}
	amount = amount.Round(2)
	if amount.GreaterThan(Max) {
		return "", errors.Wrapf(ErrOutOfRange, "%s exceeds %s", amount, Max)
	}

	fixed := amount.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	b.WriteString(integerWords(intPart))
	b.WriteString("元")

	jiao, fen := frac[0]-'0', frac[1]-'0'
	switch {
	case jiao == 0 && fen == 0:
		b.WriteString("整")
		return b.String(), nil
	case jiao == 0:
		b.WriteString("零")
	default:
		b.WriteString(digits[jiao])
		b.WriteString("角")
	}
	if fen != 0 {
		b.WriteString(digits[fen])
		b.WriteString("分")
	}
	return b.String(), nil
}

// integerWords spells a non-negative integer of at most 12 digits. A run of
// zeros between non-zero digits collapses into a single 零, and a leading
// 壹拾 is shortened to 拾.
func integerWords(s string) string {
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return digits[0]
	}
	if pad := len(s) % 4; pad != 0 {
		s = strings.Repeat("0", 4-pad) + s
	}

	var (
		b       strings.Builder
		started bool
		zero    bool
	)
	for i := 0; i < len(s); i++ {
		pos := len(s) - 1 - i
		unit, group := pos%4, pos/4
		d := s[i] - '0'

		if d == 0 {
			if started {
				zero = true
			}
		} else {
			if zero {
				b.WriteString(digits[0])
				zero = false
			}
			if d != 1 || unit != 1 || started {
				b.WriteString(digits[d])
			}
			b.WriteString(units[unit])
			started = true
		}

		if unit == 0 && group > 0 && s[i-3:i+1] != "0000" {
			b.WriteString(groupUnits[group])
		}
	}
	return b.String()
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := range len(s) {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
