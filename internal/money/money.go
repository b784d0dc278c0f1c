// Package money holds the fixed-point helpers shared by price, cost, tax and
// discount computations. Amounts are github.com/shopspring/decimal values kept at
// full precision until Round is applied for storage or display.
package money

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits persisted and displayed.
const Scale = 2

var hundred = decimal.NewFromInt(100)

// ErrMalformed is returned by Parse for anything that is not a plain decimal number.
var ErrMalformed = errors.New("malformed decimal amount")

// Zero is the additive identity, exported for readability at call sites.
var Zero = decimal.Zero

// Round rounds half away from zero at Scale digits, which is half-up for the
// non-negative amounts this system produces.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// PercentOf returns amount * rate / 100 without intermediate rounding.
func PercentOf(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Div(hundred)
}

// Mul multiplies a unit amount by an integer quantity.
func Mul(unit decimal.Decimal, qty int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(qty)))
}

// Sum adds amounts exactly.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Parse reads a decimal string such as "12.50". Exponents, blanks and
// non-numeric input are rejected.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "eE") {
		return decimal.Zero, errors.Wrapf(ErrMalformed, "%q", s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(ErrMalformed, "%q", s)
	}
	return d, nil
}

// Format renders an amount with exactly Scale fractional digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}

// IsValidRate reports whether rate is a percentage in [0, 100].
func IsValidRate(rate decimal.Decimal) bool {
	return !rate.IsNegative() && rate.LessThanOrEqual(hundred)
}
