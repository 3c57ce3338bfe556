// Package money holds the fixed-precision currency helpers shared by the ledger.
// Amounts are shopspring/decimal values with two fractional digits; binary
// floats never reach a balance.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits stored for every amount (decimal(12,2)).
const Places = 2

// Zero is the canonical zero amount.
var Zero = decimal.Zero

// Round normalizes an amount to Places, rounding half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Parse converts a textual amount ("1200", "1200.50") into a rounded decimal.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("monto inválido %q: %w", s, err)
	}
	return Round(d), nil
}

// FromCents builds an amount from integer minor units.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -Places)
}

// Cents returns the amount expressed in integer minor units.
func Cents(d decimal.Decimal) int64 {
	return Round(d).Shift(Places).IntPart()
}

// IsPositive reports whether d > 0 once rounded to Places.
func IsPositive(d decimal.Decimal) bool {
	return Round(d).IsPositive()
}

// Sum adds all amounts.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Ratio returns num/den rounded to four places, or zero when den is zero.
func Ratio(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.DivRound(den, 4)
}

// Format renders an amount as "$1,234.56" for receipts and notifications.
func Format(d decimal.Decimal) string {
	d = Round(d)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	s := d.StringFixed(Places)
	intPart, frac := s[:len(s)-Places-1], s[len(s)-Places:]

	grouped := make([]byte, 0, len(intPart)+len(intPart)/3)
	for i := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped = append(grouped, ',')
		}
		grouped = append(grouped, intPart[i])
	}
	return sign + "$" + string(grouped) + "." + frac
}
