// Package money holds the single money representation used across the
// service: integer euro cents. Decimal strings only appear at the gateway
// boundary and are converted with shopspring/decimal.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// EpsilonCents is the tolerance applied when comparing an expected amount
// against the amount the gateway reports as collected.
const EpsilonCents int64 = 1

// Currency is the only currency the venue settles in.
const Currency = "EUR"

// Clamp floors negative amounts to zero. Quantities and captured prices are
// validated on the way in, so a negative intermediate total is treated as
// zero rather than an error.
func Clamp(cents int64) int64 {
	if cents < 0 {
		return 0
	}
	return cents
}

// LineTotal multiplies a captured unit price by a quantity.
func LineTotal(unitPriceCents int64, qty int) int64 {
	return Clamp(unitPriceCents * int64(qty))
}

// WithinEpsilon reports whether two amounts agree within EpsilonCents.
func WithinEpsilon(a, b int64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= EpsilonCents
}

// ParseDecimal converts a gateway decimal string ("8.50") into cents,
// rounding half-up at the second decimal place.
func ParseDecimal(value string) (int64, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", value, err)
	}
	return d.Shift(2).Round(0).IntPart(), nil
}

// FormatDecimal renders cents as the two-decimal string the gateway expects.
func FormatDecimal(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
