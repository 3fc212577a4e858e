// Package money provides integer minor-unit money arithmetic. All pricing
// computation in the system happens on Minor values; conversion to a
// display-friendly decimal happens only at the JSON boundary.
package money

import (
	"github.com/shopspring/decimal"
)

// Minor is an amount in the currency's smallest denomination (cents, agorot).
type Minor = int64

// MinorPerMajor is the number of minor units in one major unit.
const MinorPerMajor = 100

// basisPointDenom is the divisor for basis-point rates (10000 bp = 100%).
const basisPointDenom = 10000

// Percent applies a basis-point rate to an amount, truncating toward zero.
// 1000 bp = 10%.
func Percent(amount Minor, basisPoints int64) Minor {
	return amount * basisPoints / basisPointDenom
}

// Clamp caps amount to the [0, max] range. Used for discount capping: a
// discount may never exceed the remaining eligible subtotal and never go
// negative.
func Clamp(amount, max Minor) Minor {
	if amount < 0 {
		return 0
	}
	if amount > max {
		return max
	}
	return amount
}

// SplitVAT derives the pre-tax portion and the tax portion of a VAT-inclusive
// total for a rate given in basis points. The tax component is back-derived by
// division, never added on top, so before+vat == total always holds.
func SplitVAT(total Minor, rateBasisPoints int64) (before, vat Minor) {
	if rateBasisPoints <= 0 {
		return total, 0
	}
	before = total * basisPointDenom / (basisPointDenom + rateBasisPoints)
	return before, total - before
}

// ToMajor converts a minor-unit amount into a display decimal with two
// fraction digits (e.g. 1150 -> 11.50).
func ToMajor(amount Minor) decimal.Decimal {
	return decimal.New(amount, -2)
}

// MajorString formats a minor-unit amount as a major-unit string.
func MajorString(amount Minor) string {
	return ToMajor(amount).StringFixed(2)
}
