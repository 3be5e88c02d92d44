package consumption

import (
	"github.com/shopspring/decimal"

	"github.com/septivank/submetering-worker/internal/baseline"
)

// Compute returns the consumption of a reading against its baseline.
// Without a baseline the whole counter value counts as consumption. A negative
// result (meter replacement or rollover) is returned unchanged.
func Compute(current decimal.Decimal, b baseline.Result) decimal.Decimal {
	if !b.HasValue() {
		return current
	}
	return current.Sub(b.Value)
}

// IsDecrease reports whether current is below an existing baseline value
func IsDecrease(current decimal.Decimal, b baseline.Result) bool {
	return b.HasValue() && current.LessThan(b.Value)
}
