// Package billing holds the pure pricing functions for rental orders.
// No I/O, no clocks; callers pass times and money in explicitly.
// Money is int64 in the currency's smallest unit, rounded half-up at
// every billing boundary.
package billing

import (
	"math"
	"time"
)

// Policy selects how the elapsed-time multiplier is derived once a
// rental runs past the base 24-hour block.
type Policy string

const (
	// PolicyLinear includes the first 24 hours in the base price and
	// bills the rest proportionally: 1 + (h-24)/24.
	PolicyLinear Policy = "linear"

	// PolicyDaily bills strictly pro-rata from hour zero:
	// floor(h/24) + (h%24)/24. Differs from linear only under 24h.
	PolicyDaily Policy = "daily"
)

// ParsePolicy maps a config string to a Policy, defaulting to linear.
func ParsePolicy(s string) Policy {
	if Policy(s) == PolicyDaily {
		return PolicyDaily
	}
	return PolicyLinear
}

// Line is one priced order line.
type Line struct {
	Quantity  int64
	UnitPrice int64
}

// Duration is the elapsed rental time broken down for billing.
type Duration struct {
	Days       int64
	Hours      int64
	Multiplier float64
}

// InitialCharge computes the creation-time estimate.
// subtotal = sum(quantity * unit price), tax rounded half-up.
func InitialCharge(lines []Line, taxPercent float64) (subtotal, tax, total int64) {
	for _, l := range lines {
		subtotal += l.Quantity * l.UnitPrice
	}
	tax = roundHalfUp(float64(subtotal) * taxPercent / 100)
	total = subtotal + tax
	return subtotal, tax, total
}

// ElapsedMultiplier derives the billing duration between start and now.
// Elapsed time is counted in whole hours, rounded up, minimum one hour.
func ElapsedMultiplier(start, now time.Time, p Policy) Duration {
	totalHours := int64(math.Ceil(now.Sub(start).Hours()))
	if totalHours < 1 {
		totalHours = 1
	}

	d := Duration{
		Days:  totalHours / 24,
		Hours: totalHours % 24,
	}

	switch p {
	case PolicyDaily:
		d.Multiplier = float64(totalHours/24) + float64(totalHours%24)/24
	default:
		if totalHours <= 24 {
			d.Multiplier = 1
		} else {
			d.Multiplier = 1 + float64(totalHours-24)/24
		}
	}
	return d
}

// ReturnAmount prices one return event: unit price * quantity scaled by
// the multiplier, rounded half-up.
func ReturnAmount(unitPrice, quantity int64, multiplier float64) int64 {
	return roundHalfUp(float64(unitPrice) * float64(quantity) * multiplier)
}

// ApplyAdvance returns the slice of the advance payment consumed by the
// amount due. The remaining advance (advance - usedSoFar) is consumed at
// most once across the order's lifetime; callers add the result to
// usedSoFar.
func ApplyAdvance(advance, usedSoFar, due int64) int64 {
	remaining := advance - usedSoFar
	if remaining <= 0 || due <= 0 {
		return 0
	}
	if due < remaining {
		return due
	}
	return remaining
}

func roundHalfUp(x float64) int64 {
	return int64(math.Floor(x + 0.5))
}
