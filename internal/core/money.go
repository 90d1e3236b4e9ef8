// Package core provides money parsing and rounding utilities.
//
// Amounts travel as float64 dollars through the API and the context
// snapshot. Parsing and rounding go through decimal arithmetic so that
// values like 0.49999999999999994 or "1.005" round the way a person expects.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var half = decimal.NewFromFloat(0.5)

// ParseAmount converts a human-entered amount to a float.
//
// It accepts an optional currency symbol, thousands separators ("12,345.67")
// and a trailing comma decimal ("12,34"). Negative amounts are rejected.
//
// Examples:
//
//	ParseAmount("$1,234.50") -> 1234.5, nil
//	ParseAmount("12,34")     -> 12.34, nil
//	ParseAmount("-3")        -> 0, ErrInvalidAmount
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "$€£ ")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, ErrInvalidAmount
	}
	// A single comma followed by exactly two digits is a decimal separator.
	if i := strings.LastIndex(s, ","); i >= 0 && !strings.Contains(s, ".") && len(s)-i == 3 && strings.Count(s, ",") == 1 {
		s = s[:i] + "." + s[i+1:]
	}
	s = strings.ReplaceAll(s, ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return 0, ErrInvalidAmount
	}
	return d.InexactFloat64(), nil
}

// RoundWhole rounds v to the nearest integer, halves rounding toward
// positive infinity (-2.5 -> -2, 2.5 -> 3).
func RoundWhole(v float64) float64 {
	v = finite(v)
	if math.Abs(v) >= 1<<52 {
		// already integral
		return v
	}
	return decimal.NewFromFloat(v).Add(half).Floor().InexactFloat64()
}

// RoundCents rounds v to two decimal places.
func RoundCents(v float64) float64 {
	v = finite(v)
	if math.Abs(v) >= 1<<52 {
		return v
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// finite saturates overflowed values at the largest float and maps NaN to
// zero, so projections that overflow still encode as JSON.
func finite(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case math.IsInf(v, 1):
		return math.MaxFloat64
	case math.IsInf(v, -1):
		return -math.MaxFloat64
	}
	return v
}

// FormatUSD formats v as a dollar amount with thousands separators,
// e.g. "$12,345.67" or "-$3.10".
func FormatUSD(v float64) string {
	d := decimal.NewFromFloat(finite(v)).Round(2)
	neg := d.IsNegative()
	s := d.Abs().StringFixed(2)
	intPart, frac := s[:len(s)-3], s[len(s)-2:]

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := "$" + b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}
