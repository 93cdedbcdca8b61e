// Package core holds the currency arithmetic, formatting and domain types
// shared by the ledger, the rate refresher and the reports.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a user supplied amount. Commas are treated as
// thousands separators and stripped, so "1,234.50" parses as 1234.5.
// Only strictly positive finite amounts are accepted.
//
// Examples:
//
//	ParseAmount("12.34")    -> 12.34, nil
//	ParseAmount("1,000")    -> 1000, nil
//	ParseAmount("0")        -> 0, ErrInvalidAmount
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return 0, ErrInvalidAmount
	}
	v, _ := d.Float64()
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// ValidAmount reports whether v can be stored as a transaction amount.
func ValidAmount(v float64) bool {
	return v > 0 && Finite(v)
}

// Finite reports whether v is neither infinite nor NaN.
func Finite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Round2 rounds v half away from zero to two decimal places. Infinities
// and NaN are returned unchanged.
func Round2(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	r, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return r
}
