package model

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Supported quote precision. Forex feeds quote JPY crosses with 3 digits and
// everything else with 5; the two pip tiers below cover both.
const (
	MinDigits = 1
	MaxDigits = 8
)

// ValidateDigits reports ErrInvalidPrecision for digits outside [MinDigits, MaxDigits].
func ValidateDigits(digits int) error {
	if digits < MinDigits || digits > MaxDigits {
		return fmt.Errorf("digits %d: %w", digits, ErrInvalidPrecision)
	}
	return nil
}

// PipSize returns the price value of one pip: 0.01 up to 3 digits, 0.0001 from 4.
func PipSize(digits int) float64 {
	if digits <= 3 {
		return 0.01
	}
	return 0.0001
}

// ToPips converts an absolute price distance to whole pips.
func ToPips(delta float64, digits int) int {
	return int(math.Round(math.Abs(delta) / PipSize(digits)))
}

// FromPips converts a pip count to a price distance rounded to digits.
func FromPips(pips float64, digits int) float64 {
	return RoundPrice(pips*PipSize(digits), digits)
}

// RoundPrice rounds v to the given number of decimal places, half away from zero.
func RoundPrice(v float64, digits int) float64 {
	return decimal.NewFromFloat(v).Round(int32(digits)).InexactFloat64()
}
