package calculator

import (
	"math"
	"strconv"
	"strings"
)

// ParseAmount converts user input to a number.
// Malformed input is not an error: blank, unparsable and non-finite values
// all become 0. A decimal comma is accepted ("12,5" == 12.5).
func ParseAmount(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	s = strings.Replace(s, ",", ".", 1)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ParsePercent is ParseAmount for the percent rate, which is never negative.
func ParsePercent(raw string) float64 {
	return ClampPercent(ParseAmount(raw))
}

// ClampPercent maps negative and non-finite rates to 0.
func ClampPercent(p float64) float64 {
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
		return 0
	}
	return p
}
