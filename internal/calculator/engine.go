// Package calculator derives a session's totals from its items, deductions
// and percent rate. Everything here is pure: no I/O, no state, same inputs
// give the same outputs.
package calculator

import (
	"math"

	"github.com/mmynk/tithe/internal/models"
)

// Totals are the derived quantities of a session.
type Totals struct {
	// Sum is the base sum of all item values.
	Sum float64

	// PercentAmount is Sum × Percent/100.
	PercentAmount float64

	// DeductionsSum is the sum of all deduction amounts.
	DeductionsSum float64

	// Net is PercentAmount − DeductionsSum.
	Net float64

	// RemainingToDeduct is the part of the percentage share not yet covered
	// by deductions: max(Net, 0).
	RemainingToDeduct float64

	// OverDeducted is how far deductions exceed the percentage share:
	// max(−Net, 0).
	OverDeducted float64

	// Total is Sum + PercentAmount − DeductionsSum.
	Total float64
}

// IsOverDeducted reports whether deductions exceed the percentage share.
func (t Totals) IsOverDeducted() bool {
	return t.OverDeducted > 0
}

// Calculate computes the totals for the given items, deductions and percent.
// Non-finite values are treated as 0, like blank input.
func Calculate(items []models.CalcItem, deductions []models.Deduction, percent float64) Totals {
	var t Totals
	for _, item := range items {
		t.Sum += finite(item.Value)
	}
	for _, d := range deductions {
		t.DeductionsSum += finite(d.Amount)
	}

	t.PercentAmount = t.Sum * (finite(percent) / 100)
	t.Net = t.PercentAmount - t.DeductionsSum
	if t.Net > 0 {
		t.RemainingToDeduct = t.Net
	}
	if t.Net < 0 {
		t.OverDeducted = -t.Net
	}
	t.Total = t.Sum + t.PercentAmount - t.DeductionsSum
	return t
}

// CalculateSession computes the totals of a whole session.
func CalculateSession(s *models.CalcSession) Totals {
	if s == nil {
		return Totals{}
	}
	return Calculate(s.Items, s.Deductions, s.Percent)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
