package format

import "fmt"

// EUR renders an amount for the dashboard. Amounts below one cent but above
// zero render as a less-than indicator instead of a misleading "€0.00".
func EUR(amount float64) string {
	if amount > 0 && amount < 0.01 {
		return "<€0.01"
	}
	return fmt.Sprintf("€%.2f", amount)
}

// EURPerUnit renders a unit-economics value, keeping sub-cent precision
// visible for per-email costs.
func EURPerUnit(amount float64) string {
	if amount > 0 && amount < 0.01 {
		return fmt.Sprintf("€%.4f", amount)
	}
	return fmt.Sprintf("€%.2f", amount)
}
