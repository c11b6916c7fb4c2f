// Package drying computes the derived fields of a drying record: the final
// batch weight and the consume-by due date.
package drying

import (
	"fmt"
	"math"
	"time"
)

// ValidationError reports a degenerate input that would make a derivation
// meaningless (division by zero, negative weight).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// FinalWeight derives the post-drying batch weight from the initial weight
// and the moisture percentages:
//
//	final = initial * (1 - finalMoisture/100) / (1 - initialMoisture/100)
//
// rounded to two decimals. Moisture values at or above 100 make the formula
// degenerate and are rejected before the division happens.
func FinalWeight(initialWeight, initialMoisture, finalMoisture float64) (float64, error) {
	if initialWeight <= 0 {
		return 0, &ValidationError{Field: "initial_weight", Reason: "must be positive"}
	}
	if initialMoisture >= 100 || initialMoisture < 0 {
		return 0, &ValidationError{Field: "initial_moisture", Reason: "must be in [0, 100)"}
	}
	if finalMoisture >= 100 || finalMoisture < 0 {
		return 0, &ValidationError{Field: "final_moisture", Reason: "must be in [0, 100)"}
	}
	w := Round2(initialWeight * ((1 - finalMoisture/100) / (1 - initialMoisture/100)))
	if w <= 0 {
		return 0, &ValidationError{Field: "final_weight", Reason: "derivation produced a non-positive weight"}
	}
	return w, nil
}

// DueDate computes the consume-by date from the drying date and the target
// final moisture. The dispatch is literal equality on the standard moisture
// targets (14% and 12%); any other value falls through to the long shelf
// life. Exact float comparison is intentional here: these are fixed
// presentation-standard targets, not measured values.
func DueDate(dateDried time.Time, finalMoisture float64) time.Time {
	switch {
	case finalMoisture == 14:
		return dateDried.AddDate(0, 0, 21)
	case finalMoisture == 12:
		return dateDried.AddDate(0, 12, 0)
	default:
		return dateDried.AddDate(1, 3, 0)
	}
}

// FormatDryingTime renders a predicted drying duration as "H:MM".
func FormatDryingTime(hours, minutes int) string {
	return fmt.Sprintf("%d:%02d", hours, minutes)
}

// SplitHours converts fractional hours into whole hours and minutes.
func SplitHours(h float64) (hours, minutes int) {
	hours = int(h)
	minutes = int(math.Round((h - float64(hours)) * 60))
	if minutes == 60 {
		hours++
		minutes = 0
	}
	return hours, minutes
}

// Round2 rounds to two decimal places.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
