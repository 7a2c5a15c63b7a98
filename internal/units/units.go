// Package units converts vessel speeds between the helm's internal m/s and
// the units operators configure and read.
package units

import (
	"fmt"
	"strings"
)

const (
	MPS   = "mps"
	Knots = "kt"
	KMPH  = "kmph"
	KPH   = "kph"
	MPH   = "mph"
)

// ValidUnits lists the accepted unit names.
var ValidUnits = []string{MPS, Knots, KMPH, KPH, MPH}

const (
	mpsPerKnot = 1852.0 / 3600
	mpsPerKMPH = 1000.0 / 3600
	mpsPerMPH  = 1609.344 / 3600
)

// IsValid reports whether unit is one of ValidUnits. Matching is
// case-sensitive.
func IsValid(unit string) bool {
	for _, u := range ValidUnits {
		if unit == u {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns the valid units for error messages.
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

func factor(unit string) (float64, error) {
	switch unit {
	case MPS:
		return 1, nil
	case Knots:
		return mpsPerKnot, nil
	case KMPH, KPH:
		return mpsPerKMPH, nil
	case MPH:
		return mpsPerMPH, nil
	}
	return 0, fmt.Errorf("unknown speed unit %q (valid: %s)", unit, GetValidUnitsString())
}

// ConvertSpeed converts a speed in m/s to targetUnits. Unknown units
// return the input unchanged.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	f, err := factor(targetUnits)
	if err != nil {
		return speedMPS
	}
	return speedMPS / f
}

// ToMPS converts a speed in unit to m/s.
func ToMPS(speed float64, unit string) (float64, error) {
	f, err := factor(unit)
	if err != nil {
		return 0, err
	}
	return speed * f, nil
}

// FormatSpeed renders a m/s speed in unit with one decimal, e.g. "3.9 kt".
func FormatSpeed(speedMPS float64, unit string) string {
	if !IsValid(unit) {
		unit = MPS
	}
	return fmt.Sprintf("%.1f %s", ConvertSpeed(speedMPS, unit), unit)
}
