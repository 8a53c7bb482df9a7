// Package units provides shared constants and validation for length units.
package units

import "strings"

// Conversion constants.
const (
	FeetToMeters  = 0.3048
	MilesToMeters = 1609.344
	// MetersToFeet converts DEM elevations (meters) to feet.
	MetersToFeet = 3.28084
)

// Unit constants
const (
	Miles      = "mi"
	Kilometers = "km"
	Meters     = "m"
	Feet       = "ft"
)

// ValidUnits contains all valid distance unit values
var ValidUnits = []string{Miles, Kilometers, Meters, Feet}

// Normalize maps common spellings to a unit constant. Unknown values are
// returned lowercased so IsValid can reject them.
func Normalize(unit string) string {
	switch u := strings.ToLower(strings.TrimSpace(unit)); u {
	case "mile", "miles":
		return Miles
	case "kilometer", "kilometers", "kilometre", "kilometres":
		return Kilometers
	case "meter", "meters", "metre", "metres":
		return Meters
	case "foot", "feet":
		return Feet
	default:
		return u
	}
}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ToMeters converts a distance in the given unit to meters.
// Unknown units are treated as meters.
func ToMeters(value float64, unit string) float64 {
	switch Normalize(unit) {
	case Miles:
		return value * MilesToMeters
	case Kilometers:
		return value * 1000
	case Feet:
		return value * FeetToMeters
	default:
		return value
	}
}

// MetersToFeetDistance converts a planar distance in meters to international feet.
func MetersToFeetDistance(m float64) float64 {
	return m / FeetToMeters
}

// ElevationMetersToFeet converts a raster elevation in meters to feet.
func ElevationMetersToFeet(m float64) float64 {
	return m * MetersToFeet
}
