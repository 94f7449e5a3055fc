// Package units holds the distance and speed conversions shared by the ride and analytics packages.
package units

const (
	MetersPerMile = 1609.344
	mpsToMph      = 2.23694
)

// MetersToMiles converts a distance in meters to statute miles.
func MetersToMiles(m float64) float64 {
	return m / MetersPerMile
}

// MpsToMph converts meters per second to miles per hour.
func MpsToMph(mps float64) float64 {
	return mps * mpsToMph
}
