package coordinates

import (
	"math"
)

// Constants for coordinate calculations
const (
	// DegreesToRadians converts degrees to radians
	DegreesToRadians = math.Pi / 180.0

	// RadiansToDegrees converts radians to degrees
	RadiansToDegrees = 180.0 / math.Pi

	// EarthRadiusMeters is the spherical Earth radius used by the haversine formula
	EarthRadiusMeters = 6371000.0

	// EarthRadiusKm is the Earth's radius in kilometers (WGS84 mean radius)
	EarthRadiusKm = EarthRadiusMeters / 1000.0

	// MetersPerNauticalMile is the exact length of one international nautical mile
	MetersPerNauticalMile = 1852.0

	// FeetToMeters converts feet to meters
	FeetToMeters = 0.3048

	// MetersToFeet converts meters to feet
	MetersToFeet = 3.28084

	// KnotsToMetersPerSecond converts knots to meters per second
	KnotsToMetersPerSecond = 0.514444

	// MetersPerSecondToKnots converts meters per second to knots
	MetersPerSecondToKnots = 1.9438444924

	// FeetPerMinuteToMetersPerSecond converts ft/min to m/s
	FeetPerMinuteToMetersPerSecond = FeetToMeters / 60.0

	// DefaultPrefilterRadiusMeters is the horizontal catchment radius around a
	// reference point (~30 statute miles).
	DefaultPrefilterRadiusMeters = 48280.0
)

// Geographic represents a position on Earth's surface.
// Uses the WGS84 coordinate system (same as GPS).
type Geographic struct {
	// Latitude in decimal degrees (-90 to +90)
	// Positive = North, Negative = South
	Latitude float64 `json:"latitude"`

	// Longitude in decimal degrees (-180 to +180)
	// Positive = East, Negative = West
	Longitude float64 `json:"longitude"`

	// Altitude in meters above the reference surface
	Altitude float64 `json:"altitude"`
}

// ToRadians converts the Geographic coordinates to radians.
// Returns (latRad, lonRad, altMeters).
func (g Geographic) ToRadians() (float64, float64, float64) {
	return g.Latitude * DegreesToRadians,
		g.Longitude * DegreesToRadians,
		g.Altitude
}

// NormalizeAzimuth ensures azimuth is in the range [0, 360).
func NormalizeAzimuth(azimuth float64) float64 {
	az := math.Mod(azimuth, 360.0)
	if az < 0 {
		az += 360.0
	}
	return az
}

// Bearing calculates the initial bearing (forward azimuth) from one point to another.
// Uses spherical trigonometry to calculate the bearing along a great circle.
// Returns bearing in degrees (0-360), where 0/360 = North, 90 = East, 180 = South, 270 = West.
func Bearing(from, to Geographic) float64 {
	lat1 := from.Latitude * DegreesToRadians
	lon1 := from.Longitude * DegreesToRadians
	lat2 := to.Latitude * DegreesToRadians
	lon2 := to.Longitude * DegreesToRadians

	dLon := lon2 - lon1
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	return NormalizeAzimuth(math.Atan2(y, x) * RadiansToDegrees)
}

// SurfaceDistance calculates the great-circle distance between two points
// in meters using the haversine formula on a sphere of radius
// EarthRadiusMeters. Altitude is ignored.
func SurfaceDistance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * DegreesToRadians
	lat2Rad := lat2 * DegreesToRadians
	dLat := lat2Rad - lat1Rad
	dLon := (lon2 - lon1) * DegreesToRadians

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// DistanceNauticalMiles calculates the great-circle distance between two points.
// Returns distance in nautical miles.
func DistanceNauticalMiles(from, to Geographic) float64 {
	return SurfaceDistance(from.Latitude, from.Longitude, to.Latitude, to.Longitude) / MetersPerNauticalMile
}

// NauticalMilesToMeters converts a distance in nautical miles to meters.
func NauticalMilesToMeters(nm float64) float64 {
	return nm * MetersPerNauticalMile
}

// MetersToNauticalMiles converts a distance in meters to nautical miles.
func MetersToNauticalMiles(m float64) float64 {
	return m / MetersPerNauticalMile
}
