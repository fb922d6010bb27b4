package coordinates

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// WGS-84 ellipsoid parameters.
const (
	// WGS84SemiMajorAxis is the equatorial radius in meters
	WGS84SemiMajorAxis = 6378137.0

	// WGS84Flattening is the ellipsoid flattening
	WGS84Flattening = 1.0 / 298.257223563

	// WGS84EccentricitySquared is the first eccentricity squared, f(2-f)
	WGS84EccentricitySquared = WGS84Flattening * (2.0 - WGS84Flattening)
)

// SeparationFunc computes the 3D distance in meters between two positions
// given as (lat, lon, alt) triples in degrees and meters.
type SeparationFunc func(lat1, lon1, alt1, lat2, lon2, alt2 float64) float64

// ToECEF converts a geodetic position to Earth-centered Earth-fixed
// Cartesian coordinates (meters) on the WGS-84 ellipsoid.
func ToECEF(g Geographic) r3.Vec {
	phi, lam, h := g.ToRadians()
	sinPhi, cosPhi := math.Sin(phi), math.Cos(phi)
	sinLam, cosLam := math.Sin(lam), math.Cos(lam)

	// Prime vertical radius of curvature
	n := WGS84SemiMajorAxis / math.Sqrt(1.0-WGS84EccentricitySquared*sinPhi*sinPhi)

	return r3.Vec{
		X: (n + h) * cosPhi * cosLam,
		Y: (n + h) * cosPhi * sinLam,
		Z: (n*(1.0-WGS84EccentricitySquared) + h) * sinPhi,
	}
}

// SeparationDistance3D returns the straight-line distance in meters between
// two positions after converting both to WGS-84 ECEF coordinates. This is
// the default conflict metric; it stays accurate at low altitude and near
// the poles where the flat approximation drifts.
func SeparationDistance3D(lat1, lon1, alt1, lat2, lon2, alt2 float64) float64 {
	p := ToECEF(Geographic{Latitude: lat1, Longitude: lon1, Altitude: alt1})
	q := ToECEF(Geographic{Latitude: lat2, Longitude: lon2, Altitude: alt2})
	return r3.Norm(r3.Sub(p, q))
}

// FlatSeparationDistance3D combines the haversine surface distance with the
// absolute altitude delta: sqrt(horizontal² + vertical²).
func FlatSeparationDistance3D(lat1, lon1, alt1, lat2, lon2, alt2 float64) float64 {
	horizontal := SurfaceDistance(lat1, lon1, lat2, lon2)
	vertical := math.Abs(alt1 - alt2)
	return math.Hypot(horizontal, vertical)
}
