// Package adsb fetches raw aircraft observations from online ADS-B providers.
//
// Providers disagree on units and on which fields they report, so Aircraft
// keeps every numeric field nullable and records the provider's UnitSystem.
// Conversion to SI happens in pkg/snapshot.
package adsb

import (
	"context"
	"fmt"
	"math"
	"time"
)

// UnitSystem declares the units a provider reports in.
type UnitSystem uint8

const (
	// UnitsAviation is feet, knots and feet per minute (airplanes.live).
	UnitsAviation UnitSystem = iota

	// UnitsSI is meters, meters per second and meters per second (OpenSky).
	UnitsSI

	// UnitsAeroAPI is hundreds of feet and knots (FlightAware AeroAPI).
	UnitsAeroAPI
)

func (u UnitSystem) String() string {
	switch u {
	case UnitsAviation:
		return "aviation"
	case UnitsSI:
		return "si"
	case UnitsAeroAPI:
		return "aeroapi"
	default:
		return fmt.Sprintf("UnitSystem(%d)", u)
	}
}

// Aircraft is one raw observation as reported by a provider.
// A nil field means the provider did not report it.
type Aircraft struct {
	// ICAO is the 24-bit ICAO address (e.g., "a12345") or another stable
	// per-aircraft identifier the provider offers
	ICAO string

	// Callsign is the flight number or aircraft registration, untrimmed
	Callsign string

	// Latitude and Longitude in decimal degrees (WGS84)
	Latitude  *float64
	Longitude *float64

	// Altitude above mean sea level in the provider's units
	Altitude *float64

	// GroundSpeed in the provider's units
	GroundSpeed *float64

	// Track is the ground track in degrees (0 = North, 90 = East)
	Track *float64

	// VerticalRate in the provider's units (positive = climbing)
	VerticalRate *float64

	// OnGround is the provider's surface flag
	OnGround *bool

	// LastSeen is the timestamp of the last position update
	LastSeen time.Time

	// Units declares how Altitude, GroundSpeed and VerticalRate are expressed
	Units UnitSystem
}

// DataSource is the interface that all ADS-B data providers implement.
type DataSource interface {
	// Name identifies the provider in logs and API responses.
	Name() string

	// GetAircraft returns the aircraft currently tracked around a point.
	// centerLat/centerLon are decimal degrees, radiusNM nautical miles.
	GetAircraft(ctx context.Context, centerLat, centerLon, radiusNM float64) ([]Aircraft, error)

	// Close releases any resources held by the source.
	Close() error
}

// BoundingBox is a latitude/longitude rectangle in decimal degrees.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// BoxAround returns a box of ±halfDegrees around a point.
func BoxAround(lat, lon, halfDegrees float64) BoundingBox {
	return BoundingBox{
		MinLat: lat - halfDegrees,
		MaxLat: lat + halfDegrees,
		MinLon: lon - halfDegrees,
		MaxLon: lon + halfDegrees,
	}
}

// BoxForRadius returns the smallest box containing a circle of radiusNM.
// One nautical mile is one minute of latitude.
func BoxForRadius(lat, lon, radiusNM float64) BoundingBox {
	dLat := radiusNM / 60.0
	cosLat := math.Cos(lat * math.Pi / 180.0)
	dLon := 180.0
	if cosLat > 1e-6 {
		dLon = math.Min(radiusNM/(60.0*cosLat), 180.0)
	}
	return BoundingBox{
		MinLat: math.Max(lat-dLat, -90),
		MaxLat: math.Min(lat+dLat, 90),
		MinLon: math.Max(lon-dLon, -180),
		MaxLon: math.Min(lon+dLon, 180),
	}
}
