// Package proximity classifies tracked aircraft as airborne or grounded and
// detects pairwise proximity conflicts within a single snapshot.
//
// All distances are meters, speeds are meters per second and altitudes are
// meters above the reference surface. Unit conversion from provider data
// happens before records reach this package (see pkg/snapshot).
package proximity

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMissingGeometry is returned when a record lacks latitude or longitude.
// It is never fatal: the record is excluded from pairing and kept in output.
var ErrMissingGeometry = errors.New("missing latitude/longitude")

// GroundFlag is the provider-supplied surface indicator. Providers either
// assert the aircraft is on the ground, assert it is not, or say nothing.
type GroundFlag uint8

const (
	GroundUnknown GroundFlag = iota
	GroundTrue
	GroundFalse
)

// GroundFlagFromBool converts a nullable provider flag.
func GroundFlagFromBool(b *bool) GroundFlag {
	switch {
	case b == nil:
		return GroundUnknown
	case *b:
		return GroundTrue
	default:
		return GroundFalse
	}
}

// Known reports whether the provider supplied a value.
func (f GroundFlag) Known() bool {
	return f != GroundUnknown
}

func (f GroundFlag) String() string {
	switch f {
	case GroundTrue:
		return "true"
	case GroundFalse:
		return "false"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the flag as true, false or null.
func (f GroundFlag) MarshalJSON() ([]byte, error) {
	switch f {
	case GroundTrue:
		return []byte("true"), nil
	case GroundFalse:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts true, false or null.
func (f *GroundFlag) UnmarshalJSON(data []byte) error {
	var b *bool
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("ground flag: %w", err)
	}
	*f = GroundFlagFromBool(b)
	return nil
}

// FlightState is the classifier's decision for one aircraft.
type FlightState uint8

const (
	Grounded FlightState = iota
	Airborne
)

func (s FlightState) String() string {
	if s == Airborne {
		return "In Air"
	}
	return "On Ground"
}

// MarshalJSON encodes the state with its display name.
func (s FlightState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a display name produced by MarshalJSON.
func (s *FlightState) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("flight state: %w", err)
	}
	switch name {
	case "In Air":
		*s = Airborne
	case "On Ground":
		*s = Grounded
	default:
		return fmt.Errorf("unknown flight state %q", name)
	}
	return nil
}

// ConflictEntry describes one conflicting neighbour of an aircraft.
type ConflictEntry struct {
	// Callsign of the other aircraft
	Callsign string `json:"callsign"`

	// Distance is the 3D separation rounded to whole meters
	Distance int `json:"distance"`

	// Alert is the severity tier assigned to the pair
	Alert AlertLevel `json:"alert"`

	// Category of the pair
	Category Category `json:"category"`
}

// AircraftRecord is one tracked aircraft at the current snapshot instant.
type AircraftRecord struct {
	// Identifier is stable per aircraft (ICAO 24-bit address when available)
	Identifier string `json:"identifier"`

	// Callsign is the flight number or registration, "N/A" when unknown
	Callsign string `json:"callsign"`

	// Latitude and Longitude in decimal degrees; nil when the provider
	// omitted them
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`

	// Altitude in meters, never negative after normalization
	Altitude float64 `json:"altitude"`

	// GroundSpeed in meters per second, never negative after normalization
	GroundSpeed float64 `json:"groundspeed"`

	// Heading is the ground track in degrees, nil when unknown
	Heading *float64 `json:"heading"`

	// VerticalRate in meters per second (positive = climbing)
	VerticalRate float64 `json:"verticalRate"`

	// OnGround is the provider surface flag
	OnGround GroundFlag `json:"onGround"`

	// State is the classifier result, recomputed every pass
	State FlightState `json:"status"`

	// DistanceFromReference is the surface distance to the snapshot's
	// reference point in meters
	DistanceFromReference float64 `json:"distanceFromReference"`

	// LastContact is the provider's last position timestamp
	LastContact time.Time `json:"lastContact"`

	AlertLevel AlertLevel      `json:"alertLevel"`
	Conflicts  []ConflictEntry `json:"conflicts"`
}

// HasGeometry reports whether both latitude and longitude are present.
func (r *AircraftRecord) HasGeometry() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// Position returns latitude, longitude and altitude, or ErrMissingGeometry.
func (r *AircraftRecord) Position() (lat, lon, alt float64, err error) {
	if !r.HasGeometry() {
		return 0, 0, 0, fmt.Errorf("aircraft %s: %w", r.Identifier, ErrMissingGeometry)
	}
	return *r.Latitude, *r.Longitude, r.Altitude, nil
}

// reset clears the per-pass output fields.
func (r *AircraftRecord) reset() {
	r.AlertLevel = AlertNone
	r.Conflicts = []ConflictEntry{}
}

// upgrade raises the alert level, never lowering it.
func (r *AircraftRecord) upgrade(level AlertLevel) {
	r.AlertLevel = MaxAlertLevel(r.AlertLevel, level)
}

// recordConflict appends mirrored conflict entries to a and b and upgrades
// both alert levels. It is the only place conflicts are written.
func recordConflict(a, b *AircraftRecord, distance float64, level AlertLevel, cat Category) {
	rounded := roundMeters(distance)
	a.Conflicts = append(a.Conflicts, ConflictEntry{
		Callsign: b.Callsign,
		Distance: rounded,
		Alert:    level,
		Category: cat,
	})
	b.Conflicts = append(b.Conflicts, ConflictEntry{
		Callsign: a.Callsign,
		Distance: rounded,
		Alert:    level,
		Category: cat,
	})
	a.upgrade(level)
	b.upgrade(level)
}
