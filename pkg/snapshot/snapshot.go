// Package snapshot turns raw provider observations into the flat, SI-unit
// record set a proximity pass runs on.
package snapshot

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/unklstewy/ads-proximity/pkg/adsb"
	"github.com/unklstewy/ads-proximity/pkg/coordinates"
	"github.com/unklstewy/ads-proximity/pkg/proximity"
)

// UnknownCallsign is used when a provider reports no callsign.
const UnknownCallsign = "N/A"

// Snapshot is one polling cycle's aircraft around a reference point.
type Snapshot struct {
	ID        uuid.UUID              `json:"snapshotId"`
	Airport   string                 `json:"airport"`
	Source    string                 `json:"source"`
	Reference coordinates.Geographic `json:"reference"`
	FetchedAt time.Time              `json:"fetchedAt"`

	Records []proximity.AircraftRecord `json:"aircraft"`

	// Excluded counts observations dropped for lack of a position
	Excluded int `json:"excluded"`

	// OutOfRange counts observations beyond the pre-filter radius
	OutOfRange int `json:"outOfRange"`

	// Stats is filled in after a detection pass
	Stats proximity.PassStats `json:"stats"`
}

// Normalizer converts raw observations for one reference point.
type Normalizer struct {
	Airport   string
	Source    string
	Reference coordinates.Geographic

	// RadiusMeters drops aircraft farther than this from Reference.
	// Zero disables the filter.
	RadiusMeters float64

	// Now stamps FetchedAt; defaults to time.Now
	Now func() time.Time
}

// Normalize converts raw observations into a Snapshot. Output order follows
// input order.
func (n Normalizer) Normalize(raw []adsb.Aircraft) Snapshot {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}

	snap := Snapshot{
		ID:        uuid.New(),
		Airport:   n.Airport,
		Source:    n.Source,
		Reference: n.Reference,
		FetchedAt: now().UTC(),
		Records:   make([]proximity.AircraftRecord, 0, len(raw)),
	}

	for i, ac := range raw {
		if ac.Latitude == nil || ac.Longitude == nil {
			snap.Excluded++
			continue
		}

		rec := Convert(ac)
		if rec.Identifier == UnknownCallsign {
			rec.Identifier = fmt.Sprintf("unknown-%d", i)
		}

		dist := coordinates.SurfaceDistance(n.Reference.Latitude, n.Reference.Longitude, *ac.Latitude, *ac.Longitude)
		if n.RadiusMeters > 0 && dist > n.RadiusMeters {
			snap.OutOfRange++
			continue
		}
		rec.DistanceFromReference = math.Round(dist)

		snap.Records = append(snap.Records, rec)
	}

	return snap
}

// Convert maps one observation to a record in SI units. Missing numeric
// values become zero; altitude is clamped to zero and rounded to whole
// meters; ground speed is clamped to zero.
func Convert(ac adsb.Aircraft) proximity.AircraftRecord {
	callsign := strings.TrimSpace(ac.Callsign)
	if callsign == "" {
		callsign = UnknownCallsign
	}
	id := strings.TrimSpace(ac.ICAO)
	if id == "" {
		id = callsign
	}

	altitude, speed, climb := toSI(ac.Units, value(ac.Altitude), value(ac.GroundSpeed), value(ac.VerticalRate))

	rec := proximity.AircraftRecord{
		Identifier:   id,
		Callsign:     callsign,
		Latitude:     copyFloat(ac.Latitude),
		Longitude:    copyFloat(ac.Longitude),
		Altitude:     math.Round(math.Max(altitude, 0)),
		GroundSpeed:  math.Max(speed, 0),
		Heading:      copyFloat(ac.Track),
		VerticalRate: climb,
		OnGround:     proximity.GroundFlagFromBool(ac.OnGround),
		LastContact:  ac.LastSeen.UTC(),
		Conflicts:    []proximity.ConflictEntry{},
	}
	return rec
}

// toSI converts altitude, ground speed and vertical rate to meters and
// meters per second.
func toSI(units adsb.UnitSystem, altitude, speed, climb float64) (float64, float64, float64) {
	switch units {
	case adsb.UnitsAviation:
		return altitude * coordinates.FeetToMeters,
			speed * coordinates.KnotsToMetersPerSecond,
			climb * coordinates.FeetPerMinuteToMetersPerSecond
	case adsb.UnitsAeroAPI:
		return altitude * 100 * coordinates.FeetToMeters,
			speed * coordinates.KnotsToMetersPerSecond,
			climb * coordinates.FeetPerMinuteToMetersPerSecond
	default:
		return altitude, speed, climb
	}
}

func value(p *float64) float64 {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return 0
	}
	return *p
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// LevelCounts tallies records per alert level.
func (s *Snapshot) LevelCounts() map[proximity.AlertLevel]int {
	counts := make(map[proximity.AlertLevel]int, 4)
	for _, r := range s.Records {
		counts[r.AlertLevel]++
	}
	return counts
}

// BySeverity returns the records ordered most severe first, then by
// distance from the reference point. Records is not modified.
func (s *Snapshot) BySeverity() []proximity.AircraftRecord {
	out := make([]proximity.AircraftRecord, len(s.Records))
	copy(out, s.Records)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AlertLevel != out[j].AlertLevel {
			return out[i].AlertLevel > out[j].AlertLevel
		}
		return out[i].DistanceFromReference < out[j].DistanceFromReference
	})
	return out
}
