package proximity

import (
	"math"

	"github.com/unklstewy/ads-proximity/pkg/coordinates"
)

// Classifier bounds. Speeds are m/s, vertical rates m/s, altitudes meters.
const (
	// Ground-flag sanity clamp: readings beyond these with an explicit
	// on-ground flag are treated as sensor noise.
	GroundFlagNoiseSpeed        = 120 * coordinates.KnotsToMetersPerSecond
	GroundFlagNoiseVerticalRate = 2.0
	GroundFlagNoiseAltitude     = 30.0

	// Strong airborne cues: any one of these classifies Airborne.
	AirborneAltitude     = 120.0
	AirborneSpeed        = 80 * coordinates.KnotsToMetersPerSecond
	AirborneVerticalRate = 2.5

	// Strong grounded cues: all three together classify Grounded.
	GroundedAltitude     = 15.0
	GroundedSpeed        = 25 * coordinates.KnotsToMetersPerSecond
	GroundedVerticalRate = 0.5

	// Tie-break gates. A true flag is rejected when kinematics look
	// moderately airborne; a false flag is rejected when they look
	// moderately grounded.
	TieBreakAirborneAltitude     = 60.0
	TieBreakAirborneSpeed        = 40 * coordinates.KnotsToMetersPerSecond
	TieBreakAirborneVerticalRate = 1.0
	TieBreakGroundedAltitude     = 30.0
	TieBreakGroundedSpeed        = 15 * coordinates.KnotsToMetersPerSecond
	TieBreakGroundedVerticalRate = 1.0
)

// ClassifierThresholds holds every tunable bound of the decision tree.
type ClassifierThresholds struct {
	GroundFlagNoiseSpeed        float64 `json:"ground_flag_noise_speed"`
	GroundFlagNoiseVerticalRate float64 `json:"ground_flag_noise_vertical_rate"`
	GroundFlagNoiseAltitude     float64 `json:"ground_flag_noise_altitude"`

	AirborneAltitude     float64 `json:"airborne_altitude"`
	AirborneSpeed        float64 `json:"airborne_speed"`
	AirborneVerticalRate float64 `json:"airborne_vertical_rate"`

	GroundedAltitude     float64 `json:"grounded_altitude"`
	GroundedSpeed        float64 `json:"grounded_speed"`
	GroundedVerticalRate float64 `json:"grounded_vertical_rate"`

	TieBreakAirborneAltitude     float64 `json:"tie_break_airborne_altitude"`
	TieBreakAirborneSpeed        float64 `json:"tie_break_airborne_speed"`
	TieBreakAirborneVerticalRate float64 `json:"tie_break_airborne_vertical_rate"`
	TieBreakGroundedAltitude     float64 `json:"tie_break_grounded_altitude"`
	TieBreakGroundedSpeed        float64 `json:"tie_break_grounded_speed"`
	TieBreakGroundedVerticalRate float64 `json:"tie_break_grounded_vertical_rate"`
}

// DefaultClassifierThresholds returns the package constants.
func DefaultClassifierThresholds() ClassifierThresholds {
	return ClassifierThresholds{
		GroundFlagNoiseSpeed:        GroundFlagNoiseSpeed,
		GroundFlagNoiseVerticalRate: GroundFlagNoiseVerticalRate,
		GroundFlagNoiseAltitude:     GroundFlagNoiseAltitude,

		AirborneAltitude:     AirborneAltitude,
		AirborneSpeed:        AirborneSpeed,
		AirborneVerticalRate: AirborneVerticalRate,

		GroundedAltitude:     GroundedAltitude,
		GroundedSpeed:        GroundedSpeed,
		GroundedVerticalRate: GroundedVerticalRate,

		TieBreakAirborneAltitude:     TieBreakAirborneAltitude,
		TieBreakAirborneSpeed:        TieBreakAirborneSpeed,
		TieBreakAirborneVerticalRate: TieBreakAirborneVerticalRate,
		TieBreakGroundedAltitude:     TieBreakGroundedAltitude,
		TieBreakGroundedSpeed:        TieBreakGroundedSpeed,
		TieBreakGroundedVerticalRate: TieBreakGroundedVerticalRate,
	}
}

// Classifier decides whether an aircraft is airborne or grounded. The zero
// value uses zero bounds; construct with NewClassifier for the defaults.
type Classifier struct {
	Thresholds ClassifierThresholds
}

// NewClassifier returns a classifier using DefaultClassifierThresholds.
func NewClassifier() Classifier {
	return Classifier{Thresholds: DefaultClassifierThresholds()}
}

// Classify applies, in order: the ground-flag sanity clamp, strong airborne
// cues, strong grounded cues, the gated ground-flag tie-break and finally
// the Grounded default. It has no side effects.
func (c Classifier) Classify(altitude, groundSpeed, verticalRate float64, flag GroundFlag) FlightState {
	th := c.Thresholds

	// 1. Ground-flag sanity clamp
	if flag == GroundTrue {
		if groundSpeed > th.GroundFlagNoiseSpeed {
			groundSpeed = 0
		}
		if math.Abs(verticalRate) > th.GroundFlagNoiseVerticalRate {
			verticalRate = 0
		}
		if altitude < th.GroundFlagNoiseAltitude {
			altitude = 0
		}
	}
	climb := math.Abs(verticalRate)

	// 2. Strong airborne cues
	if altitude > th.AirborneAltitude || groundSpeed > th.AirborneSpeed || climb > th.AirborneVerticalRate {
		return Airborne
	}

	// 3. Strong grounded cues
	if altitude < th.GroundedAltitude && groundSpeed < th.GroundedSpeed && climb < th.GroundedVerticalRate {
		return Grounded
	}

	// 4. Ground-flag tie-break
	switch flag {
	case GroundTrue:
		if altitude >= th.TieBreakAirborneAltitude ||
			groundSpeed >= th.TieBreakAirborneSpeed ||
			climb >= th.TieBreakAirborneVerticalRate {
			return Airborne
		}
		return Grounded
	case GroundFalse:
		if altitude < th.TieBreakGroundedAltitude &&
			groundSpeed < th.TieBreakGroundedSpeed &&
			climb < th.TieBreakGroundedVerticalRate {
			return Grounded
		}
		return Airborne
	}

	// 5. Default
	return Grounded
}

// ClassifyRecord classifies a record from its kinematics and flag.
func (c Classifier) ClassifyRecord(r *AircraftRecord) FlightState {
	return c.Classify(r.Altitude, r.GroundSpeed, r.VerticalRate, r.OnGround)
}
