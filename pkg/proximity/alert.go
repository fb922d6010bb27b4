package proximity

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// AlertLevel is an ordered severity. Comparisons use the numeric order.
type AlertLevel uint8

const (
	AlertNone AlertLevel = iota
	AlertWarning
	AlertAlert
	AlertAlarm
)

var alertNames = [...]string{
	AlertNone:    "NONE",
	AlertWarning: "WARNING",
	AlertAlert:   "ALERT",
	AlertAlarm:   "ALARM",
}

func (l AlertLevel) String() string {
	if int(l) < len(alertNames) {
		return alertNames[l]
	}
	return fmt.Sprintf("AlertLevel(%d)", l)
}

// ParseAlertLevel parses a level name, case-insensitively.
func ParseAlertLevel(s string) (AlertLevel, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range alertNames {
		if n == name {
			return AlertLevel(i), nil
		}
	}
	return AlertNone, fmt.Errorf("unknown alert level %q", s)
}

// MarshalJSON encodes the level as its upper-case name.
func (l AlertLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes an upper-case level name.
func (l *AlertLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("alert level: %w", err)
	}
	parsed, err := ParseAlertLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// MaxAlertLevel returns the more severe of two levels.
func MaxAlertLevel(a, b AlertLevel) AlertLevel {
	if b > a {
		return b
	}
	return a
}

// Category classifies a conflicting pair by each member's state.
type Category string

const (
	CategoryAirAir       Category = "Air-Air"
	CategoryAirGround    Category = "Air-Ground"
	CategoryGroundGround Category = "Ground-Ground"
)

// Categories lists every category a threshold table must cover.
var Categories = []Category{CategoryAirAir, CategoryAirGround, CategoryGroundGround}

// ParseCategory accepts the canonical names and the spaced legacy form
// ("Air - Air").
func ParseCategory(s string) (Category, error) {
	compact := strings.Join(strings.Fields(s), "")
	for _, c := range Categories {
		if strings.EqualFold(compact, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// categorize derives the pair category. Two authoritative ground flags force
// Ground-Ground even when kinematics disagree.
func categorize(a, b *AircraftRecord) Category {
	if a.OnGround == GroundTrue && b.OnGround == GroundTrue {
		return CategoryGroundGround
	}
	switch {
	case a.State == Grounded && b.State == Grounded:
		return CategoryGroundGround
	case a.State == Airborne && b.State == Airborne:
		return CategoryAirAir
	default:
		return CategoryAirGround
	}
}

func roundMeters(d float64) int {
	return int(math.Round(d))
}
