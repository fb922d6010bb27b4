package proximity

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidThresholdTable is the sentinel for configuration errors in a
// threshold table. Use errors.Is to detect it.
var ErrInvalidThresholdTable = errors.New("invalid threshold table")

// ThresholdError describes which category of a table is invalid.
type ThresholdError struct {
	Category Category
	Reason   string
}

func (e *ThresholdError) Error() string {
	if e.Category == "" {
		return fmt.Sprintf("%v: %s", ErrInvalidThresholdTable, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", ErrInvalidThresholdTable, e.Category, e.Reason)
}

func (e *ThresholdError) Unwrap() error {
	return ErrInvalidThresholdTable
}

// Thresholds are the distance bounds in meters for one category.
// A valid triple satisfies 0 < High < Medium < Low.
type Thresholds struct {
	Low    float64 `json:"low"`
	Medium float64 `json:"medium"`
	High   float64 `json:"high"`
}

// Tier maps a separation distance to a severity. A distance equal to a
// bound gets the stricter tier. AlertNone means no conflict.
func (t Thresholds) Tier(distance float64) AlertLevel {
	switch {
	case distance <= t.High:
		return AlertAlarm
	case distance <= t.Medium:
		return AlertAlert
	case distance <= t.Low:
		return AlertWarning
	default:
		return AlertNone
	}
}

func (t Thresholds) validate() string {
	for _, v := range []float64{t.Low, t.Medium, t.High} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "bounds must be finite"
		}
	}
	if t.High <= 0 {
		return fmt.Sprintf("high bound %.1f m must be positive", t.High)
	}
	if !(t.High < t.Medium && t.Medium < t.Low) {
		return fmt.Sprintf("bounds must satisfy high < medium < low, got high=%.1f medium=%.1f low=%.1f",
			t.High, t.Medium, t.Low)
	}
	return ""
}

// ThresholdTable maps each category to its distance bounds in meters.
type ThresholdTable map[Category]Thresholds

// DefaultThresholdTable returns the stock separation bounds in meters.
func DefaultThresholdTable() ThresholdTable {
	return ThresholdTable{
		CategoryAirAir:       {Low: 8000, Medium: 4000, High: 3000},
		CategoryAirGround:    {Low: 3000, Medium: 2000, High: 1000},
		CategoryGroundGround: {Low: 300, Medium: 200, High: 100},
	}
}

// Validate checks that every category is present and ordered. The returned
// error wraps ErrInvalidThresholdTable.
func (t ThresholdTable) Validate() error {
	if len(t) == 0 {
		return &ThresholdError{Reason: "table is empty"}
	}
	for _, c := range Categories {
		bounds, ok := t[c]
		if !ok {
			return &ThresholdError{Category: c, Reason: "category missing"}
		}
		if reason := bounds.validate(); reason != "" {
			return &ThresholdError{Category: c, Reason: reason}
		}
	}
	for c := range t {
		canonical, err := ParseCategory(string(c))
		if err != nil {
			return &ThresholdError{Category: c, Reason: "unknown category"}
		}
		if canonical != c {
			return &ThresholdError{Category: c, Reason: fmt.Sprintf("non-canonical category key, use %q", canonical)}
		}
	}
	return nil
}

// Clone returns an independent copy.
func (t ThresholdTable) Clone() ThresholdTable {
	out := make(ThresholdTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// UnmarshalJSON decodes a table keyed by category name. Legacy spaced keys
// such as "Air - Air" are normalized.
func (t *ThresholdTable) UnmarshalJSON(data []byte) error {
	var raw map[string]Thresholds
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("threshold table: %w", err)
	}
	out := make(ThresholdTable, len(raw))
	for key, bounds := range raw {
		c, err := ParseCategory(key)
		if err != nil {
			return &ThresholdError{Category: Category(key), Reason: "unknown category"}
		}
		if _, dup := out[c]; dup {
			return &ThresholdError{Category: c, Reason: "category listed twice"}
		}
		out[c] = bounds
	}
	*t = out
	return nil
}
