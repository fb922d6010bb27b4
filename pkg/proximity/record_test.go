package proximity

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlertLevelOrderAndNames(t *testing.T) {
	assert.True(t, AlertNone < AlertWarning)
	assert.True(t, AlertWarning < AlertAlert)
	assert.True(t, AlertAlert < AlertAlarm)

	for _, l := range []AlertLevel{AlertNone, AlertWarning, AlertAlert, AlertAlarm} {
		parsed, err := ParseAlertLevel(l.String())
		require.NoError(t, err)
		assert.Equal(t, l, parsed)
	}
	_, err := ParseAlertLevel("PANIC")
	assert.Error(t, err)

	assert.Equal(t, AlertAlarm, MaxAlertLevel(AlertAlarm, AlertWarning))
	assert.Equal(t, AlertAlert, MaxAlertLevel(AlertNone, AlertAlert))
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
	}{
		{"Air-Air", CategoryAirAir},
		{"Air - Air", CategoryAirAir},
		{"air-ground", CategoryAirGround},
		{" Ground - Ground ", CategoryGroundGround},
	}
	for _, tt := range tests {
		got, err := ParseCategory(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
	_, err := ParseCategory("Air-Sea")
	assert.Error(t, err)
}

func TestGroundFlagFromBool(t *testing.T) {
	yes, no := true, false
	assert.Equal(t, GroundUnknown, GroundFlagFromBool(nil))
	assert.Equal(t, GroundTrue, GroundFlagFromBool(&yes))
	assert.Equal(t, GroundFalse, GroundFlagFromBool(&no))
	assert.False(t, GroundUnknown.Known())
	assert.True(t, GroundFalse.Known())
}

func TestAircraftRecordPosition(t *testing.T) {
	r := AircraftRecord{Identifier: "abc123", Longitude: floatPtr(1)}
	_, _, _, err := r.Position()
	assert.True(t, errors.Is(err, ErrMissingGeometry))

	r.Latitude = floatPtr(2)
	r.Altitude = 300
	lat, lon, alt, err := r.Position()
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 1, 300}, []float64{lat, lon, alt})
}

// TestAircraftRecordJSON checks the wire shape consumed by the web layer.
func TestAircraftRecordJSON(t *testing.T) {
	records := []AircraftRecord{
		{Identifier: "a", Callsign: "ASA1", Latitude: floatPtr(47.45), Longitude: floatPtr(-122.3), OnGround: GroundTrue},
		{Identifier: "b", Callsign: "N/A"},
	}
	d, err := NewDetector(DefaultThresholdTable())
	require.NoError(t, err)
	d.Detect(records)

	data, err := json.Marshal(records[1])
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "NONE", got["alertLevel"])
	assert.Equal(t, "On Ground", got["status"])
	assert.Nil(t, got["onGround"])
	assert.Nil(t, got["latitude"])
	assert.Equal(t, []any{}, got["conflicts"], "conflicts must encode as an empty list")

	var back AircraftRecord
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, GroundUnknown, back.OnGround)
	assert.Equal(t, Grounded, back.State)

	data, err = json.Marshal(records[0])
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, true, got["onGround"])
}
