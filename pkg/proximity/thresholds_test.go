package proximity

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholdsTier(t *testing.T) {
	th := Thresholds{Low: 300, Medium: 200, High: 100}

	tests := []struct {
		distance float64
		want     AlertLevel
	}{
		{0, AlertAlarm},
		{99.9, AlertAlarm},
		{100, AlertAlarm},
		{100.1, AlertAlert},
		{200, AlertAlert},
		{250, AlertWarning},
		{300, AlertWarning},
		{300.01, AlertNone},
		{5000, AlertNone},
	}

	for _, tt := range tests {
		if got := th.Tier(tt.distance); got != tt.want {
			t.Errorf("Tier(%v) = %v, want %v", tt.distance, got, tt.want)
		}
	}
}

func TestThresholdTableValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(ThresholdTable)
		wantCat Category
	}{
		{"Missing category", func(tt ThresholdTable) { delete(tt, CategoryAirGround) }, CategoryAirGround},
		{"Medium equals high", func(tt ThresholdTable) {
			tt[CategoryAirAir] = Thresholds{Low: 300, Medium: 200, High: 200}
		}, CategoryAirAir},
		{"Inverted", func(tt ThresholdTable) {
			tt[CategoryGroundGround] = Thresholds{Low: 100, Medium: 200, High: 300}
		}, CategoryGroundGround},
		{"Zero high", func(tt ThresholdTable) {
			tt[CategoryAirAir] = Thresholds{Low: 300, Medium: 200, High: 0}
		}, CategoryAirAir},
		{"NaN bound", func(tt ThresholdTable) {
			tt[CategoryAirGround] = Thresholds{Low: math.NaN(), Medium: 200, High: 100}
		}, CategoryAirGround},
		{"Unknown category", func(tt ThresholdTable) {
			tt["Air-Water"] = Thresholds{Low: 300, Medium: 200, High: 100}
		}, "Air-Water"},
		{"Lowercase key beside canonical", func(tt ThresholdTable) {
			tt["air-air"] = Thresholds{Low: 30, Medium: 20, High: 10}
		}, "air-air"},
		{"Spaced key beside canonical", func(tt ThresholdTable) {
			tt["Ground - Ground"] = Thresholds{Low: 30, Medium: 20, High: 10}
		}, "Ground - Ground"},
	}

	require.NoError(t, DefaultThresholdTable().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := DefaultThresholdTable()
			tt.mutate(table)

			err := table.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidThresholdTable))

			var te *ThresholdError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, tt.wantCat, te.Category)
		})
	}

	t.Run("Empty", func(t *testing.T) {
		err := ThresholdTable{}.Validate()
		assert.True(t, errors.Is(err, ErrInvalidThresholdTable))
	})
}

func TestThresholdTableUnmarshalJSON(t *testing.T) {
	t.Run("Legacy spaced keys", func(t *testing.T) {
		data := []byte(`{
			"Air - Air": {"low": 300, "medium": 250, "high": 200},
			"Air - Ground": {"low": 1100, "medium": 950, "high": 800},
			"Ground - Ground": {"low": 300, "medium": 200, "high": 100}
		}`)
		var table ThresholdTable
		require.NoError(t, json.Unmarshal(data, &table))

		want := ThresholdTable{
			CategoryAirAir:       {Low: 300, Medium: 250, High: 200},
			CategoryAirGround:    {Low: 1100, Medium: 950, High: 800},
			CategoryGroundGround: {Low: 300, Medium: 200, High: 100},
		}
		if diff := cmp.Diff(want, table); diff != "" {
			t.Errorf("table mismatch (-want +got):\n%s", diff)
		}
		assert.NoError(t, table.Validate())
	})

	t.Run("Duplicate after normalization", func(t *testing.T) {
		data := []byte(`{"Air-Air": {"low": 3, "medium": 2, "high": 1}, "Air - Air": {"low": 3, "medium": 2, "high": 1}}`)
		var table ThresholdTable
		err := json.Unmarshal(data, &table)
		assert.True(t, errors.Is(err, ErrInvalidThresholdTable))
	})

	t.Run("Unknown key", func(t *testing.T) {
		var table ThresholdTable
		err := json.Unmarshal([]byte(`{"Sea-Sea": {"low": 3, "medium": 2, "high": 1}}`), &table)
		assert.True(t, errors.Is(err, ErrInvalidThresholdTable))
	})
}

func TestThresholdTableClone(t *testing.T) {
	table := DefaultThresholdTable()
	clone := table.Clone()
	clone[CategoryAirAir] = Thresholds{Low: 3, Medium: 2, High: 1}
	assert.Equal(t, DefaultThresholdTable()[CategoryAirAir], table[CategoryAirAir])
}
