package adsb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSkyGetStates(t *testing.T) {
	payload := map[string]interface{}{
		"time": 1700000000,
		"states": [][]interface{}{
			{
				"abc123",   // 0  icao24
				"ASA456  ", // 1  callsign
				"United States",
				1700000000, // 3  time_position
				1699999990, // 4  last_contact
				-122.31,    // 5  longitude
				47.44,      // 6  latitude
				nil,        // 7  baro_altitude
				true,       // 8  on_ground
				4.1,        // 9  velocity
				180.0,      // 10 true_track
				nil,        // 11 vertical_rate
				nil,        // 12 sensors
				12.0,       // 13 geo_altitude
				"1234",     // 14 squawk
				false,      // 15 spi
				0,          // 16 position_source
			},
			{
				"def456", nil, "Canada", nil, 1700000000,
				nil, nil, 3000.0, nil, 120.0, nil, -5.0,
			},
			{"short"},
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/states/all", r.URL.Path)
		assert.Equal(t, "46.9502", r.URL.Query().Get("lamin"))
		assert.Equal(t, "47.9502", r.URL.Query().Get("lamax"))
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(payload)
	}))
	defer srv.Close()

	client := NewOpenSkyClient(OpenSkyConfig{BaseURL: srv.URL})
	aircraft, err := client.GetStates(context.Background(), BoxAround(47.450237, -122.3088, 0.5))
	require.NoError(t, err)
	require.Len(t, aircraft, 2, "rows shorter than the schema are skipped")

	ac := aircraft[0]
	assert.Equal(t, "abc123", ac.ICAO)
	assert.Equal(t, "ASA456  ", ac.Callsign)
	assert.Equal(t, UnitsSI, ac.Units)
	require.NotNil(t, ac.OnGround)
	assert.True(t, *ac.OnGround)
	require.NotNil(t, ac.Altitude)
	assert.InDelta(t, 12.0, *ac.Altitude, 1e-9, "geo altitude fills a missing baro altitude")
	assert.InDelta(t, 47.44, *ac.Latitude, 1e-9)
	assert.InDelta(t, -122.31, *ac.Longitude, 1e-9)
	assert.Nil(t, ac.VerticalRate)
	assert.Equal(t, time.Unix(1699999990, 0).UTC(), ac.LastSeen)

	other := aircraft[1]
	assert.Nil(t, other.Latitude)
	assert.Nil(t, other.OnGround)
	assert.Equal(t, "", other.Callsign)
	require.NotNil(t, other.VerticalRate)
	assert.Equal(t, -5.0, *other.VerticalRate)
}

func TestOpenSkyNullStates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"time": 1700000000, "states": null}`))
	}))
	defer srv.Close()

	aircraft, err := NewOpenSkyClient(OpenSkyConfig{BaseURL: srv.URL}).GetAircraft(context.Background(), 47.45, -122.31, 10)
	require.NoError(t, err)
	assert.Empty(t, aircraft)
}

func TestOpenSkyRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Rate-Limit-Retry-After-Seconds", "42")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewOpenSkyClient(OpenSkyConfig{BaseURL: srv.URL}).GetAircraft(context.Background(), 47.45, -122.31, 10)
	rle, ok := IsRateLimitError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, 42*time.Second, rle.RetryAfter)
}

func TestOpenSkyOAuthToken(t *testing.T) {
	var tokenCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "my-id", r.PostForm.Get("client_id"))
		json.NewEncoder(w).Encode(tokenResponse{AccessToken: "tok-1", ExpiresIn: 1800, TokenType: "Bearer"})
	})
	mux.HandleFunc("/states/all", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		w.Write([]byte(`{"time": 1, "states": []}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewOpenSkyClient(OpenSkyConfig{
		BaseURL:      srv.URL,
		TokenURL:     srv.URL + "/token",
		ClientID:     "my-id",
		ClientSecret: "secret",
	})
	_, err := client.GetAircraft(context.Background(), 47.45, -122.31, 10)
	require.NoError(t, err)

	// Cached token is reused
	tok, err := client.tokens.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	assert.Equal(t, int32(1), tokenCalls.Load())
}

func TestBoxForRadius(t *testing.T) {
	box := BoxForRadius(0, 0, 60)
	assert.InDelta(t, -1.0, box.MinLat, 1e-9)
	assert.InDelta(t, 1.0, box.MaxLat, 1e-9)
	assert.InDelta(t, 1.0, box.MaxLon, 1e-9)

	// Longitude span widens away from the equator
	north := BoxForRadius(60, 10, 60)
	assert.InDelta(t, 12.0, north.MaxLon, 1e-6)

	polar := BoxForRadius(89.9, 0, 60)
	assert.Equal(t, 90.0, polar.MaxLat)
	assert.Equal(t, -180.0, polar.MinLon)
}
