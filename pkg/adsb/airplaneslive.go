package adsb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// AirplanesLiveClient implements the DataSource interface for airplanes.live API.
// API Documentation: https://airplanes.live/api-guide/
// Rate Limit: 1 request per second
type AirplanesLiveClient struct {
	// baseURL is the API base URL (default: https://api.airplanes.live/v2)
	baseURL string

	// httpClient is the HTTP client used for API requests
	httpClient *http.Client

	// limiter enforces the 1 request per second limit
	limiter *rate.Limiter
}

// DefaultAirplanesLiveURL is the public airplanes.live v2 endpoint.
const DefaultAirplanesLiveURL = "https://api.airplanes.live/v2"

// MaxAirplanesLiveRadiusNM is the largest radius the point endpoint accepts.
const MaxAirplanesLiveRadiusNM = 250.0

// NewAirplanesLiveClient creates a new airplanes.live API client.
// baseURL should be DefaultAirplanesLiveURL (or custom for testing)
func NewAirplanesLiveClient(baseURL string) *AirplanesLiveClient {
	if baseURL == "" {
		baseURL = DefaultAirplanesLiveURL
	}
	return &AirplanesLiveClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Name returns "airplanes.live".
func (c *AirplanesLiveClient) Name() string {
	return "airplanes.live"
}

// GetAircraft returns all aircraft within a radius of a given point.
// Uses the /point/[lat]/[lon]/[radius] endpoint.
// Aircraft without a position are returned too; the caller decides what
// to do with them.
func (c *AirplanesLiveClient) GetAircraft(ctx context.Context, centerLat, centerLon, radiusNM float64) ([]Aircraft, error) {
	if radiusNM > MaxAirplanesLiveRadiusNM {
		radiusNM = MaxAirplanesLiveRadiusNM
	}

	url := fmt.Sprintf("%s/point/%.4f/%.4f/%.0f", c.baseURL, centerLat, centerLon, radiusNM)
	apiResp, err := c.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	aircraft := make([]Aircraft, 0, len(apiResp.Aircraft))
	for _, ac := range apiResp.Aircraft {
		aircraft = append(aircraft, convertAirplanesLiveAircraft(ac, apiResp.fetchedAt()))
	}

	return aircraft, nil
}

// GetAircraftByICAO returns a specific aircraft by its ICAO hex code.
// Uses the /hex/[hex] endpoint. Returns nil if the aircraft is not tracked.
func (c *AirplanesLiveClient) GetAircraftByICAO(ctx context.Context, icao string) (*Aircraft, error) {
	apiResp, err := c.fetch(ctx, fmt.Sprintf("%s/hex/%s", c.baseURL, icao))
	if err != nil {
		return nil, err
	}

	if len(apiResp.Aircraft) == 0 {
		return nil, nil
	}

	ac := convertAirplanesLiveAircraft(apiResp.Aircraft[0], apiResp.fetchedAt())
	return &ac, nil
}

// Close cleanly shuts down the client.
// For airplanes.live, this is a no-op as there are no persistent connections.
func (c *AirplanesLiveClient) Close() error {
	return nil
}

func (c *AirplanesLiveClient) fetch(ctx context.Context, url string) (*airplanesLiveResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch aircraft data: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(c.Name(), resp); err != nil {
		return nil, err
	}

	var apiResp airplanesLiveResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse API response: %w", err)
	}
	return &apiResp, nil
}

// airplanesLiveResponse represents the JSON response from airplanes.live API.
type airplanesLiveResponse struct {
	Aircraft []airplanesLiveAircraft `json:"ac"`
	Total    int                     `json:"total"`

	// Now is the server time in milliseconds since the epoch
	Now float64 `json:"now"`
}

func (r *airplanesLiveResponse) fetchedAt() time.Time {
	if r.Now <= 0 {
		return time.Now().UTC()
	}
	return time.UnixMilli(int64(r.Now)).UTC()
}

// airplanesLiveAircraft represents a single aircraft in the airplanes.live API response.
// Field documentation: https://airplanes.live/adsb-field-explanations/
type airplanesLiveAircraft struct {
	// Hex is the ICAO Mode S hex code (e.g., "a12345")
	Hex string `json:"hex"`

	// Flight is the callsign/flight number, space padded
	Flight *string `json:"flight"`

	// Registration is the tail number, when known
	Registration *string `json:"r"`

	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`

	// AltBaro is barometric altitude in feet, or the string "ground"
	AltBaro interface{} `json:"alt_baro"`

	// AltGeom is geometric (GPS) altitude in feet
	AltGeom interface{} `json:"alt_geom"`

	// Gs is ground speed in knots
	Gs *float64 `json:"gs"`

	// Track is ground track in degrees (0-360)
	Track *float64 `json:"track"`

	// BaroRate and GeomRate are vertical rates in feet/minute
	BaroRate *float64 `json:"baro_rate"`
	GeomRate *float64 `json:"geom_rate"`

	// Seen is seconds since last message, SeenPos since last position
	Seen    *float64 `json:"seen"`
	SeenPos *float64 `json:"seen_pos"`
}

// convertAirplanesLiveAircraft converts an airplanes.live aircraft to our Aircraft type.
func convertAirplanesLiveAircraft(ac airplanesLiveAircraft, now time.Time) Aircraft {
	aircraft := Aircraft{
		ICAO:         ac.Hex,
		Latitude:     ac.Lat,
		Longitude:    ac.Lon,
		GroundSpeed:  ac.Gs,
		Track:        ac.Track,
		VerticalRate: ac.BaroRate,
		Units:        UnitsAviation,
	}

	if ac.Flight != nil {
		aircraft.Callsign = *ac.Flight
	} else if ac.Registration != nil {
		aircraft.Callsign = *ac.Registration
	}
	if aircraft.VerticalRate == nil {
		aircraft.VerticalRate = ac.GeomRate
	}

	// Barometric "ground" is the only surface indicator this API gives.
	// Geometric altitude is preferred for the height itself.
	baro, baroGround := parseAltitude(ac.AltBaro)
	geom, _ := parseAltitude(ac.AltGeom)
	switch {
	case baroGround:
		onGround := true
		aircraft.OnGround = &onGround
		zero := 0.0
		aircraft.Altitude = &zero
	case geom != nil:
		aircraft.Altitude = geom
	default:
		aircraft.Altitude = baro
	}
	if baro != nil && !baroGround {
		airborne := false
		aircraft.OnGround = &airborne
	}

	seen := ac.SeenPos
	if seen == nil {
		seen = ac.Seen
	}
	if seen != nil {
		aircraft.LastSeen = now.Add(-time.Duration(*seen * float64(time.Second)))
	} else {
		aircraft.LastSeen = now
	}

	return aircraft
}

// parseAltitude extracts altitude from a value that can be float64 or the
// string "ground". ground reports whether the value was "ground".
func parseAltitude(val interface{}) (alt *float64, ground bool) {
	switch v := val.(type) {
	case float64:
		return &v, false
	case string:
		if v == "ground" {
			return nil, true
		}
	}
	return nil, false
}
