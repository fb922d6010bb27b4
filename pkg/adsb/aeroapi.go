package adsb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultAeroAPIURL is the FlightAware AeroAPI v4 base URL
	DefaultAeroAPIURL = "https://aeroapi.flightaware.com/aeroapi"

	// DefaultAeroAPISearchBox is the half-width in degrees of the search box
	// around the requested point
	DefaultAeroAPISearchBox = 0.5

	// DefaultAeroAPIMaxPages bounds pagination of a single search
	DefaultAeroAPIMaxPages = 10

	// DefaultTimeout for API requests
	DefaultTimeout = 15 * time.Second
)

// AeroAPIConfig contains configuration for the AeroAPI client.
type AeroAPIConfig struct {
	BaseURL string
	APIKey  string

	// RequestsPerMinute caps outgoing calls, pages included
	RequestsPerMinute int

	// SearchBoxDegrees is the half-width of the -latlong query box
	SearchBoxDegrees float64

	// MaxPages bounds one search. A search that reaches it returns the
	// flights gathered so far.
	MaxPages int
	Timeout  time.Duration

	// Logger receives the truncated-search warning; nil uses slog.Default()
	Logger *slog.Logger
}

// AeroAPIClient implements DataSource using the AeroAPI /flights/search
// endpoint with a -latlong query. Altitudes come back in hundreds of feet.
type AeroAPIClient struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	box         float64
	maxPages    int
	logger      *slog.Logger
}

// NewAeroAPIClient creates a new FlightAware AeroAPI client.
func NewAeroAPIClient(cfg AeroAPIConfig) *AeroAPIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAeroAPIURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 10
	}
	if cfg.SearchBoxDegrees <= 0 {
		cfg.SearchBoxDegrees = DefaultAeroAPISearchBox
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultAeroAPIMaxPages
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	requestsPerSecond := float64(cfg.RequestsPerMinute) / 60.0
	return &AeroAPIClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		rateLimiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		box:         cfg.SearchBoxDegrees,
		maxPages:    cfg.MaxPages,
		logger:      cfg.Logger,
	}
}

// Name returns "aeroapi".
func (c *AeroAPIClient) Name() string {
	return "aeroapi"
}

// GetAircraft searches a ±SearchBoxDegrees box around the point and follows
// links.next until the last page. radiusNM is ignored; callers filter by
// distance afterwards.
func (c *AeroAPIClient) GetAircraft(ctx context.Context, centerLat, centerLon, radiusNM float64) ([]Aircraft, error) {
	return c.Search(ctx, BoxAround(centerLat, centerLon, c.box))
}

// Search runs a -latlong flight search over a bounding box. Pagination stops
// after MaxPages with the flights already collected.
func (c *AeroAPIClient) Search(ctx context.Context, box BoundingBox) ([]Aircraft, error) {
	query := fmt.Sprintf(`-latlong "%g %g %g %g"`, box.MinLat, box.MinLon, box.MaxLat, box.MaxLon)
	next := c.baseURL + "/flights/search?" + url.Values{"query": {query}}.Encode()

	var aircraft []Aircraft
	for page := 0; next != ""; page++ {
		if page >= c.maxPages {
			c.logger.Warn("aeroapi search truncated",
				slog.Int("pages", page),
				slog.Int("flights", len(aircraft)))
			break
		}

		resp, err := c.get(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page+1, err)
		}

		for _, f := range resp.Flights {
			aircraft = append(aircraft, f.toAircraft())
		}

		next, err = c.resolve(resp.Links.Next.Href)
		if err != nil {
			return nil, err
		}
	}

	if aircraft == nil {
		aircraft = []Aircraft{}
	}
	return aircraft, nil
}

// Close is a no-op.
func (c *AeroAPIClient) Close() error {
	return nil
}

func (c *AeroAPIClient) get(ctx context.Context, target string) (*aeroSearchResponse, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-apikey", c.apiKey)
	req.Header.Set("Accept", "application/json; charset=UTF-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(c.Name(), resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var out aeroSearchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &out, nil
}

// resolve turns a links.next href into an absolute URL. AeroAPI returns
// paths relative to the API root.
func (c *AeroAPIClient) resolve(href string) (string, error) {
	if href == "" {
		return "", nil
	}
	u, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse next link %q: %w", href, err)
	}
	if u.IsAbs() {
		return href, nil
	}
	return c.baseURL + "/" + strings.TrimLeft(href, "/"), nil
}

type aeroSearchResponse struct {
	Flights []aeroFlight `json:"flights"`
	Links   struct {
		Next aeroLink `json:"next"`
	} `json:"links"`
	NumPages int `json:"num_pages"`
}

// aeroLink accepts both a bare string and an {"href": "..."} object.
type aeroLink struct {
	Href string
}

func (l *aeroLink) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		l.Href = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &l.Href)
	}
	var obj struct {
		Href string `json:"href"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("links.next: %w", err)
	}
	l.Href = obj.Href
	return nil
}

type aeroFlight struct {
	Ident        string        `json:"ident"`
	FAFlightID   string        `json:"fa_flight_id"`
	Registration *string       `json:"registration"`
	AircraftType *string       `json:"aircraft_type"`
	LastPosition *aeroPosition `json:"last_position"`
}

type aeroPosition struct {
	// Altitude in hundreds of feet
	Altitude *float64 `json:"altitude"`

	// AltitudeChange is "C" climbing, "D" descending or "-" level
	AltitudeChange string `json:"altitude_change"`

	// Groundspeed in knots
	Groundspeed *float64 `json:"groundspeed"`

	Heading   *float64   `json:"heading"`
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Timestamp *time.Time `json:"timestamp"`
}

func (f aeroFlight) toAircraft() Aircraft {
	ac := Aircraft{
		ICAO:     f.FAFlightID,
		Callsign: f.Ident,
		Units:    UnitsAeroAPI,
	}
	if f.Registration != nil && *f.Registration != "" {
		ac.ICAO = *f.Registration
	}

	lp := f.LastPosition
	if lp == nil {
		ac.LastSeen = time.Now().UTC()
		return ac
	}

	ac.Latitude = lp.Latitude
	ac.Longitude = lp.Longitude
	ac.Altitude = lp.Altitude
	ac.GroundSpeed = lp.Groundspeed
	ac.Track = lp.Heading
	if lp.Timestamp != nil {
		ac.LastSeen = lp.Timestamp.UTC()
	} else {
		ac.LastSeen = time.Now().UTC()
	}
	return ac
}
