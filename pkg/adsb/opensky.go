package adsb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultOpenSkyURL is the OpenSky Network REST API base URL
	DefaultOpenSkyURL = "https://opensky-network.org/api"

	// DefaultOpenSkyTokenURL is the OAuth2 client-credentials endpoint
	DefaultOpenSkyTokenURL = "https://auth.opensky-network.org/auth/realms/opensky-network/protocol/openid-connect/token"

	// OpenSky allows one /states/all call every 10 seconds anonymously and
	// every 5 seconds when authenticated.
	openSkyAnonymousInterval     = 10 * time.Second
	openSkyAuthenticatedInterval = 5 * time.Second

	tokenRefreshBuffer = 2 * time.Minute
)

// State vector indices in the /states/all response.
const (
	stateICAO24 = iota
	stateCallsign
	stateOriginCountry
	stateTimePosition
	stateLastContact
	stateLongitude
	stateLatitude
	stateBaroAltitude
	stateOnGround
	stateVelocity
	stateTrueTrack
	stateVerticalRate
	stateSensors
	stateGeoAltitude
	stateSquawk
	stateSPI
	statePositionSource
)

// OpenSkyConfig configures an OpenSky client.
type OpenSkyConfig struct {
	BaseURL  string
	TokenURL string

	// ClientID and ClientSecret enable OAuth2 authentication and the
	// shorter polling interval
	ClientID     string
	ClientSecret string

	Timeout time.Duration
}

// OpenSkyClient implements DataSource for the OpenSky Network /states/all
// endpoint. OpenSky reports SI units and an explicit on-ground flag.
type OpenSkyClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	tokens     *tokenManager
}

// NewOpenSkyClient creates an OpenSky client.
func NewOpenSkyClient(cfg OpenSkyConfig) *OpenSkyClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenSkyURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultOpenSkyTokenURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	c := &OpenSkyClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Every(openSkyAnonymousInterval), 1),
	}
	if cfg.ClientID != "" && cfg.ClientSecret != "" {
		c.tokens = &tokenManager{
			clientID:     cfg.ClientID,
			clientSecret: cfg.ClientSecret,
			tokenURL:     cfg.TokenURL,
			httpClient:   c.httpClient,
		}
		c.limiter.SetLimit(rate.Every(openSkyAuthenticatedInterval))
	}
	return c
}

// Name returns "opensky".
func (c *OpenSkyClient) Name() string {
	return "opensky"
}

// GetAircraft returns the state vectors inside the bounding box of the
// search circle.
func (c *OpenSkyClient) GetAircraft(ctx context.Context, centerLat, centerLon, radiusNM float64) ([]Aircraft, error) {
	return c.GetStates(ctx, BoxForRadius(centerLat, centerLon, radiusNM))
}

// GetStates calls /states/all for a bounding box.
func (c *OpenSkyClient) GetStates(ctx context.Context, box BoundingBox) ([]Aircraft, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	q := url.Values{}
	q.Set("lamin", strconv.FormatFloat(box.MinLat, 'f', 4, 64))
	q.Set("lamax", strconv.FormatFloat(box.MaxLat, 'f', 4, 64))
	q.Set("lomin", strconv.FormatFloat(box.MinLon, 'f', 4, 64))
	q.Set("lomax", strconv.FormatFloat(box.MaxLon, 'f', 4, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/states/all?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("obtain access token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch state vectors: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(c.Name(), resp); err != nil {
		return nil, err
	}

	var raw openSkyResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse API response: %w", err)
	}

	return parseOpenSkyStates(raw), nil
}

// Close is a no-op.
func (c *OpenSkyClient) Close() error {
	return nil
}

// openSkyResponse mirrors the JSON shape returned by /states/all.
// States is null when nothing is in the box.
type openSkyResponse struct {
	Time   int64           `json:"time"`
	States [][]interface{} `json:"states"`
}

func parseOpenSkyStates(raw openSkyResponse) []Aircraft {
	aircraft := make([]Aircraft, 0, len(raw.States))
	for _, s := range raw.States {
		if len(s) <= stateVerticalRate {
			continue
		}
		ac := Aircraft{
			ICAO:         stringVal(s[stateICAO24]),
			Callsign:     stringVal(s[stateCallsign]),
			Longitude:    floatVal(s[stateLongitude]),
			Latitude:     floatVal(s[stateLatitude]),
			Altitude:     floatVal(s[stateBaroAltitude]),
			GroundSpeed:  floatVal(s[stateVelocity]),
			Track:        floatVal(s[stateTrueTrack]),
			VerticalRate: floatVal(s[stateVerticalRate]),
			Units:        UnitsSI,
		}
		if b, ok := s[stateOnGround].(bool); ok {
			ac.OnGround = &b
		}
		if ac.Altitude == nil && len(s) > stateGeoAltitude {
			ac.Altitude = floatVal(s[stateGeoAltitude])
		}
		if ts := floatVal(s[stateLastContact]); ts != nil {
			ac.LastSeen = time.Unix(int64(*ts), 0).UTC()
		} else if raw.Time > 0 {
			ac.LastSeen = time.Unix(raw.Time, 0).UTC()
		}
		aircraft = append(aircraft, ac)
	}
	return aircraft
}

func stringVal(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func floatVal(v interface{}) *float64 {
	if f, ok := v.(float64); ok {
		return &f
	}
	return nil
}

// tokenResponse mirrors the JSON from the OpenSky token endpoint.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// tokenManager handles the OAuth2 client-credentials token lifecycle.
type tokenManager struct {
	clientID     string
	clientSecret string
	tokenURL     string
	httpClient   *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// Token returns a valid access token, refreshing it when close to expiry.
func (tm *tokenManager) Token(ctx context.Context) (string, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.token != "" && time.Now().Before(tm.expiresAt) {
		return tm.token, nil
	}

	data := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {tm.clientID},
		"client_secret": {tm.clientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tm.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := tm.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request token: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse("opensky auth", resp); err != nil {
		return "", err
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	tm.token = tok.AccessToken
	tm.expiresAt = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenRefreshBuffer)
	return tm.token, nil
}
