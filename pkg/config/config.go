package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/unklstewy/ads-proximity/pkg/coordinates"
	"github.com/unklstewy/ads-proximity/pkg/proximity"
)

// Config represents the complete application configuration.
// Configuration can be loaded from a file or database.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	ADSB     ADSBConfig     `json:"adsb"`
	Monitor  MonitorConfig  `json:"monitor"`
	Logging  LoggingConfig  `json:"logging"`

	// Airports are the reference points a client may request
	Airports []AirportConfig `json:"airports"`

	// Thresholds are the separation bounds in meters per pair category
	Thresholds proximity.ThresholdTable `json:"thresholds"`

	// Classifier overrides the airborne/grounded decision bounds
	Classifier proximity.ClassifierThresholds `json:"classifier"`

	// Separation selects the 3D distance metric: "ecef" or "flat"
	Separation string `json:"separation"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Port is the HTTP server port (default: 8080)
	Port string `json:"port"`

	// Host is the server bind address (default: "0.0.0.0")
	Host string `json:"host"`

	// AllowedOrigins lists CORS origins for the browser map client
	AllowedOrigins []string `json:"allowed_origins"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	// Enabled loads airports and thresholds from the database instead of
	// this file
	Enabled bool `json:"enabled"`

	// Driver is the database driver (postgres, sqlite)
	Driver string `json:"driver"`

	// Path is the database file for sqlite
	Path string `json:"path,omitempty"`

	// Host is the database server hostname
	Host string `json:"host"`

	// Port is the database server port
	Port int `json:"port"`

	// Database is the database name
	Database string `json:"database"`

	// Username for database authentication
	Username string `json:"username"`

	// Password for database authentication (should be loaded from environment)
	Password string `json:"password"`

	// SSLMode for PostgreSQL connections (disable, require, verify-ca, verify-full)
	SSLMode string `json:"ssl_mode"`

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int `json:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int `json:"max_idle_conns"`
}

// ADSBConfig contains ADS-B data source configuration.
type ADSBConfig struct {
	// Source names the entry of Sources used for fetching. Empty selects
	// the first enabled source.
	Source string `json:"source"`

	// Sources is a list of configured ADS-B data sources
	Sources []ADSBSource `json:"sources"`

	// SearchRadiusNM is the radius requested from providers
	SearchRadiusNM float64 `json:"search_radius_nm"`

	// PrefilterRadiusMeters drops aircraft farther than this from the
	// airport before detection. 0 disables the filter.
	PrefilterRadiusMeters float64 `json:"prefilter_radius_meters"`

	// UpdateIntervalSeconds is how often to refresh aircraft data
	UpdateIntervalSeconds int `json:"update_interval_seconds"`

	// MaxRetries for a failed fetch
	MaxRetries int `json:"max_retries"`
}

// ADSBSource represents a single ADS-B data source configuration.
type ADSBSource struct {
	// Name is a friendly name for this source
	Name string `json:"name"`

	// Type is the source type: "airplanes.live", "opensky" or "aeroapi"
	Type string `json:"type"`

	// Enabled determines if this source can be used
	Enabled bool `json:"enabled"`

	// BaseURL is the API base URL
	BaseURL string `json:"base_url"`

	// APIKey is the AeroAPI key
	APIKey string `json:"api_key,omitempty"`

	// ClientID and ClientSecret are OpenSky OAuth2 credentials
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`

	// RequestsPerMinute limits AeroAPI calls, pages included
	RequestsPerMinute int `json:"requests_per_minute,omitempty"`

	// SearchBoxDegrees is the AeroAPI -latlong half-width
	SearchBoxDegrees float64 `json:"search_box_degrees,omitempty"`

	// MaxPages bounds AeroAPI pagination
	MaxPages int `json:"max_pages,omitempty"`
}

// Source types understood by the monitor.
const (
	SourceAirplanesLive = "airplanes.live"
	SourceOpenSky       = "opensky"
	SourceAeroAPI       = "aeroapi"
)

// AirportConfig is a named reference point.
type AirportConfig struct {
	// Code is the IATA code used in API requests (e.g., "SEA")
	Code string `json:"code"`

	Name string `json:"name"`

	// Latitude and Longitude in decimal degrees
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	// Elevation in meters above sea level
	Elevation float64 `json:"elevation"`
}

// Geographic returns the airport as a coordinates.Geographic.
func (a AirportConfig) Geographic() coordinates.Geographic {
	return coordinates.Geographic{Latitude: a.Latitude, Longitude: a.Longitude, Altitude: a.Elevation}
}

// MonitorConfig tunes the fetch/detect pipeline.
type MonitorConfig struct {
	// DefaultAirport is used when a request names none
	DefaultAirport string `json:"default_airport"`

	// CacheTTLSeconds is how long a snapshot is served before refetching.
	// 0 uses the update interval.
	CacheTTLSeconds int `json:"cache_ttl_seconds"`

	// CacheSize is the number of airport snapshots kept
	CacheSize int `json:"cache_size"`

	// MaxConcurrentFetches bounds parallel provider calls in RefreshAll
	MaxConcurrentFetches int `json:"max_concurrent_fetches"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	// Level is debug, info, warn or error
	Level string `json:"level"`

	// File enables JSON logs to a rotating file; empty logs to stderr only
	File string `json:"file,omitempty"`

	MaxSizeMB  int  `json:"max_size_mb"`
	MaxBackups int  `json:"max_backups"`
	MaxAgeDays int  `json:"max_age_days"`
	Compress   bool `json:"compress"`
}

// Load reads configuration from a JSON file.
// If the file doesn't exist, returns a default configuration.
// Fields missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// defaults
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		// json decodes array elements over existing ones, so list
		// defaults are restored after parsing instead of before.
		cfg.Server.AllowedOrigins = nil
		cfg.ADSB.Sources = nil
		cfg.Airports = nil
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		cfg.restoreListDefaults()
	}

	// Override with environment variables
	cfg.applyEnvironmentOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to a JSON file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			Host:           "0.0.0.0",
			AllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Enabled:      false,
			Driver:       "postgres",
			Host:         "localhost",
			Port:         5432,
			Database:     "adsproximity",
			Username:     "adsproximity",
			SSLMode:      "disable",
			MaxOpenConns: 10,
			MaxIdleConns: 2,
		},
		ADSB: ADSBConfig{
			Sources: []ADSBSource{
				{
					Name:    "airplanes.live",
					Type:    SourceAirplanesLive,
					Enabled: true,
					BaseURL: "https://api.airplanes.live/v2",
				},
				{
					Name:    "opensky",
					Type:    SourceOpenSky,
					Enabled: false,
					BaseURL: "https://opensky-network.org/api",
				},
				{
					Name:              "aeroapi",
					Type:              SourceAeroAPI,
					Enabled:           false,
					BaseURL:           "https://aeroapi.flightaware.com/aeroapi",
					RequestsPerMinute: 10,
					SearchBoxDegrees:  0.5,
					MaxPages:          10,
				},
			},
			SearchRadiusNM:        30.0,
			PrefilterRadiusMeters: coordinates.DefaultPrefilterRadiusMeters,
			UpdateIntervalSeconds: 10,
			MaxRetries:            3,
		},
		Monitor: MonitorConfig{
			DefaultAirport:       "SEA",
			CacheSize:            32,
			MaxConcurrentFetches: 2,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
		Airports:   DefaultAirports(),
		Thresholds: proximity.DefaultThresholdTable(),
		Classifier: proximity.DefaultClassifierThresholds(),
		Separation: "ecef",
	}
}

// restoreListDefaults fills list sections the file left out.
func (c *Config) restoreListDefaults() {
	def := DefaultConfig()
	if c.Server.AllowedOrigins == nil {
		c.Server.AllowedOrigins = def.Server.AllowedOrigins
	}
	if c.ADSB.Sources == nil {
		c.ADSB.Sources = def.ADSB.Sources
	}
	if c.Airports == nil {
		c.Airports = def.Airports
	}
}

// DefaultAirports returns the built-in reference airports.
func DefaultAirports() []AirportConfig {
	return []AirportConfig{
		{Code: "DXB", Name: "Dubai International", Latitude: 25.2532, Longitude: 55.3657},
		{Code: "HND", Name: "Tokyo Haneda", Latitude: 35.5494, Longitude: 139.7798},
		{Code: "LHR", Name: "London Heathrow", Latitude: 51.4700, Longitude: -0.4543},
		{Code: "DEL", Name: "Delhi IGI", Latitude: 28.5562, Longitude: 77.1000},
		{Code: "PVG", Name: "Shanghai Pudong", Latitude: 31.1443, Longitude: 121.8083},
		{Code: "SIN", Name: "Singapore Changi", Latitude: 1.3644, Longitude: 103.9915},
		{Code: "CDG", Name: "Paris Charles de Gaulle", Latitude: 49.0097, Longitude: 2.5479},
		{Code: "SYD", Name: "Sydney Kingsford Smith", Latitude: -33.9399, Longitude: 151.1753},
		{Code: "BOG", Name: "Bogotá El Dorado", Latitude: 4.7016, Longitude: -74.1469},
		{Code: "SEA", Name: "Seattle-Tacoma", Latitude: 47.450237, Longitude: -122.3088},
		{Code: "ATL", Name: "Atlanta Hartsfield-Jackson", Latitude: 33.6407, Longitude: -84.4277},
	}
}

// Airport looks up an airport by code, case-insensitively.
func (c *Config) Airport(code string) (AirportConfig, bool) {
	code = strings.TrimSpace(code)
	for _, a := range c.Airports {
		if strings.EqualFold(a.Code, code) {
			return a, true
		}
	}
	return AirportConfig{}, false
}

// ActiveSource returns the source used for fetching: the one named by
// ADSB.Source, or the first enabled source.
func (c *ADSBConfig) ActiveSource() (ADSBSource, error) {
	for _, s := range c.Sources {
		if c.Source != "" && s.Name != c.Source {
			continue
		}
		if !s.Enabled {
			if c.Source != "" {
				return ADSBSource{}, fmt.Errorf("ADS-B source %q is disabled", c.Source)
			}
			continue
		}
		return s, nil
	}
	if c.Source != "" {
		return ADSBSource{}, fmt.Errorf("ADS-B source %q not configured", c.Source)
	}
	return ADSBSource{}, errors.New("no enabled ADS-B source")
}

// Validate checks the configuration before anything runs.
func (c *Config) Validate() error {
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}

	if len(c.Airports) == 0 {
		return errors.New("no airports configured")
	}
	seen := make(map[string]bool, len(c.Airports))
	for _, a := range c.Airports {
		code := strings.ToUpper(strings.TrimSpace(a.Code))
		if code == "" {
			return fmt.Errorf("airport %q has no code", a.Name)
		}
		if seen[code] {
			return fmt.Errorf("airport %s listed twice", code)
		}
		seen[code] = true
		if a.Latitude < -90 || a.Latitude > 90 || a.Longitude < -180 || a.Longitude > 180 {
			return fmt.Errorf("airport %s has invalid coordinates %.4f, %.4f", code, a.Latitude, a.Longitude)
		}
	}
	if c.Monitor.DefaultAirport != "" {
		if _, ok := c.Airport(c.Monitor.DefaultAirport); !ok {
			return fmt.Errorf("default airport %s not in airport list", c.Monitor.DefaultAirport)
		}
	}

	for _, s := range c.ADSB.Sources {
		switch s.Type {
		case SourceAirplanesLive, SourceOpenSky, SourceAeroAPI:
		default:
			return fmt.Errorf("ADS-B source %q has unknown type %q", s.Name, s.Type)
		}
	}
	if _, err := c.ADSB.ActiveSource(); err != nil {
		return err
	}
	if c.ADSB.SearchRadiusNM <= 0 {
		return fmt.Errorf("search radius must be positive, got %.1f NM", c.ADSB.SearchRadiusNM)
	}
	if c.ADSB.PrefilterRadiusMeters < 0 {
		return fmt.Errorf("prefilter radius must not be negative, got %.1f m", c.ADSB.PrefilterRadiusMeters)
	}
	if c.ADSB.UpdateIntervalSeconds <= 0 {
		return fmt.Errorf("update interval must be positive, got %d s", c.ADSB.UpdateIntervalSeconds)
	}

	switch c.Separation {
	case "ecef", "flat":
	default:
		return fmt.Errorf("unknown separation metric %q (want ecef or flat)", c.Separation)
	}

	if c.Database.Enabled {
		switch c.Database.Driver {
		case "postgres":
		case "sqlite":
			if c.Database.Path == "" {
				return errors.New("sqlite database requires a path")
			}
		default:
			return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
		}
	}
	return nil
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
// This allows sensitive data like passwords to be kept out of config files.
func (c *Config) applyEnvironmentOverrides() {
	if port := os.Getenv("ADS_PROXIMITY_PORT"); port != "" {
		c.Server.Port = port
	}
	if dbPassword := os.Getenv("ADS_PROXIMITY_DB_PASSWORD"); dbPassword != "" {
		c.Database.Password = dbPassword
	}
	if source := os.Getenv("ADS_PROXIMITY_SOURCE"); source != "" {
		c.ADSB.Source = source
	}
	if level := os.Getenv("ADS_PROXIMITY_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	for i := range c.ADSB.Sources {
		s := &c.ADSB.Sources[i]
		switch s.Type {
		case SourceAeroAPI:
			if key := os.Getenv("ADS_PROXIMITY_AEROAPI_KEY"); key != "" {
				s.APIKey = key
			}
		case SourceOpenSky:
			if id := os.Getenv("ADS_PROXIMITY_OPENSKY_CLIENT_ID"); id != "" {
				s.ClientID = id
			}
			if secret := os.Getenv("ADS_PROXIMITY_OPENSKY_CLIENT_SECRET"); secret != "" {
				s.ClientSecret = secret
			}
		}
	}
}
