// Package monitor runs the fetch, normalize and detect pipeline for the
// configured airports and caches each airport's latest snapshot.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/unklstewy/ads-proximity/pkg/adsb"
	"github.com/unklstewy/ads-proximity/pkg/config"
	"github.com/unklstewy/ads-proximity/pkg/coordinates"
	"github.com/unklstewy/ads-proximity/pkg/proximity"
	"github.com/unklstewy/ads-proximity/pkg/snapshot"
)

// DefaultFetchTimeout bounds a shared snapshot fetch, retries included.
const DefaultFetchTimeout = 2 * time.Minute

// ErrUnknownAirport is returned for an airport code missing from the
// configuration.
var ErrUnknownAirport = errors.New("unknown airport")

// FetchError wraps a provider failure for one airport.
type FetchError struct {
	Airport string
	Source  string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s from %s: %v", e.Airport, e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Service produces proximity snapshots per airport.
type Service struct {
	cfg      *config.Config
	source   adsb.DataSource
	detector *proximity.Detector
	retry    adsb.RetryConfig
	logger   *slog.Logger

	cache        *expirable.LRU[string, *snapshot.Snapshot]
	flight       singleflight.Group
	fetchTimeout time.Duration

	now func() time.Time
}

// New builds a service from a validated configuration. The detector's
// threshold table is copied once here; later config edits do not affect it.
func New(cfg *config.Config, source adsb.DataSource, logger *slog.Logger) (*Service, error) {
	if source == nil {
		return nil, errors.New("monitor: nil data source")
	}
	if logger == nil {
		logger = slog.Default()
	}

	separation := coordinates.SeparationDistance3D
	if cfg.Separation == "flat" {
		separation = coordinates.FlatSeparationDistance3D
	}

	detector, err := proximity.NewDetector(cfg.Thresholds,
		proximity.WithClassifier(proximity.Classifier{Thresholds: cfg.Classifier}),
		proximity.WithSeparation(separation),
		proximity.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("monitor: %w", err)
	}

	retry := adsb.DefaultRetryConfig()
	retry.MaxRetries = cfg.ADSB.MaxRetries
	retry.Logger = logger

	size := cfg.Monitor.CacheSize
	if size <= 0 {
		size = len(cfg.Airports)
	}

	return &Service{
		cfg:      cfg,
		source:   source,
		detector: detector,
		retry:    retry,
		logger:   logger.With(slog.String("source", source.Name())),
		cache:    expirable.NewLRU[string, *snapshot.Snapshot](size, nil, cacheTTL(cfg)),
		now:      time.Now,

		fetchTimeout: DefaultFetchTimeout,
	}, nil
}

func cacheTTL(cfg *config.Config) time.Duration {
	if cfg.Monitor.CacheTTLSeconds > 0 {
		return time.Duration(cfg.Monitor.CacheTTLSeconds) * time.Second
	}
	return time.Duration(cfg.ADSB.UpdateIntervalSeconds) * time.Second
}

// SetRetryConfig replaces the fetch retry policy.
func (s *Service) SetRetryConfig(rc adsb.RetryConfig) {
	if rc.Logger == nil {
		rc.Logger = s.logger
	}
	s.retry = rc
}

// SetFetchTimeout bounds each shared snapshot fetch. Non-positive values
// keep the current timeout.
func (s *Service) SetFetchTimeout(d time.Duration) {
	if d > 0 {
		s.fetchTimeout = d
	}
}

// Source returns the provider name.
func (s *Service) Source() string {
	return s.source.Name()
}

// Thresholds returns a copy of the active threshold table.
func (s *Service) Thresholds() proximity.ThresholdTable {
	return s.detector.Thresholds()
}

// Airports returns the configured reference airports.
func (s *Service) Airports() []config.AirportConfig {
	out := make([]config.AirportConfig, len(s.cfg.Airports))
	copy(out, s.cfg.Airports)
	return out
}

// Snapshot returns the cached snapshot for code, or fetches a fresh one.
// Concurrent callers for the same airport share one fetch. The shared fetch
// is detached from any single caller's cancellation and bounded by the fetch
// timeout instead; each caller still stops waiting when its own ctx ends.
// The returned snapshot is shared and must not be modified.
func (s *Service) Snapshot(ctx context.Context, code string) (*snapshot.Snapshot, error) {
	airport, ok := s.cfg.Airport(code)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAirport, code)
	}
	key := strings.ToUpper(airport.Code)

	if snap, ok := s.cache.Get(key); ok {
		return snap, nil
	}

	ch := s.flight.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()
		return s.Refresh(fetchCtx, code)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*snapshot.Snapshot), nil
	}
}

// Refresh fetches, normalizes and runs detection for one airport,
// bypassing and then updating the cache.
func (s *Service) Refresh(ctx context.Context, code string) (*snapshot.Snapshot, error) {
	airport, ok := s.cfg.Airport(code)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAirport, code)
	}
	key := strings.ToUpper(airport.Code)
	logger := s.logger.With(slog.String("airport", key))

	start := time.Now()
	raw, err := adsb.RetryWithBackoffResult(ctx, s.retry, func() ([]adsb.Aircraft, error) {
		return s.source.GetAircraft(ctx, airport.Latitude, airport.Longitude, s.cfg.ADSB.SearchRadiusNM)
	})
	if err != nil {
		logger.Error("fetch failed", slog.Any("error", err))
		return nil, &FetchError{Airport: key, Source: s.source.Name(), Err: err}
	}

	n := snapshot.Normalizer{
		Airport:      key,
		Source:       s.source.Name(),
		Reference:    airport.Geographic(),
		RadiusMeters: s.cfg.ADSB.PrefilterRadiusMeters,
		Now:          s.now,
	}
	snap := n.Normalize(raw)
	snap.Stats = s.detector.Detect(snap.Records)

	counts := snap.LevelCounts()
	logger.Info("snapshot ready",
		slog.String("snapshot", snap.ID.String()),
		slog.Int("fetched", len(raw)),
		slog.Int("aircraft", len(snap.Records)),
		slog.Int("excluded", snap.Excluded),
		slog.Int("out_of_range", snap.OutOfRange),
		slog.Int("conflicts", snap.Stats.Conflicts),
		slog.Int("alarms", counts[proximity.AlertAlarm]),
		slog.Duration("elapsed", time.Since(start)))

	s.cache.Add(key, &snap)
	return &snap, nil
}

// RefreshAll refreshes every configured airport with at most
// Monitor.MaxConcurrentFetches provider calls in flight. One airport
// failing does not cancel the others; the returned error joins every
// failure.
func (s *Service) RefreshAll(ctx context.Context) (map[string]*snapshot.Snapshot, error) {
	limit := s.cfg.Monitor.MaxConcurrentFetches
	if limit <= 0 {
		limit = 1
	}

	airports := s.Airports()
	results := make([]*snapshot.Snapshot, len(airports))
	errs := make([]error, len(airports))

	var eg errgroup.Group
	eg.SetLimit(limit)
	for i, a := range airports {
		eg.Go(func() error {
			results[i], errs[i] = s.Refresh(ctx, a.Code)
			return nil
		})
	}
	eg.Wait()

	out := make(map[string]*snapshot.Snapshot, len(airports))
	for i, a := range airports {
		if results[i] != nil {
			out[strings.ToUpper(a.Code)] = results[i]
		}
	}
	return out, errors.Join(errs...)
}

// Run refreshes every airport on the update interval until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.ADSB.UpdateIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.RefreshAll(ctx); err != nil {
			s.logger.Warn("refresh incomplete", slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close releases the data source.
func (s *Service) Close() error {
	s.cache.Purge()
	return s.source.Close()
}

// NewSource constructs the client for a configured provider.
func NewSource(src config.ADSBSource) (adsb.DataSource, error) {
	switch src.Type {
	case config.SourceAirplanesLive:
		return adsb.NewAirplanesLiveClient(src.BaseURL), nil
	case config.SourceOpenSky:
		return adsb.NewOpenSkyClient(adsb.OpenSkyConfig{
			BaseURL:      src.BaseURL,
			ClientID:     src.ClientID,
			ClientSecret: src.ClientSecret,
		}), nil
	case config.SourceAeroAPI:
		if src.APIKey == "" {
			return nil, errors.New("aeroapi source requires an API key")
		}
		return adsb.NewAeroAPIClient(adsb.AeroAPIConfig{
			BaseURL:           src.BaseURL,
			APIKey:            src.APIKey,
			RequestsPerMinute: src.RequestsPerMinute,
			SearchBoxDegrees:  src.SearchBoxDegrees,
			MaxPages:          src.MaxPages,
		}), nil
	default:
		return nil, fmt.Errorf("unknown ADS-B source type %q", src.Type)
	}
}
