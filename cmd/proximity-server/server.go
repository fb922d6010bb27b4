package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/unklstewy/ads-proximity/internal/db"
	"github.com/unklstewy/ads-proximity/internal/monitor"
	"github.com/unklstewy/ads-proximity/pkg/config"
	"github.com/unklstewy/ads-proximity/pkg/coordinates"
	"github.com/unklstewy/ads-proximity/pkg/proximity"
	"github.com/unklstewy/ads-proximity/pkg/snapshot"
)

// Server holds the HTTP router and its dependencies
type Server struct {
	router  *chi.Mux
	monitor *monitor.Service
	db      *db.DB // nil when the SQL store is disabled
	cfg     *config.Config
	logger  *slog.Logger
	started time.Time
}

// NewServer wires the routes. database may be nil.
func NewServer(cfg *config.Config, svc *monitor.Service, database *db.DB, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router:  chi.NewRouter(),
		monitor: svc,
		db:      database,
		cfg:     cfg,
		logger:  logger,
		started: time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	origins := s.cfg.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/planes", s.handleGetPlanes)
		r.Get("/planes/{id}", s.handleGetPlane)
		r.Get("/airports", s.handleGetAirports)
		r.Get("/thresholds", s.handleGetThresholds)
		r.Get("/status", s.handleGetStatus)
	})
}

// requestLogger logs one line per request through slog.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// planesResponse is the body of GET /api/v1/planes.
type planesResponse struct {
	SnapshotID string                     `json:"snapshotId"`
	Airport    string                     `json:"airport"`
	Source     string                     `json:"source"`
	Reference  coordinates.Geographic     `json:"reference"`
	FetchedAt  time.Time                  `json:"fetchedAt"`
	Count      int                        `json:"count"`
	Excluded   int                        `json:"excluded"`
	OutOfRange int                        `json:"outOfRange"`
	Levels     map[string]int             `json:"levels"`
	Stats      proximity.PassStats        `json:"stats"`
	Aircraft   []proximity.AircraftRecord `json:"aircraft"`
}

// handleGetPlanes returns the latest snapshot for ?airport=, defaulting to
// the configured airport. ?min_level= filters by alert level and
// ?sort=severity orders the most severe first.
func (s *Server) handleGetPlanes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	minLevel := proximity.AlertNone
	if v := q.Get("min_level"); v != "" {
		lvl, err := proximity.ParseAlertLevel(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		minLevel = lvl
	}

	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}

	records := snap.Records
	if q.Get("sort") == "severity" {
		records = snap.BySeverity()
	}
	aircraft := make([]proximity.AircraftRecord, 0, len(records))
	for _, rec := range records {
		if rec.AlertLevel >= minLevel {
			aircraft = append(aircraft, rec)
		}
	}

	levels := make(map[string]int, 4)
	for lvl, n := range snap.LevelCounts() {
		levels[lvl.String()] = n
	}

	respondJSON(w, http.StatusOK, planesResponse{
		SnapshotID: snap.ID.String(),
		Airport:    snap.Airport,
		Source:     snap.Source,
		Reference:  snap.Reference,
		FetchedAt:  snap.FetchedAt,
		Count:      len(aircraft),
		Excluded:   snap.Excluded,
		OutOfRange: snap.OutOfRange,
		Levels:     levels,
		Stats:      snap.Stats,
		Aircraft:   aircraft,
	})
}

// handleGetPlane returns one record from the airport's snapshot by
// identifier or callsign.
func (s *Server) handleGetPlane(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	for _, rec := range snap.Records {
		if strings.EqualFold(rec.Identifier, id) || strings.EqualFold(rec.Callsign, id) {
			respondJSON(w, http.StatusOK, rec)
			return
		}
	}
	respondError(w, http.StatusNotFound, "aircraft not found near "+snap.Airport)
}

// snapshot resolves ?airport= and writes the error response on failure.
func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) (*snapshot.Snapshot, bool) {
	code := strings.TrimSpace(r.URL.Query().Get("airport"))
	if code == "" {
		code = s.cfg.Monitor.DefaultAirport
	}

	snap, err := s.monitor.Snapshot(r.Context(), code)
	switch {
	case errors.Is(err, monitor.ErrUnknownAirport):
		respondError(w, http.StatusNotFound, "unknown airport "+strings.ToUpper(code))
		return nil, false
	case err != nil:
		s.logger.Warn("snapshot failed", slog.String("airport", code), slog.Any("error", err))
		respondError(w, http.StatusBadGateway, "failed to fetch aircraft data")
		return nil, false
	}
	return snap, true
}

func (s *Server) handleGetAirports(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"default":  strings.ToUpper(s.cfg.Monitor.DefaultAirport),
		"airports": s.monitor.Airports(),
	})
}

func (s *Server) handleGetThresholds(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"units":      "meters",
		"thresholds": s.monitor.Thresholds(),
		"classifier": s.cfg.Classifier,
		"separation": s.cfg.Separation,
	})
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"source":   s.monitor.Source(),
		"airports": len(s.cfg.Airports),
		"uptime":   time.Since(s.started).Round(time.Second).String(),
		"database": "disabled",
	}
	if s.db != nil {
		stats, err := s.db.GetStats(r.Context())
		if err != nil {
			status["database"] = "error"
		} else {
			status["database"] = s.db.Driver()
			status["databaseStats"] = stats
		}
	}
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := db.HealthCheck(r.Context(), s.db); err != nil {
			s.logger.Error("health check failed", slog.Any("error", err))
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
