// Package api provides REST API endpoints for obstacle lookup and flight path
// filtering.
package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	lru "github.com/hashicorp/golang-lru/v2"

	"dof_filter/internal/dof"
	"dof_filter/internal/filter"
	"dof_filter/internal/flight"
	"dof_filter/internal/geo"
)

// MaxSamples bounds the flight path length accepted by the filter endpoint.
const MaxSamples = 50000

// ObstacleSource returns the obstacles inside a window, in file order.
type ObstacleSource interface {
	ObstaclesInBounds(ctx context.Context, b geo.Bounds) ([]dof.Record, error)
}

// ObstacleLookup is implemented by sources that can fetch a single obstacle
// by OAS code and obstacle number. A nil record means not found.
type ObstacleLookup interface {
	GetObstacle(ctx context.Context, oasCode, number string) (*dof.Record, error)
}

// indexedSource is implemented by in-memory sources that can filter through
// their spatial index directly.
type indexedSource interface {
	Index() *filter.Index
}

// ReportSink receives every freshly computed filter report.
type ReportSink interface {
	RecordReport(ctx context.Context, rep filter.Report) error
}

// Server provides REST API access to obstacles and the path filter.
type Server struct {
	source      ObstacleSource
	sourceName  string
	sinks       []ReportSink
	filter      filter.Config
	cache       *lru.Cache[string, FilterResponse]
	port        int
	authEnabled bool
	apiKeys     map[string]bool // Simple API key auth (when enabled).
}

// Config holds configuration for the API server.
type Config struct {
	Port        int
	AuthEnabled bool
	APIKeys     []string      // List of valid API keys.
	Filter      filter.Config // Defaults for requests that omit parameters.
	CacheSize   int           // Cached filter responses; 0 disables caching.
	SourceName  string        // Reported by the health endpoint.
}

// NewServer creates a new API server.
func NewServer(source ObstacleSource, cfg Config, sinks ...ReportSink) (*Server, error) {
	keys := make(map[string]bool)
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys[k] = true
		}
	}

	if err := cfg.Filter.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		source:      source,
		sourceName:  cfg.SourceName,
		sinks:       sinks,
		filter:      cfg.Filter,
		port:        cfg.Port,
		authEnabled: cfg.AuthEnabled,
		apiKeys:     keys,
	}

	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, FilterResponse](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	r := chi.NewRouter()

	// Standard middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS for browser access.
	r.Use(corsMiddleware)

	r.Mount("/api/v1", s.Router())

	addr := ":" + strconv.Itoa(s.port)
	log.Printf("Obstacle API starting at http://localhost%s", addr)
	if s.authEnabled {
		log.Printf("Authentication: ENABLED (API key required)")
	} else {
		log.Printf("Authentication: DISABLED (open access)")
	}

	return http.ListenAndServe(addr, r)
}

// Router returns the API routes for embedding in other servers.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	// Optional authentication.
	if s.authEnabled {
		r.Use(s.authMiddleware)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/obstacles", s.handleObstacles)
	r.Get("/obstacles/{oas}/{number}", s.handleObstacle)
	r.Post("/filter", s.handleFilter)

	return r
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates API key authentication.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")

		if apiKey == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		// Fall back to query parameter (for simple testing).
		if apiKey == "" {
			apiKey = r.URL.Query().Get("api_key")
		}

		if apiKey == "" {
			writeError(w, http.StatusUnauthorized, "API key required")
			return
		}

		if !s.apiKeys[apiKey] {
			writeError(w, http.StatusForbidden, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
		"source": s.sourceName,
	})
}

// ObstaclesResponse is the JSON response for bounds queries.
type ObstaclesResponse struct {
	Bounds    geo.Bounds   `json:"bounds"`
	Count     int          `json:"count"`
	Obstacles []dof.Record `json:"obstacles"`
}

// boundsFromQuery overrides the edges of def present in q.
func boundsFromQuery(q map[string][]string, def geo.Bounds) (geo.Bounds, error) {
	b := def
	for _, p := range []struct {
		key string
		dst *float64
	}{
		{"lat_min", &b.MinLat},
		{"lat_max", &b.MaxLat},
		{"lon_min", &b.MinLon},
		{"lon_max", &b.MaxLon},
	} {
		vals := q[p.key]
		if len(vals) == 0 || vals[0] == "" {
			continue
		}
		v, err := strconv.ParseFloat(vals[0], 64)
		if err != nil {
			return b, fmt.Errorf("invalid %s: %q", p.key, vals[0])
		}
		*p.dst = v
	}
	if !b.Valid() {
		return b, fmt.Errorf("invalid bounds %+v", b)
	}
	return b, nil
}

func (s *Server) handleObstacles(w http.ResponseWriter, r *http.Request) {
	b, err := boundsFromQuery(r.URL.Query(), s.filter.Bounds)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.source.ObstaclesInBounds(r.Context(), b)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []dof.Record{}
	}

	writeJSON(w, http.StatusOK, ObstaclesResponse{Bounds: b, Count: len(records), Obstacles: records})
}

func (s *Server) handleObstacle(w http.ResponseWriter, r *http.Request) {
	lookup, ok := s.source.(ObstacleLookup)
	if !ok {
		writeError(w, http.StatusNotImplemented, "Obstacle lookup not supported by "+s.sourceName)
		return
	}

	oas, number := chi.URLParam(r, "oas"), chi.URLParam(r, "number")
	rec, err := lookup.GetObstacle(r.Context(), oas, number)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "Obstacle not found: "+oas+"-"+number)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// FilterRequest is the request body for the filter endpoint. Omitted
// parameters fall back to the server defaults.
type FilterRequest struct {
	Lat             []float64   `json:"lat"`
	Lon             []float64   `json:"lon"`
	AGL             []float64   `json:"agl"`
	RadiusDeg       *float64    `json:"radius_deg,omitempty"`
	AltitudeDeltaFt *float64    `json:"altitude_delta_ft,omitempty"`
	Bounds          *geo.Bounds `json:"bounds,omitempty"`
}

// FilterResponse is the JSON response for filter requests.
type FilterResponse struct {
	ID      string         `json:"id"`
	Count   int            `json:"count"`
	Config  filter.Config  `json:"config"`
	Matches []filter.Match `json:"matches"`
	Cached  bool           `json:"cached"`
}

// config resolves the effective filter parameters of req.
func (req FilterRequest) config(def filter.Config) filter.Config {
	cfg := def
	if req.RadiusDeg != nil {
		cfg.RadiusDeg = *req.RadiusDeg
	}
	if req.AltitudeDeltaFt != nil {
		cfg.AltitudeDeltaFt = *req.AltitudeDeltaFt
	}
	if req.Bounds != nil {
		cfg.Bounds = *req.Bounds
	}
	return cfg
}

// cacheKey identifies a request by its effective config and path.
func cacheKey(cfg filter.Config, path flight.Path) (string, error) {
	data, err := json.Marshal(struct {
		Config filter.Config `json:"c"`
		Path   flight.Path   `json:"p"`
	}{cfg, path})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	path, err := flight.NewPath(req.Lat, req.Lon, req.AGL)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(path) > MaxSamples {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Maximum %d samples per request", MaxSamples))
		return
	}

	cfg := req.config(s.filter)
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key, err := cacheKey(cfg, path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.cache != nil {
		if resp, ok := s.cache.Get(key); ok {
			resp.Cached = true
			writeJSON(w, http.StatusOK, resp)
			return
		}
	}

	matches, err := s.apply(r.Context(), path, cfg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rep := filter.NewReport(cfg, path, matches)
	s.record(rep)

	resp := FilterResponse{ID: rep.ID, Count: len(matches), Config: cfg, Matches: matches}
	if s.cache != nil {
		s.cache.Add(key, resp)
	}
	writeJSON(w, http.StatusOK, resp)
}

// apply runs the filter against the source.
func (s *Server) apply(ctx context.Context, path flight.Path, cfg filter.Config) ([]filter.Match, error) {
	var matches []filter.Match
	if ix, ok := s.source.(indexedSource); ok {
		matches = ix.Index().Apply(path, cfg)
	} else {
		records, err := s.source.ObstaclesInBounds(ctx, cfg.Bounds)
		if err != nil {
			return nil, err
		}
		matches = filter.Apply(records, path, cfg)
	}
	if matches == nil {
		matches = []filter.Match{}
	}
	return matches, nil
}

// record forwards rep to every sink. Failures are logged only.
func (s *Server) record(rep filter.Report) {
	if len(s.sinks) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, sink := range s.sinks {
		if err := sink.RecordReport(ctx, rep); err != nil {
			log.Printf("record report %s: %v", rep.ID, err)
		}
	}
}

// Helper functions.

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

