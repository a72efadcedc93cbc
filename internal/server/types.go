package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/MeKo-Tech/scanocr/internal/engine"
	"github.com/MeKo-Tech/scanocr/internal/imageio"
	"github.com/MeKo-Tech/scanocr/internal/session"
	"github.com/MeKo-Tech/scanocr/internal/workflow"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	store       *session.Store
	engine      engine.Engine
	languages   []string
	corsOrigin  string
	maxUploadMB int64
	previewSize int
	rateLimiter *RateLimiter
	log         *slog.Logger
}

// Config holds server configuration.
type Config struct {
	CORSOrigin  string
	MaxUploadMB int64
	PreviewSize int
	Engine      engine.Engine
	Decoder     *imageio.Decoder
	Workflow    workflow.Options
	Session     session.Options
	RateLimit   RateLimitConfig
	Logger      *slog.Logger
}

// RateLimitConfig holds per-client request limits. Zero values disable the
// corresponding limit.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64
}

// Response types for API endpoints.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Time     string `json:"time"`
	Sessions int    `json:"sessions"`
}

type EngineResponse struct {
	Name      string   `json:"name"`
	Languages []string `json:"languages"`
}

type SessionResponse struct {
	Success bool              `json:"success"`
	Session workflow.Snapshot `json:"session"`
}

type ErrorResponse struct {
	Success   bool               `json:"success"`
	Error     string             `json:"error"`
	ErrorType string             `json:"error_type,omitempty"`
	Session   *workflow.Snapshot `json:"session,omitempty"`
}

// NewServer creates the server and its session store. The server takes
// ownership of the engine and closes it in Close.
func NewServer(config Config) (*Server, error) {
	if config.Engine == nil {
		return nil, errors.New("server requires an OCR engine")
	}
	if config.MaxUploadMB <= 0 {
		config.MaxUploadMB = 50
	}
	if config.PreviewSize <= 0 {
		config.PreviewSize = imageio.DefaultPreviewSize
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Decoder == nil {
		config.Decoder = imageio.NewDecoder(0)
	}
	if len(config.Workflow.Languages) == 0 {
		config.Workflow.Languages = engine.DefaultLanguages
	}
	if config.Workflow.Logger == nil {
		config.Workflow.Logger = config.Logger
	}

	sessOpts := config.Session
	if sessOpts.Logger == nil {
		sessOpts.Logger = config.Logger
	}
	onChange := sessOpts.OnChange
	sessOpts.OnChange = func(n int) {
		activeSessions.Set(float64(n))
		if onChange != nil {
			onChange(n)
		}
	}

	eng, dec, wfOpts := config.Engine, config.Decoder, config.Workflow
	store := session.NewStore(func(id string) *workflow.Session {
		return workflow.New(id, dec, eng, wfOpts)
	}, sessOpts)

	s := &Server{
		store:       store,
		engine:      eng,
		languages:   wfOpts.Languages,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		previewSize: config.PreviewSize,
		log:         config.Logger,
	}
	if rl := config.RateLimit; rl.Enabled {
		s.rateLimiter = NewRateLimiter(rl.RequestsPerMinute, rl.RequestsPerHour, rl.MaxRequestsPerDay, rl.MaxDataPerDay)
	}
	return s, nil
}

// Store exposes the session registry.
func (s *Server) Store() *session.Store { return s.store }

// Close stops the session janitor and releases the engine.
func (s *Server) Close() error {
	s.store.Close()
	return engine.Close(s.engine)
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(r *mux.Router) {
	get := []string{http.MethodGet, http.MethodOptions}
	post := []string{http.MethodPost, http.MethodOptions}

	r.HandleFunc("/health", s.corsMiddleware(s.healthHandler)).Methods(get...)
	r.HandleFunc("/engine", s.corsMiddleware(s.engineHandler)).Methods(get...)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.sessionWebSocketHandler).Methods(http.MethodGet)

	r.HandleFunc("/sessions", s.corsMiddleware(s.rateLimitMiddleware(s.createSessionHandler))).Methods(post...)
	r.HandleFunc("/sessions/{id}", s.corsMiddleware(s.getSessionHandler)).Methods(get...)
	r.HandleFunc("/sessions/{id}", s.corsMiddleware(s.deleteSessionHandler)).Methods(http.MethodDelete)
	r.HandleFunc("/sessions/{id}/image", s.corsMiddleware(s.rateLimitMiddleware(s.uploadImageHandler))).Methods(post...)
	r.HandleFunc("/sessions/{id}/image", s.corsMiddleware(s.previewImageHandler)).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/extract", s.corsMiddleware(s.rateLimitMiddleware(s.extractHandler))).Methods(post...)
	r.HandleFunc("/sessions/{id}/reset", s.corsMiddleware(s.resetHandler)).Methods(post...)
	r.HandleFunc("/sessions/{id}/text", s.corsMiddleware(s.textHandler)).Methods(get...)
}

// Handler returns a router with every route installed.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	s.SetupRoutes(r)
	return r
}
