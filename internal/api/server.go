// Package api is the HTTP surface: a gorilla/mux router over the engine,
// analyzers, health monitor and override manager, with API-key auth and
// per-IP rate limits on the data routes.
package api

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/turfscan/turfscan/internal/analyzer"
	"github.com/turfscan/turfscan/internal/engine"
	"github.com/turfscan/turfscan/internal/guard"
	"github.com/turfscan/turfscan/internal/model"
	"github.com/turfscan/turfscan/internal/override"
	"github.com/turfscan/turfscan/internal/telemetry"
)

// Per-IP request budgets, per minute, by route group.
const (
	racesPerMinute     = 30
	qualifiedPerMinute = 120
	statusPerMinute    = 60
)

// Config carries the server-level settings.
type Config struct {
	ListenAddr     string
	APIKey         string
	AllowedOrigins []string
}

// Server wires the router, middleware chain and handlers.
type Server struct {
	cfg       Config
	router    *mux.Router
	server    *http.Server
	engine    *engine.Engine
	analyzers *analyzer.Registry
	health    *guard.Monitor
	overrides *override.Manager
	metrics   *telemetry.Metrics

	races     *ipLimiter
	qualified *ipLimiter
	status    *ipLimiter

	now func() time.Time
}

// New builds the server. Pass a nil metrics registry to skip /metrics.
func New(cfg Config, eng *engine.Engine, analyzers *analyzer.Registry,
	health *guard.Monitor, overrides *override.Manager, metrics *telemetry.Metrics) *Server {
	s := &Server{
		cfg:       cfg,
		router:    mux.NewRouter(),
		engine:    eng,
		analyzers: analyzers,
		health:    health,
		overrides: overrides,
		metrics:   metrics,
		races:     newIPLimiter(racesPerMinute),
		qualified: newIPLimiter(qualifiedPerMinute),
		status:    newIPLimiter(statusPerMinute),
		now:       time.Now,
	}
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.accessLogMiddleware)
	s.router.Use(s.corsMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.authMiddleware)
	api.Use(jsonContentType)

	api.Handle("/races", s.races.wrap(http.HandlerFunc(s.handleRaces))).Methods("GET")
	api.Handle("/races/qualified/{analyzer}", s.qualified.wrap(http.HandlerFunc(s.handleQualified))).Methods("GET")
	api.Handle("/adapters/status", s.status.wrap(http.HandlerFunc(s.handleAdapterStatus))).Methods("GET")
	api.HandleFunc("/manual-overrides/submit", s.handleOverrideSubmit).Methods("POST")
	api.HandleFunc("/manual-overrides/pending", s.handleOverridePending).Methods("GET")

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until the listener closes.
func (s *Server) Start() error {
	log.Info().Str("addr", s.cfg.ListenAddr).Msg("Starting API server")
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down API server")
	return s.server.Shutdown(ctx)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()[:8]
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type requestIDKey struct{}

func (s *Server) accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		elapsed := time.Since(start)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		if s.metrics != nil {
			s.metrics.ObserveHTTP(route, r.Method, sw.status, elapsed)
		}

		id, _ := r.Context().Value(requestIDKey{}).(string)
		log.Info().
			Str("request_id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("duration", elapsed).
			Str("remote", clientIP(r)).
			Msg("Request")
	})
}

// authMiddleware enforces X-API-Key on the /api subtree. An empty configured
// key disables auth for local development.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKey != "" && r.Header.Get("X-API-Key") != s.cfg.APIKey {
			writeError(w, http.StatusForbidden, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		for _, allowed := range s.cfg.AllowedOrigins {
			if strings.EqualFold(origin, allowed) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
				break
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// clientIP prefers X-Forwarded-For so limits follow the real client behind a
// proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// today is the default race_date: the current calendar day in Eastern time,
// which is the timezone every race key is computed in.
func (s *Server) today() string {
	return s.now().In(model.Eastern()).Format("2006-01-02")
}
