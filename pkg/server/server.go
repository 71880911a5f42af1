// Package server exposes the consistency layer over HTTP for inspection and
// tooling: service statistics, change history, baselines, active sessions,
// and Prometheus metrics.
package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tokenlab/tokencore/pkg/registry"
)

// Server holds the router and the wired services.
type Server struct {
	router   *mux.Router
	registry *registry.Registry
	logger   zerolog.Logger
}

// NewServer creates a server over an existing registry.
func NewServer(reg *registry.Registry, logger zerolog.Logger) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		registry: reg,
		logger:   logger,
	}
	s.routes()
	s.router.Use(s.requestLoggerMiddleware)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Warn().Str("method", r.Method).Str("path", r.URL.Path).Msg("no route found")
		WriteJSONError(w, http.StatusNotFound, "no route for "+r.URL.Path)
	})

	return s
}

// requestLoggerMiddleware logs the method, path, and duration of each request.
func (s *Server) requestLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

// Router exposes the internal mux.Router.
func (s *Server) Router() http.Handler {
	return s.router
}

// routes defines all REST endpoints.
func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/stats", s.handleStats).Methods("GET")

	s.router.HandleFunc("/changes", s.handleChanges).Methods("GET")
	s.router.HandleFunc("/changes/{entityType}/{entityId}", s.handleChangesByEntity).Methods("GET")

	s.router.HandleFunc("/baselines", s.handleBaselines).Methods("GET")
	s.router.HandleFunc("/baselines", s.handleCreateBaseline).Methods("POST")
	s.router.HandleFunc("/baselines/{id}/activate", s.handleActivateBaseline).Methods("POST")
	s.router.HandleFunc("/baselines/{id}/rollback", s.handleRollbackToBaseline).Methods("POST")

	s.router.HandleFunc("/sessions", s.handleSessions).Methods("GET")

	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry.Metrics, promhttp.HandlerOpts{}))
}
