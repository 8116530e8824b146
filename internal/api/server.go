// Package api exposes the latest StreamPulse snapshot over a read-only REST API.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/RobinCoderZhao/streampulse/internal/pulse/model"
)

// SnapshotSource is the read side of the snapshot store.
type SnapshotSource interface {
	Current() *model.Snapshot
}

// Server holds the dependencies for the API.
type Server struct {
	store   SnapshotSource
	started time.Time
	logger  *slog.Logger
	now     func() time.Time
}

// NewServer creates a new API Server instance.
func NewServer(store SnapshotSource) *Server {
	return &Server{
		store:   store,
		started: time.Now(),
		logger:  slog.Default(),
		now:     time.Now,
	}
}

// SetLogger sets a custom logger.
func (s *Server) SetLogger(l *slog.Logger) {
	s.logger = l
}

// Routes returns the configured http.Handler (ServeMux) for the API.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth())

	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot())
	mux.HandleFunc("GET /api/news", s.handleNewsIndex())
	mux.HandleFunc("GET /api/news/{category}", s.handleNews())
	mux.HandleFunc("GET /api/quotes", s.handleQuotes())
	mux.HandleFunc("GET /api/quotes/{symbol}", s.handleQuote())
	mux.HandleFunc("GET /api/stats", s.handleStats())
	mux.HandleFunc("GET /api/errors", s.handleErrors())

	return s.logRequests(mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("api request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}

// --- Helpers ---

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
