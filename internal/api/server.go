package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/marcus/doable/internal/notify"
	"github.com/marcus/doable/internal/store"
)

// Server is the HTTP API server for doable.
type Server struct {
	config  Config
	http    *http.Server
	store   *store.Store
	hub     *notify.Hub
	metrics *Metrics
}

// NewServer creates a new Server with the given config and store.
func NewServer(cfg Config, st *store.Store) *Server {
	s := &Server{
		config:  cfg,
		store:   st,
		hub:     notify.NewHub(),
		metrics: NewMetrics(),
	}

	s.http = &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     s.routes(),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: event streams stay open indefinitely.
		IdleTimeout: 120 * time.Second,
	}

	return s
}

// Start begins listening for HTTP requests (non-blocking).
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("http server", "err", err)
		}
	}()

	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler returns the fully assembled HTTP handler. Exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

// routes builds the HTTP handler with all routes and middleware.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health & metrics
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /metricz", s.handleMetrics)

	// Users (public: signup is how an identity comes to exist)
	mux.HandleFunc("POST /v1/users", s.handleCreateUser)

	// Lists
	mux.HandleFunc("POST /v1/lists", s.requireAuth(s.handleCreateList))
	mux.HandleFunc("POST /v1/lists/join", s.requireAuth(s.handleJoinList))
	mux.HandleFunc("GET /v1/lists/{id}", s.requireAuth(s.handleGetList))

	// Todos
	mux.HandleFunc("POST /v1/lists/{id}/todos", s.requireAuth(s.handleCreateTodo))
	mux.HandleFunc("POST /v1/todos/{id}/state", s.requireAuth(s.handleUpdateTodoState))

	// Delta sync & change notifications
	mux.HandleFunc("GET /v1/lists/{id}/todos", s.requireAuth(s.handleSyncTodos))
	mux.HandleFunc("GET /v1/lists/{id}/events", s.requireAuth(s.handleListEvents))

	h := chain(mux, recoveryMiddleware, requestIDMiddleware, loggerMiddleware,
		metricsMiddleware(s.metrics), loggingMiddleware, maxBytesMiddleware(s.config.MaxBodyBytes))

	if len(s.config.CORSAllowedOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins: s.config.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
		}).Handler(h)
	}

	return h
}

// handleHealth returns a health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleMetrics returns a snapshot of server metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}
