// Package api implements the HTTP API.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cadencehq/cadence-agent/internal/agent"
	"github.com/cadencehq/cadence-agent/internal/buildinfo"
	"github.com/cadencehq/cadence-agent/internal/models"
	"github.com/cadencehq/cadence-agent/internal/prompt"
	"github.com/cadencehq/cadence-agent/internal/store"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Server is the HTTP API server.
type Server struct {
	address string
	port    int
	store   *store.Store
	loop    *agent.Loop
	prompts *prompt.Builder
	logger  *slog.Logger
	server  *http.Server
}

// NewServer creates the API server.
func NewServer(address string, port int, st *store.Store, loop *agent.Loop, prompts *prompt.Builder, logger *slog.Logger) *Server {
	return &Server{
		address: address,
		port:    port,
		store:   st,
		loop:    loop,
		prompts: prompts,
		logger:  logger,
	}
}

// Handler builds the routed handler. Split from Start so tests can
// drive it through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Chat endpoint, browser-reachable so it carries CORS headers.
	mux.HandleFunc("POST /v1/chat", s.withCORS(s.handleChat))
	mux.HandleFunc("OPTIONS /v1/chat", s.withCORS(s.handlePreflight))

	// Dashboard reads
	mux.HandleFunc("GET /v1/tasks", s.handleTasks)
	mux.HandleFunc("GET /v1/memories", s.handleMemories)
	mux.HandleFunc("GET /v1/directives", s.handleDirectives)
	mux.HandleFunc("GET /v1/identity", s.handleIdentity)
	mux.HandleFunc("GET /v1/costs", s.handleCosts)
	mux.HandleFunc("GET /v1/sessions/{id}/messages", s.handleSessionMessages)
	mux.HandleFunc("GET /v1/models", s.handleModels)

	// Health endpoints
	mux.HandleFunc("GET /v1/version", s.handleVersion)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /", s.handleRoot)

	return s.withLogging(mux)
}

// Start begins serving HTTP requests.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // agent loops can run long
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) withCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
		h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		next(w, r)
	}
}

func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, body, s.logger)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"name":    "Cadence",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, buildinfo.Info(), s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "healthy"}, s.logger)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	list := make([]map[string]any, 0, len(models.Keys()))
	for _, key := range models.Keys() {
		m := models.Resolve(key)
		list = append(list, map[string]any{
			"key":                key,
			"id":                 m.ID,
			"input_per_million":  m.InputPerMillion,
			"output_per_million": m.OutputPerMillion,
			"default":            key == models.DefaultKey,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"models": list}, s.logger)
}
