// Package server exposes the analytical queries over a small read-only HTTP
// API, for inspecting a store file produced by an earlier pipeline run.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vectral/post-analytics/internal/query"
)

// Server handles HTTP requests against a shared query engine. It only reads
// from the store, so it can run alongside nothing else touching the file.
type Server struct {
	engine *query.Engine
	logger *log.Logger
	server *http.Server
}

// NewServer creates an HTTP server on the given port.
func NewServer(port int, engine *query.Engine, logger *log.Logger) *Server {
	s := &Server{
		engine: engine,
		logger: logger.With("component", "server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/queries", s.handleQueries)
	mux.HandleFunc("/queries/", s.handleQuery)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	return s
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleQueries lists the available query names.
func (s *Server) handleQueries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"queries": query.Names()})
}

// handleQuery executes a single named query and returns its tabular result.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/queries/")
	result, err := s.engine.Run(r.Context(), name)
	if err != nil {
		var qerr *query.QueryError
		if errors.As(err, &qerr) {
			s.logger.Warn("query failed", "query", name, "error", err)
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":    result.Name,
		"title":   result.Title,
		"columns": result.Columns,
		"rows":    result.Rows,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
