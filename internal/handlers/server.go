package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"dailytopic/internal/config"
	"dailytopic/internal/model"
)

// Runner executes one daily pass.
type Runner interface {
	Run(ctx context.Context) (*model.DailyReport, error)
}

// SnapshotLister lists archived statistics snapshots.
type SnapshotLister interface {
	ListSnapshots(ctx context.Context) ([]string, error)
}

// Server exposes the pipeline over HTTP for triggered deployments.
type Server struct {
	cfg    *config.Config
	runner Runner
	stats  SnapshotLister
}

// NewServer creates a new HTTP server around the pipeline.
func NewServer(cfg *config.Config, runner Runner, stats SnapshotLister) *Server {
	return &Server{cfg: cfg, runner: runner, stats: stats}
}

// SetupRoutes configures HTTP routes
func (s *Server) SetupRoutes() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)

	api.HandleFunc("/health", s.healthHandler).Methods("GET")
	api.HandleFunc("/stats", s.statsHandler).Methods("GET")
	// Registered last: a later route failing on path would clear the method
	// mismatch and the 405 would come back as a 404.
	api.Handle("/process", s.authMiddleware(http.HandlerFunc(s.processHandler))).Methods("POST")

	return r
}

// methodNotAllowedHandler answers requests that hit a known path with the
// wrong HTTP method.
func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{
		"error": "method not allowed",
	})
}

// healthHandler provides health check endpoint
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// processHandler triggers one daily pass.
func (s *Server) processHandler(w http.ResponseWriter, r *http.Request) {
	report, err := s.runner.Run(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_articles": report.TotalArticles,
		"summaries":      len(report.Summaries),
		"uncategorized":  len(report.Uncategorized),
		"total_tokens":   report.Usage.TotalTokens(),
		"total_cost_usd": report.Usage.CostUSD,
	})
}

// statsHandler lists archived statistics snapshots.
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	names, err := s.stats.ListSnapshots(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"snapshots": names,
		"count":     len(names),
	})
}

// authMiddleware rejects trigger requests without the configured bearer
// token. When no token is configured the check is skipped.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.WebhookAuthToken != "" {
			if r.Header.Get("Authorization") != "Bearer "+s.cfg.WebhookAuthToken {
				writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
					"error": "unauthorized",
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each request.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
