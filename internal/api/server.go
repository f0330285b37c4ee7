// Package api exposes the trend store, the pipeline trigger and the
// assistant over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"github.com/trendzee/live-trends/internal/assistant"
	"github.com/trendzee/live-trends/internal/models"
	"github.com/trendzee/live-trends/internal/pipeline"
	"github.com/trendzee/live-trends/internal/query"
	"github.com/trendzee/live-trends/internal/ratelimit"
)

// Pipeline is the part of pipeline.Service the API drives
type Pipeline interface {
	Run(ctx context.Context, req pipeline.Request) (*models.RunReport, error)
	GetMetrics() string
}

// Server holds the HTTP handlers' dependencies
type Server struct {
	pipeline       Pipeline
	trends         *query.Service
	assistant      *assistant.Assistant
	chatLimiter    *ratelimit.Limiter
	triggerTimeout time.Duration
	corsOrigins    []string

	// trustProxyHeaders keys the chat limit on X-Forwarded-For
	trustProxyHeaders bool
}

// Option configures a Server
type Option func(*Server)

// WithTriggerTimeout bounds a single triggered pipeline run
func WithTriggerTimeout(d time.Duration) Option {
	return func(s *Server) { s.triggerTimeout = d }
}

// WithCORSOrigins sets the origins allowed to call the API from a browser
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithTrustedProxyHeaders keys chat rate limits on the address a fronting
// proxy appends to X-Forwarded-For instead of the peer address
func WithTrustedProxyHeaders(trust bool) Option {
	return func(s *Server) { s.trustProxyHeaders = trust }
}

// NewServer creates the API server
func NewServer(p Pipeline, trends *query.Service, a *assistant.Assistant, chatLimiter *ratelimit.Limiter, opts ...Option) *Server {
	s := &Server{
		pipeline:       p,
		trends:         trends,
		assistant:      a,
		chatLimiter:    chatLimiter,
		triggerTimeout: 5 * time.Minute,
		corsOrigins:    []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router wrapped in CORS handling
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.HandleFunc("/metrics", s.metricsHandler).Methods("GET")
	router.HandleFunc("/trigger", s.triggerHandler).Methods("POST")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/trends", s.listTrendsHandler).Methods("GET")
	api.HandleFunc("/trends", s.createTrendHandler).Methods("POST")
	api.HandleFunc("/trends/top", s.topTrendsHandler).Methods("GET")
	api.HandleFunc("/trends/{id:[0-9]+}", s.getTrendHandler).Methods("GET")
	api.HandleFunc("/trends/{id:[0-9]+}", s.deleteTrendHandler).Methods("DELETE")
	api.HandleFunc("/trends/{id:[0-9]+}/related", s.relatedTrendsHandler).Methods("GET")
	api.HandleFunc("/trends/{id:[0-9]+}/explain", s.explainTrendHandler).Methods("POST")
	api.HandleFunc("/trends/{id:[0-9]+}/insights", s.insightsHandler).Methods("GET")
	api.HandleFunc("/chat", s.chatHandler).Methods("POST")

	return cors.New(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"X-RateLimit-Remaining"},
		MaxAge:         300,
	}).Handler(router)
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(s.pipeline.GetMetrics()))
}

// triggerHandler runs the pipeline and returns its report. With
// ?async=true the run continues in the background and 202 is returned.
func (s *Server) triggerHandler(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if r.URL.Query().Get("async") == "true" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.triggerTimeout)
			defer cancel()
			if _, err := s.pipeline.Run(ctx, req); err != nil {
				logrus.Errorf("Manual pipeline trigger failed: %v", err)
			}
		}()
		writeJSON(w, http.StatusAccepted, map[string]string{"message": "Pipeline run triggered"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.triggerTimeout)
	defer cancel()

	report, err := s.pipeline.Run(ctx, req)
	if err != nil {
		logrus.Errorf("Manual pipeline trigger failed: %v", err)
		writeError(w, http.StatusInternalServerError, "pipeline run failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Debugf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
