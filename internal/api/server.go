// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package api serves the pipeline over HTTP and WebSocket: blocking runs,
// streamed runs, trace and analytics lookups, drift scoring and the graph
// schema.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pdiddy/agentlens/internal/events"
	"github.com/pdiddy/agentlens/internal/pipeline"
	"github.com/pdiddy/agentlens/internal/telemetry"
	"github.com/pdiddy/agentlens/pkg/types"
)

// shutdownTimeout bounds graceful shutdown of in-flight requests.
const shutdownTimeout = 10 * time.Second

// Runs executes pipeline runs, blocking or streamed.
type Runs interface {
	Run(ctx context.Context, question string) (types.RunResult, error)
	Stream(ctx context.Context, question string, send func(events.Record) error) (types.RunResult, error)
}

// Traces answers trace and analytics lookups for finished runs.
type Traces interface {
	Trace(ctx context.Context, id string) telemetry.TraceResult
	Analytics(ctx context.Context, runID string) telemetry.AnalyticsResult
}

// Deps are the collaborators of the server. Metrics may be nil.
type Deps struct {
	Runs    Runs
	Traces  Traces
	Graph   *pipeline.Graph
	Metrics http.Handler
	Log     *zap.Logger
}

// Server is the HTTP and WebSocket transport.
type Server struct {
	runs     Runs
	traces   Traces
	graph    *pipeline.Graph
	metrics  http.Handler
	log      *zap.Logger
	upgrader websocket.Upgrader
}

// NewServer returns a Server for d.
func NewServer(d Deps) *Server {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		runs:    d.Runs,
		traces:  d.Traces,
		graph:   d.Graph,
		metrics: d.Metrics,
		log:     log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Post("/run-agent", s.runAgent)
		r.Get("/trace/{runID}", s.trace)
		r.Get("/analytics/{runID}", s.analytics)
		r.Post("/drift", s.drift)
		r.Get("/graph-schema", s.graphSchema)
	})
	r.Get("/ws/run", s.streamRun)
	r.Get("/health", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	s.log.Info("listening", zap.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			return
		}
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, value any) {
	writeJSONStatus(w, value, http.StatusOK)
}

func writeJSONStatus(w http.ResponseWriter, value any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, statusCode int, msg string) {
	writeJSONStatus(w, map[string]string{"error": msg}, statusCode)
}
