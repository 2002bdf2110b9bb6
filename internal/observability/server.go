// Package observability provides Prometheus metrics for attachment uploads
// and the HTTP server that exposes them in watch mode.
//
// # Endpoints
//
//   - GET /healthz: Returns 200 while the process is running.
//   - GET /readyz: Returns 200 once the watcher is initialized and polling
//     for filesystem events; 503 before that.
//   - GET /metrics: Prometheus metrics in text exposition format.
//
// # Custom Metrics
//
//	snattach_uploads_total          Counter  Upload attempts per table
//	snattach_upload_errors_total    Counter  Failed uploads per table and reason
//	snattach_upload_duration_seconds Hist    Attachment API response latency
//	snattach_uploaded_bytes_total   Counter  Payload bytes of successful uploads
//
// One-shot CLI invocations record metrics too, but only watch mode runs the
// server that exposes them.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ----- Prometheus Metrics -----

// Metrics holds all Prometheus metrics used by the uploader.
// Using promauto for automatic registration with the default registry.
var Metrics = struct {
	UploadsTotal       *prometheus.CounterVec
	UploadErrorsTotal  *prometheus.CounterVec
	UploadDuration     *prometheus.HistogramVec
	UploadedBytesTotal *prometheus.CounterVec
}{
	UploadsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snattach_uploads_total",
		Help: "Total number of attachment upload attempts.",
	}, []string{"table"}),

	UploadErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snattach_upload_errors_total",
		Help: "Total number of failed attachment uploads by reason or status code.",
	}, []string{"table", "reason"}),

	UploadDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "snattach_upload_duration_seconds",
		Help:    "Attachment API response latency in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"table"}),

	UploadedBytesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snattach_uploaded_bytes_total",
		Help: "Total payload bytes of successfully uploaded attachments.",
	}, []string{"table"}),
}

// ----- Health/Readiness Server -----

// Server provides HTTP endpoints for health checks, readiness probes,
// and Prometheus metrics.
type Server struct {
	addr   string
	ready  atomic.Bool
	logger *slog.Logger
	srv    *http.Server
}

// NewServer creates a new observability HTTP server.
func NewServer(addr string, logger *slog.Logger) *Server {
	s := &Server{
		addr:   addr,
		logger: logger.With("component", "observability"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.Handle("/metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening for HTTP requests. Blocks until the context is
// cancelled, then gracefully shuts down the server.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("observability server starting", "addr", s.addr)

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down observability server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
	}()

	if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("observability server: %w", err)
	}
	return nil
}

// SetReady marks the server as ready (or not ready) for readiness probes.
// Call SetReady(true) once the watcher is running.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
	s.logger.Info("readiness state changed", "ready", ready)
}

// handleHealth responds with 200 OK — the process is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"status":"healthy"}`)
}

// handleReady responds with 200 if ready, 503 if not yet ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"status":"ready"}`)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = fmt.Fprintf(w, `{"status":"not_ready"}`)
	}
}
