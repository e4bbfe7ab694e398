// Package server exposes the question answering service over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docqa/internal/domain"
	"docqa/internal/logging"
	"docqa/internal/observability"
)

// QAService is the subset of the service the HTTP API drives.
type QAService interface {
	ProcessFiles(ctx context.Context, files []domain.FileRef) (domain.IngestSummary, error)
	Ask(ctx context.Context, question string) (domain.Answer, error)
	History(ctx context.Context) ([]domain.Turn, error)
	ClearHistory(ctx context.Context) error
	Ready() bool
	Stats(ctx context.Context) (domain.Stats, error)
}

// Config holds the listener settings.
type Config struct {
	Addr            string
	MaxUploadBytes  int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		MaxUploadBytes:  50 << 20, // 50 MB
		ReadTimeout:     60 * time.Second,
		WriteTimeout:    5 * time.Minute,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server wraps an http.Server with the API routes and manages its lifecycle.
type Server struct {
	service QAService
	config  Config
	logger  logging.Logger
	mux     *http.ServeMux
}

func New(service QAService, cfg Config, logger logging.Logger) *Server {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if logger == nil {
		logger = logging.NoOp{}
	}
	s := &Server{service: service, config: cfg, logger: logger, mux: http.NewServeMux()}

	s.route("POST /api/documents", s.handleUpload)
	s.route("POST /api/ask", s.handleAsk)
	s.route("GET /api/history", s.handleGetHistory)
	s.route("DELETE /api/history", s.handleClearHistory)
	s.route("GET /api/stats", s.handleStats)
	s.route("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	return s
}

func (s *Server) route(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, observability.Instrument(pattern, h))
}

// Handler returns the API handler with request ID, access log and panic
// recovery applied.
func (s *Server) Handler() http.Handler {
	return requestID(accessLog(s.logger, recovery(s.logger, s.mux)))
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
