//
//
package api

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/o-litvinchuk-dev/lab3/internal/config"
	"github.com/o-litvinchuk-dev/lab3/internal/logging"
)

// Options carries the optional parts of a Server.
type Options struct {
	Server         config.ServerConfig
	OriginPatterns []string

	// Metrics, when set, is mounted at MetricsPath.
	Metrics     http.Handler
	MetricsPath string

	Logger logging.Logger
}

// Server represents the HTTP API server.
type Server struct {
	httpServer    *http.Server
	ingest        IngestPort
	query         QueryPort
	subscriptions SubscriptionPort
	health        HealthPort

	cfg            config.ServerConfig
	originPatterns []string
	metrics        http.Handler
	metricsPath    string
	log            logging.Logger
	startTime      time.Time
}

// NewServer creates a new API server.
func NewServer(ingest IngestPort, query QueryPort, subscriptions SubscriptionPort, health HealthPort, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.Noop()
	}
	if opts.Server.MaxBodyBytes <= 0 {
		opts.Server.MaxBodyBytes = config.Defaults().Server.MaxBodyBytes
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	return &Server{
		ingest:         ingest,
		query:          query,
		subscriptions:  subscriptions,
		health:         health,
		cfg:            opts.Server,
		originPatterns: opts.OriginPatterns,
		metrics:        opts.Metrics,
		metricsPath:    opts.MetricsPath,
		log:            opts.Logger.With(logging.String("component", "api")),
		startTime:      time.Now(),
	}
}

// Handler returns the routed handler with request middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.withRequestContext(mux)
}

// Start starts the HTTP server on the configured address. It returns nil
// after Stop.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	s.log.Info(context.Background(), "http server listening", logging.String("addr", s.cfg.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	return nil
}

// GetServer returns the underlying HTTP server for testing.
func (s *Server) GetServer() *http.Server {
	return s.httpServer
}

// CorrelationHeader carries the request's correlation id in both directions.
const CorrelationHeader = "X-Correlation-ID"

// withRequestContext attaches a correlation id to every request and logs it
// once the handler returns.
func (s *Server) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ctx := r.Context()
		if id := r.Header.Get(CorrelationHeader); id != "" {
			ctx = logging.ContextWithRequestID(ctx, id)
		}
		ctx, id := logging.EnsureRequestID(ctx)
		w.Header().Set(CorrelationHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		s.log.Debug(ctx, "http request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", rec.status),
			logging.Duration("elapsed", time.Since(start)),
		)
	})
}

// statusRecorder captures the response status. It keeps hijacking and
// deadline control available for websocket upgrades.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
