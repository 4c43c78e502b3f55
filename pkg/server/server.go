package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/schach/pkg/api"
	"github.com/rhuss/schach/pkg/auth"
	"github.com/rhuss/schach/pkg/engine"
	"github.com/rhuss/schach/pkg/journal"
	"github.com/rhuss/schach/pkg/observability"
)

// Server wraps an http.Server serving the move API and manages startup and
// graceful shutdown.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	moves      *moveHandler
	config     Config
	logger     *slog.Logger

	chain   *auth.Chain
	limiter auth.RateLimiter
}

// Config holds the server settings.
type Config struct {
	Addr            string
	MaxBodySize     int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// MetricsPath serves Prometheus metrics; "" disables the endpoint.
	MetricsPath string

	// Keys are the vendor API keys, per provider.
	Keys map[api.ProviderID]string

	// Defaults are the first-attempt parameters when a request omits them.
	Defaults engine.Settings
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		MaxBodySize:     1 << 20,
		ReadTimeout:     30 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		MetricsPath:     "/metrics",
		Defaults:        engine.Settings{Temperature: 0.7, TokenBudget: 300},
	}
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(s *Server) { s.config.Addr = addr }
}

// WithMaxBodySize sets the maximum request body size.
func WithMaxBodySize(n int64) Option {
	return func(s *Server) { s.config.MaxBodySize = n }
}

// WithTimeouts sets the read and write timeouts. A zero write timeout lets
// streams run until the resolution ends.
func WithTimeouts(read, write time.Duration) Option {
	return func(s *Server) {
		s.config.ReadTimeout = read
		s.config.WriteTimeout = write
	}
}

// WithShutdownTimeout sets the graceful shutdown deadline.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) { s.config.ShutdownTimeout = d }
}

// WithMetricsPath sets the metrics endpoint; "" disables it.
func WithMetricsPath(path string) Option {
	return func(s *Server) { s.config.MetricsPath = path }
}

// WithProviderKeys sets the vendor API keys.
func WithProviderKeys(keys map[api.ProviderID]string) Option {
	return func(s *Server) { s.config.Keys = keys }
}

// WithDefaults sets the first-attempt parameters. The APIKey field is ignored.
func WithDefaults(d engine.Settings) Option {
	return func(s *Server) { s.config.Defaults = d }
}

// WithAuth enables authentication. limiter may be nil.
func WithAuth(chain *auth.Chain, limiter auth.RateLimiter) Option {
	return func(s *Server) {
		s.chain = chain
		s.limiter = limiter
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Server. store is optional; without it the attempts
// endpoint replies 501.
func New(eng *engine.Engine, store journal.Store, opts ...Option) (*Server, error) {
	if eng == nil {
		return nil, errors.New("server: engine must not be nil")
	}

	s := &Server{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.config.MaxBodySize <= 0 {
		return nil, fmt.Errorf("server: max body size must be positive, got %d", s.config.MaxBodySize)
	}

	s.moves = &moveHandler{
		engine:   eng,
		store:    store,
		inflight: NewInFlightRegistry(),
		keys:     s.config.Keys,
		defaults: s.config.Defaults,
		maxBody:  s.config.MaxBodySize,
		logger:   s.logger,
	}

	mux := http.NewServeMux()
	s.moves.register(mux)
	if s.config.MetricsPath != "" {
		mux.Handle("GET "+s.config.MetricsPath, promhttp.Handler())
	}

	var h http.Handler = mux
	if s.chain != nil {
		bypass := slices.Clone(auth.DefaultBypassEndpoints)
		if s.config.MetricsPath != "" {
			bypass = append(bypass, s.config.MetricsPath)
		}
		h = auth.Middleware(s.chain, s.limiter, bypass)(h)
	}
	h = observability.MetricsMiddleware(h)
	h = Logging(s.logger)(h)
	h = RequestID(h)
	h = Recovery(s.logger)(h)
	s.handler = h

	s.httpServer = &http.Server{
		Addr:              s.config.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
	}
	return s, nil
}

// Handler returns the fully wrapped handler, for httptest.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// InFlight returns the registry of running resolutions.
func (s *Server) InFlight() *InFlightRegistry {
	return s.moves.inflight
}

// Run listens on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Addr, err)
	}
	return s.ServeOn(ctx, ln)
}

// ServeOn serves on ln until ctx is cancelled.
func (s *Server) ServeOn(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", slog.String("addr", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}
	return s.shutdown()
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down gracefully", slog.Duration("timeout", s.config.ShutdownTimeout))
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("graceful shutdown failed, closing", slog.String("error", err.Error()))
		_ = s.httpServer.Close()
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// Shutdown gracefully shuts down the server with the given context.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
