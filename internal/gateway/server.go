// Package gateway serves the chat completion endpoint over HTTP.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/soyeahso/geminichat/internal/config"
	"github.com/soyeahso/geminichat/internal/domain"
	"github.com/soyeahso/geminichat/internal/logging"
)

// Generator produces the assistant reply for a transcript.
type Generator interface {
	Generate(ctx context.Context, history []domain.Message) (*domain.ChatResponse, error)
}

// Server is the geminichat HTTP server.
type Server struct {
	cfg     config.ServerConfig
	gen     Generator
	log     *logging.Logger
	onReady func(addr net.Addr)

	httpServer *http.Server
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithReadyFunc is called with the bound address once the listener is up.
func WithReadyFunc(fn func(addr net.Addr)) ServerOption {
	return func(s *Server) {
		s.onReady = fn
	}
}

// New creates a new server answering chat requests with gen.
func New(cfg config.ServerConfig, gen Generator, log *logging.Logger, opts ...ServerOption) *Server {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = config.DefaultChunkSize
	}
	s := &Server{
		cfg: cfg,
		gen: gen,
		log: log.Sub("gateway"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)
	return withMiddleware(mux, s.log, s.cfg.AllowedOrigins)
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.ServerConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return net.JoinHostPort(host, fmt.Sprint(cfg.Port))
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start begins listening for HTTP connections.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg)

	writeTimeout := time.Duration(s.cfg.WriteTimeoutSeconds) * time.Second
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Bind).
		Int("chunkSize", s.cfg.ChunkSize).
		Msg("gateway server ready")

	if s.onReady != nil {
		s.onReady(ln.Addr())
	}

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the server's configured listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}
