// Package server exposes a mirrored desktop to agents over MCP and to
// monitoring over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/mj1618/deskmirror/internal/config"
	"github.com/mj1618/deskmirror/internal/desktop"
	"github.com/mj1618/deskmirror/internal/metrics"
	"github.com/mj1618/deskmirror/internal/output"
	"github.com/mj1618/deskmirror/internal/version"
)

// DefaultWriteTimeout bounds how long set_window and activate_app wait for
// the backend to settle a write.
const DefaultWriteTimeout = 3 * time.Second

// Server serves one desktop.State.
type Server struct {
	state        *desktop.State
	log          *zap.Logger
	metrics      *metrics.Metrics
	events       *EventLog
	writeTimeout time.Duration
	unsubscribe  func()

	mcp *mcpserver.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics exposes m on the HTTP /metrics route.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithEventLogSize sets how many events recent_events can return.
func WithEventLogSize(n int) Option {
	return func(s *Server) { s.events = NewEventLog(n) }
}

// WithWriteTimeout bounds how long write tools wait for confirmation.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// New creates a server for state and starts recording its events.
func New(state *desktop.State, opts ...Option) *Server {
	s := &Server{
		state:        state,
		log:          zap.NewNop(),
		events:       NewEventLog(DefaultEventLogSize),
		writeTimeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.unsubscribe = desktop.SubscribeAll(state, func(e desktop.Event) {
		s.events.Add(output.NewEventRecord(e, time.Now()))
	})

	s.mcp = mcpserver.NewMCPServer(
		"deskmirror",
		version.Version,
		mcpserver.WithToolCapabilities(false),
	)
	s.registerTools()
	return s
}

// Close stops recording events.
func (s *Server) Close() {
	s.unsubscribe()
}

// Events returns the recent event log.
func (s *Server) Events() *EventLog { return s.events }

// ServeMCP serves the MCP tools on the given transport until ctx is done.
func (s *Server) ServeMCP(ctx context.Context, transport string, port int) error {
	switch transport {
	case config.TransportStdio:
		s.log.Info("serving MCP", zap.String("transport", transport))
		err := mcpserver.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp stdio: %w", err)
		}
		return nil
	case config.TransportHTTP:
		addr := fmt.Sprintf(":%d", port)
		httpServer := mcpserver.NewStreamableHTTPServer(s.mcp)
		s.log.Info("serving MCP", zap.String("transport", transport), zap.String("addr", addr))
		return runUntilDone(ctx, func() error { return httpServer.Start(addr) }, httpServer.Shutdown)
	default:
		return fmt.Errorf("unsupported transport: %s (use %s or %s)", transport, config.TransportStdio, config.TransportHTTP)
	}
}

// ServeHTTP serves the status and metrics endpoint on addr until ctx is done.
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info("serving status endpoint", zap.String("addr", addr))
	return runUntilDone(ctx, srv.ListenAndServe, srv.Shutdown)
}

// runUntilDone runs start and calls shutdown once ctx is done.
// http.ErrServerClosed from start is not an error.
func runUntilDone(ctx context.Context, start func() error, shutdown func(context.Context) error) error {
	errc := make(chan error, 1)
	go func() { errc <- start() }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
