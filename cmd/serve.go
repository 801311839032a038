package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mj1618/deskmirror/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start an MCP server exposing the mirrored desktop",
	Long: `Start a Model Context Protocol (MCP) server with tools to list, inspect and
change windows and applications, and to read recent change events.

Supported transports:
  stdio             Standard I/O (default, for MCP clients)
  streamable-http   Streamable HTTP transport (for remote agents)

With --metrics-addr an HTTP endpoint also serves /healthz, /windows, /apps,
/events and Prometheus /metrics.

Examples:
  deskmirror serve
  deskmirror serve --transport streamable-http --port 8080
  deskmirror serve --metrics-addr :9100 --play`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("transport", "", "Transport: stdio, streamable-http")
	serveCmd.Flags().Int("port", 0, "HTTP port for streamable-http transport")
	serveCmd.Flags().String("metrics-addr", "", "Address for the HTTP status and metrics endpoint (empty = off)")
	serveCmd.Flags().Int("events", server.DefaultEventLogSize, "Number of recent events kept for recent_events")
	serveCmd.Flags().Duration("write-timeout", server.DefaultWriteTimeout, "How long write tools wait for confirmation")
	serveCmd.Flags().Bool("play", false, "Run the fixture's script of simulated changes in the background")
}

func runServe(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	if flags.Changed("transport") {
		cfg.Server.Transport, _ = flags.GetString("transport")
	}
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("metrics-addr") {
		cfg.Server.MetricsAddr, _ = flags.GetString("metrics-addr")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	events, _ := flags.GetInt("events")
	writeTimeout, _ := flags.GetDuration("write-timeout")
	play, _ := flags.GetBool("play")

	s, err := openSession(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	srv := server.New(s.state,
		server.WithLogger(logger),
		server.WithMetrics(s.metrics),
		server.WithEventLogSize(events),
		server.WithWriteTimeout(writeTimeout),
	)
	defer srv.Close()

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		if err := srv.ServeMCP(ctx, cfg.Server.Transport, cfg.Server.Port); err != nil {
			return fmt.Errorf("failed to serve MCP: %w", err)
		}
		return errStop
	})
	if cfg.Server.MetricsAddr != "" {
		g.Go(func() error {
			return srv.ServeHTTP(ctx, cfg.Server.MetricsAddr)
		})
	}
	if play {
		g.Go(func() error {
			return s.play(ctx)
		})
	}
	g.Go(func() error {
		select {
		case <-ctx.Done():
			return nil
		case <-s.state.Done():
			return fmt.Errorf("desktop mirror stopped")
		}
	})

	start := time.Now()
	err = g.Wait()
	logger.Sugar().Infof("server stopped after %s", time.Since(start).Round(time.Second))
	if errors.Is(err, errStop) {
		return nil
	}
	return err
}
