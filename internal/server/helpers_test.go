package server

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mj1618/deskmirror/internal/desktop"
	"github.com/mj1618/deskmirror/internal/metrics"
	"github.com/mj1618/deskmirror/internal/platform/memory"
)

const fixture = `
screen: {width: 1000, height: 800}
frontmost: A1
applications:
  - id: A1
    pid: 100
    bundle_id: com.apple.Terminal
    windows:
      - {id: W1, title: Terminal, position: {x: 10, y: 20}, size: {width: 400, height: 300}}
  - id: A2
    pid: 200
    windows:
      - {id: W2, title: Documents, position: {x: 100, y: 100}, size: {width: 300, height: 200}}
`

type env struct {
	desk    *memory.Desktop
	state   *desktop.State
	metrics *metrics.Metrics
	srv     *Server
}

func newEnv(t *testing.T) *env {
	t.Helper()
	f, err := memory.ParseFixture([]byte(fixture))
	require.NoError(t, err)
	d, err := memory.FromFixture(f)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	m := metrics.New()
	log := zaptest.NewLogger(t)
	st, err := desktop.New(context.Background(), d, desktop.WithLogger(log), desktop.WithMetrics(m))
	require.NoError(t, err)
	t.Cleanup(st.Close)

	srv := New(st, WithLogger(log), WithMetrics(m), WithWriteTimeout(2*time.Second))
	t.Cleanup(srv.Close)
	return &env{desk: d, state: st, metrics: m, srv: srv}
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return text.Text, res.IsError
}

const (
	waitFor = 2 * time.Second
	tick    = time.Millisecond
)
