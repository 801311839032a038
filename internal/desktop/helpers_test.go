package desktop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/mj1618/deskmirror/internal/platform"
	"github.com/mj1618/deskmirror/internal/platform/memory"
)

const testFixture = `
screen: {x: 0, y: 0, width: 1920, height: 1080}
frontmost: A1
applications:
  - id: A1
    pid: 100
    bundle_id: com.apple.Terminal
    windows:
      - {id: W1, title: Terminal, position: {x: 10, y: 20}, size: {width: 800, height: 600}}
  - id: A2
    pid: 200
    bundle_id: com.apple.finder
    windows:
      - {id: W2, title: Documents, position: {x: 100, y: 100}, size: {width: 640, height: 480}}
      - {id: W3, title: Downloads, position: {x: 200, y: 150}, size: {width: 640, height: 480}}
`

const (
	waitFor = 2 * time.Second
	tick    = time.Millisecond
)

func newDesktop(t *testing.T, opts ...memory.Option) *memory.Desktop {
	t.Helper()
	f, err := memory.ParseFixture([]byte(testFixture))
	require.NoError(t, err)
	d, err := memory.FromFixture(f, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func newState(t *testing.T, d *memory.Desktop, opts ...Option) *State {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t, zaptest.Level(zap.DebugLevel)))}, opts...)
	s, err := New(context.Background(), d, opts...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

// settle waits until the loop has handled every notification the backend
// has sent so far.
func settle(t *testing.T, s *State) {
	t.Helper()
	require.NoError(t, s.call(func() {}))
}

// idle reports whether c has no backend operation in flight or scheduled.
func idle[T comparable](c *cell[T]) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight == nil && c.queued == nil && !c.reading && !c.reread
}

func mustWindow(t *testing.T, s *State, id platform.WindowID) Window {
	t.Helper()
	w, ok := s.Window(id)
	require.True(t, ok, "window %s not known", id)
	return w
}

func mustApp(t *testing.T, s *State, id platform.AppID) Application {
	t.Helper()
	a, ok := s.Application(id)
	require.True(t, ok, "application %s not known", id)
	return a
}

// recorder collects every published event.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func record(t *testing.T, s *State) *recorder {
	r := &recorder{}
	t.Cleanup(SubscribeAll(s, func(e Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, e)
	}))
	return r
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func eventsOf[E Event](r *recorder) []E {
	var out []E
	for _, e := range r.all() {
		if v, ok := e.(E); ok {
			out = append(out, v)
		}
	}
	return out
}

// countingRecorder counts protocol errors by kind.
type countingRecorder struct {
	nopRecorder
	mu       sync.Mutex
	protocol map[string]int
	outcomes map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{protocol: map[string]int{}, outcomes: map[string]int{}}
}

func (c *countingRecorder) ProtocolError(kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.protocol[kind]++
}

func (c *countingRecorder) WriteSettled(_, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes[outcome]++
}

func (c *countingRecorder) protocolErrors(kind string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.protocol[kind]
}

func (c *countingRecorder) settled(outcome string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcomes[outcome]
}
