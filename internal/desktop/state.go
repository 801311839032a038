package desktop

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mj1618/deskmirror/internal/dispatch"
	"github.com/mj1618/deskmirror/internal/model"
	"github.com/mj1618/deskmirror/internal/platform"
)

// ErrClosed is returned when the State loop has already stopped.
var ErrClosed = errors.New("desktop state closed")

// State mirrors the applications and windows of one backend.
//
// A single loop goroutine consumes backend notifications and the completions
// of backend reads and writes. It is the only writer of the registry maps and
// the only goroutine that publishes events.
type State struct {
	backend   platform.Backend
	bus       *dispatch.Bus
	log       *zap.Logger
	metrics   Recorder
	opTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	ops    chan func()
	done   chan struct{}

	mu         sync.RWMutex
	apps       map[platform.AppID]*application
	windows    map[platform.WindowID]*window
	appWindows map[platform.AppID]map[platform.WindowID]struct{}

	// Loop-only admission bookkeeping.
	pendingApps    map[platform.AppID]*pending[platform.AppProperty]
	pendingWindows map[platform.WindowID]*pending[platform.WindowProperty]
	deferred       map[platform.AppID][]platform.WindowHandle

	frontmost *cell[platform.AppID]
}

// New binds a State to backend, admits the applications and windows the
// backend already knows about, and then starts consuming notifications.
// No lifecycle events are published for the initial set. The State runs
// until ctx is cancelled, Close is called, or the backend closes its
// notification channel.
func New(ctx context.Context, backend platform.Backend, opts ...Option) (*State, error) {
	s := &State{
		backend:        backend,
		bus:            dispatch.New(),
		log:            zap.NewNop(),
		metrics:        nopRecorder{},
		opTimeout:      DefaultOpTimeout,
		ops:            make(chan func(), 64),
		done:           make(chan struct{}),
		apps:           make(map[platform.AppID]*application),
		windows:        make(map[platform.WindowID]*window),
		appWindows:     make(map[platform.AppID]map[platform.WindowID]struct{}),
		pendingApps:    make(map[platform.AppID]*pending[platform.AppProperty]),
		pendingWindows: make(map[platform.WindowID]*pending[platform.WindowProperty]),
		deferred:       make(map[platform.AppID][]platform.WindowHandle),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	start := make(chan struct{})
	go s.run(start)

	if err := s.bootstrap(ctx); err != nil {
		s.Close()
		return nil, err
	}
	close(start)
	return s, nil
}

// Close stops the loop and waits for it to exit. Outstanding backend
// operations finish on their own; their results are dropped.
func (s *State) Close() {
	s.cancel()
	<-s.done
}

// Done is closed when the loop has exited.
func (s *State) Done() <-chan struct{} { return s.done }

func (s *State) bootstrap(ctx context.Context) error {
	front := s.backend.FrontmostApplication()
	current, err := front.Read(ctx)
	if err != nil {
		return fmt.Errorf("read frontmost application: %w", err)
	}
	s.frontmost = newCell(s, "state.frontmost_application", "", current, front, front)
	s.frontmost.notify = func(ext bool, o, n platform.AppID) {
		old := s.lookupApp(o)
		s.whenAppKnown(n, func() {
			publish(s, FrontmostApplicationChangedEvent{External: ext, OldValue: old, NewValue: s.lookupApp(n)})
		})
	}

	handles, err := s.backend.RunningApplications(ctx)
	if err != nil {
		return fmt.Errorf("enumerate applications: %w", err)
	}
	apps := make([]*application, len(handles))
	g, gctx := errgroup.WithContext(ctx)
	for i, h := range handles {
		g.Go(func() error {
			a, err := s.buildApp(gctx, h)
			if err != nil {
				s.log.Warn("application construction failed", zap.String("application", string(h.ID())), zap.Error(err))
				return nil
			}
			apps[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := s.call(func() {
		for _, a := range apps {
			if a != nil {
				s.insertApp(a)
			}
		}
	}); err != nil {
		return err
	}

	whandles, err := s.backend.KnownWindows(ctx)
	if err != nil {
		return fmt.Errorf("enumerate windows: %w", err)
	}
	windows := make([]*window, len(whandles))
	g, gctx = errgroup.WithContext(ctx)
	for i, h := range whandles {
		a := s.appByID(h.App())
		if a == nil || !a.handle.Valid() {
			s.log.Warn("window owner not available", zap.String("window", string(h.ID())), zap.String("application", string(h.App())))
			continue
		}
		g.Go(func() error {
			w, err := s.buildWindow(gctx, h, a)
			if err != nil {
				s.log.Warn("window construction failed", zap.String("window", string(h.ID())), zap.Error(err))
				return nil
			}
			windows[i] = w
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return s.call(func() {
		for _, w := range windows {
			if w != nil {
				s.insertWindow(w)
			}
		}
		s.log.Debug("initial state admitted", zap.Int("applications", len(s.apps)), zap.Int("windows", len(s.windows)))
	})
}

// run is the owner loop. Backend notifications are drained before operation
// completions so a write's own notification is seen before its read-back.
func (s *State) run(start <-chan struct{}) {
	defer close(s.done)

	var notes <-chan platform.Notification
	for {
		if notes != nil {
			select {
			case n, ok := <-notes:
				if !ok {
					s.log.Info("backend notification channel closed")
					return
				}
				s.handle(n)
				continue
			default:
			}
		}

		select {
		case <-s.ctx.Done():
			return
		case <-start:
			start = nil
			notes = s.backend.Notifications()
		case n, ok := <-notes:
			if !ok {
				s.log.Info("backend notification channel closed")
				return
			}
			s.handle(n)
		case op := <-s.ops:
			op()
		}
	}
}

// post queues fn to run on the loop. It is dropped once the loop has exited.
func (s *State) post(fn func()) {
	select {
	case s.ops <- fn:
	case <-s.done:
	}
}

// call runs fn on the loop and waits for it. It must not be called from the loop.
func (s *State) call(fn func()) error {
	finished := make(chan struct{})
	s.post(func() {
		fn()
		close(finished)
	})
	select {
	case <-finished:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

func (s *State) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(s.ctx, s.opTimeout)
}

func (s *State) protocolError(kind string, fields ...zap.Field) {
	s.metrics.ProtocolError(kind)
	s.log.Warn("backend protocol error", append([]zap.Field{zap.String("kind", kind)}, fields...)...)
}

func (s *State) handle(n platform.Notification) {
	switch n := n.(type) {
	case platform.WindowPropertyChanged:
		w := s.windowByID(n.Window)
		if w == nil {
			if p, ok := s.pendingWindows[n.Window]; ok {
				s.log.Debug("property change for window under construction",
					zap.String("window", string(n.Window)), zap.String("property", string(n.Property)))
				p.change(n.Property)
				return
			}
			s.protocolError("unknown window", zap.String("window", string(n.Window)), zap.String("notification", "window property"))
			return
		}
		c := w.cell(n.Property)
		if c == nil {
			s.protocolError("unknown property", zap.String("window", string(n.Window)), zap.String("property", string(n.Property)))
			return
		}
		c.observe(n.Value, n.External, n.RequestID)

	case platform.ApplicationPropertyChanged:
		a := s.appByID(n.App)
		if a == nil {
			if p, ok := s.pendingApps[n.App]; ok {
				s.log.Debug("property change for application under construction",
					zap.String("application", string(n.App)), zap.String("property", string(n.Property)))
				p.change(n.Property)
				return
			}
			s.protocolError("unknown application", zap.String("application", string(n.App)))
			return
		}
		c := a.cell(n.Property)
		if c == nil {
			s.protocolError("unknown property", zap.String("application", string(n.App)), zap.String("property", string(n.Property)))
			return
		}
		c.observe(n.Value, n.External, n.RequestID)

	case platform.FrontmostApplicationChanged:
		s.frontmost.observe(n.App, n.External, n.RequestID)

	case platform.WindowCreated:
		s.admitWindow(n.Window, n.App)
	case platform.WindowDestroyed:
		s.retireWindow(n.Window)
	case platform.ApplicationLaunched:
		s.admitApp(n.App)
	case platform.ApplicationTerminated:
		s.retireApp(n.App)

	default:
		s.protocolError("notification type", zap.String("type", fmt.Sprintf("%T", n)))
	}
}

func (s *State) appByID(id platform.AppID) *application {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apps[id]
}

func (s *State) windowByID(id platform.WindowID) *window {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.windows[id]
}

// lookupWindow returns the handle for id, or the zero Window if id is empty
// or not known.
func (s *State) lookupWindow(id platform.WindowID) Window {
	if id == "" {
		return Window{}
	}
	return Window{w: s.windowByID(id)}
}

func (s *State) lookupApp(id platform.AppID) Application {
	if id == "" {
		return Application{}
	}
	return Application{a: s.appByID(id)}
}

// Window returns the known window with the given token.
func (s *State) Window(id platform.WindowID) (Window, bool) {
	w := s.lookupWindow(id)
	return w, !w.IsZero()
}

// Application returns the known application with the given token.
func (s *State) Application(id platform.AppID) (Application, bool) {
	a := s.lookupApp(id)
	return a, !a.IsZero()
}

// RunningApplications returns the applications the State has observed,
// sorted by ID.
func (s *State) RunningApplications() []Application {
	s.mu.RLock()
	out := make([]Application, 0, len(s.apps))
	for _, a := range s.apps {
		out = append(out, Application{a: a})
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(x, y Application) int { return cmp.Compare(x.ID(), y.ID()) })
	return out
}

// KnownWindows returns the windows the State has observed, sorted by ID.
func (s *State) KnownWindows() []Window {
	s.mu.RLock()
	out := make([]Window, 0, len(s.windows))
	for _, w := range s.windows {
		out = append(out, Window{w: w})
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(x, y Window) int { return cmp.Compare(x.ID(), y.ID()) })
	return out
}

func (s *State) windowsOf(app platform.AppID) []Window {
	s.mu.RLock()
	ids := s.appWindows[app]
	out := make([]Window, 0, len(ids))
	for id := range ids {
		out = append(out, Window{w: s.windows[id]})
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(x, y Window) int { return cmp.Compare(x.ID(), y.ID()) })
	return out
}

// FrontmostApplication is the application receiving keyboard input; the zero
// Application when none is known.
func (s *State) FrontmostApplication() WritableProperty[Application] {
	return appRef{c: s.frontmost, s: s}
}

// Snapshot returns the mirrored values of every known application and
// window. It never waits on the backend.
func (s *State) Snapshot() model.Snapshot {
	snap := model.Snapshot{
		Apps:    []model.App{},
		Windows: []model.Window{},
	}
	for _, a := range s.RunningApplications() {
		snap.Apps = append(snap.Apps, a.Snapshot())
	}
	for _, w := range s.KnownWindows() {
		snap.Windows = append(snap.Windows, w.Snapshot())
	}
	snap.Frontmost = string(s.FrontmostApplication().Get().ID())
	return snap
}
