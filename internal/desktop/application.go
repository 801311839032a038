package desktop

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/mj1618/deskmirror/internal/model"
	"github.com/mj1618/deskmirror/internal/platform"
)

// application is the State-owned record behind Application handles. Its
// windows are found through the State's index, not stored here.
type application struct {
	s        *State
	id       platform.AppID
	handle   platform.AppHandle
	pid      int
	bundleID string
	invalid  atomic.Bool

	mainWindow    *cell[platform.WindowID]
	focusedWindow *cell[platform.WindowID]
	frontmost     *cell[bool]
	hidden        *cell[bool]
}

// Application is a handle to a running application known to a State.
// The zero Application refers to no application.
type Application struct {
	a *application
}

// ID returns the backend identity token, or "" for the zero Application.
func (a Application) ID() platform.AppID {
	if a.a == nil {
		return ""
	}
	return a.a.id
}

func (a Application) IsZero() bool             { return a.a == nil }
func (a Application) Equal(o Application) bool { return a.ID() == o.ID() }

// PID returns the process id, or 0 for the zero Application.
func (a Application) PID() int {
	if a.a == nil {
		return 0
	}
	return a.a.pid
}

func (a Application) BundleID() string {
	if a.a == nil {
		return ""
	}
	return a.a.bundleID
}

func (a Application) String() string {
	if a.a == nil {
		return "Application(none)"
	}
	return fmt.Sprintf("Application(%s)", a.a.id)
}

// MainWindow is the application's main window; the zero Window when it has
// none or the window is not known yet.
func (a Application) MainWindow() WritableProperty[Window] {
	if a.a == nil {
		return none[Window]{}
	}
	return windowRef{c: a.a.mainWindow, s: a.a.s}
}

// FocusedWindow is the window with keyboard focus inside the application.
func (a Application) FocusedWindow() Property[Window] {
	if a.a == nil {
		return none[Window]{}
	}
	return readOnly[Window]{p: windowRef{c: a.a.focusedWindow, s: a.a.s}}
}

func (a Application) IsFrontmost() WritableProperty[bool] {
	if a.a == nil {
		return none[bool]{}
	}
	return a.a.frontmost
}

func (a Application) IsHidden() WritableProperty[bool] {
	if a.a == nil {
		return none[bool]{}
	}
	return a.a.hidden
}

// KnownWindows returns the application's windows the State has observed,
// sorted by ID.
func (a Application) KnownWindows() []Window {
	if a.a == nil {
		return []Window{}
	}
	return a.a.s.windowsOf(a.a.id)
}

// IsValid reports whether the application is still running. Once it returns
// false it always returns false.
func (a Application) IsValid() bool {
	if a.a == nil || a.a.invalid.Load() {
		return false
	}
	if !a.a.handle.Valid() {
		a.a.invalid.Store(true)
		return false
	}
	return true
}

// Snapshot returns the application's current mirrored values.
func (a Application) Snapshot() model.App {
	if a.a == nil {
		return model.App{}
	}
	return model.App{
		ID:            string(a.a.id),
		PID:           a.a.pid,
		BundleID:      a.a.bundleID,
		MainWindow:    string(a.a.mainWindow.Get()),
		FocusedWindow: string(a.a.focusedWindow.Get()),
		Frontmost:     a.a.frontmost.Get(),
		Hidden:        a.a.hidden.Get(),
	}
}

func (a *application) cell(p platform.AppProperty) observer {
	switch p {
	case platform.AppMainWindow:
		return a.mainWindow
	case platform.AppFocusedWindow:
		return a.focusedWindow
	case platform.AppFrontmost:
		return a.frontmost
	case platform.AppHidden:
		return a.hidden
	}
	return nil
}

func (a *application) invalidate() {
	a.invalid.Store(true)
	for _, c := range []observer{a.mainWindow, a.focusedWindow, a.frontmost, a.hidden} {
		c.invalidate()
	}
}

// buildApp reads the initial property values of h concurrently and returns
// the application record.
func (s *State) buildApp(ctx context.Context, h platform.AppHandle) (*application, error) {
	var (
		main, focused     platform.WindowID
		frontmost, hidden bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { main, err = h.MainWindow().Read(gctx); return })
	g.Go(func() (err error) { focused, err = h.FocusedWindow().Read(gctx); return })
	g.Go(func() (err error) { frontmost, err = h.Frontmost().Read(gctx); return })
	g.Go(func() (err error) { hidden, err = h.Hidden().Read(gctx); return })
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("read application %s: %w", h.ID(), err)
	}

	a := &application{s: s, id: h.ID(), handle: h, pid: h.PID(), bundleID: h.BundleID()}
	entity := string(a.id)
	handle := Application{a: a}

	a.mainWindow = newCell(s, "application.main_window", entity, main, h.MainWindow(), h.MainWindow())
	a.mainWindow.notify = func(ext bool, o, n platform.WindowID) {
		old := s.lookupWindow(o)
		s.whenWindowKnown(n, func() {
			publish(s, ApplicationMainWindowChangedEvent{
				External: ext, Application: handle, OldValue: old, NewValue: s.lookupWindow(n),
			})
		})
	}
	a.focusedWindow = newCell[platform.WindowID](s, "application.focused_window", entity, focused, h.FocusedWindow(), nil)
	a.focusedWindow.notify = func(ext bool, o, n platform.WindowID) {
		old := s.lookupWindow(o)
		s.whenWindowKnown(n, func() {
			publish(s, ApplicationFocusedWindowChangedEvent{
				External: ext, Application: handle, OldValue: old, NewValue: s.lookupWindow(n),
			})
		})
	}
	a.frontmost = newCell(s, "application.frontmost", entity, frontmost, h.Frontmost(), h.Frontmost())
	a.frontmost.notify = func(ext bool, o, n bool) {
		publish(s, ApplicationFrontmostChangedEvent{External: ext, Application: handle, OldValue: o, NewValue: n})
	}
	a.hidden = newCell(s, "application.hidden", entity, hidden, h.Hidden(), h.Hidden())
	a.hidden.notify = func(ext bool, o, n bool) {
		publish(s, ApplicationHiddenChangedEvent{External: ext, Application: handle, OldValue: o, NewValue: n})
	}
	return a, nil
}
