package desktop

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/mj1618/deskmirror/internal/model"
	"github.com/mj1618/deskmirror/internal/platform"
)

// window is the State-owned record behind Window handles. It keeps its
// application alive; applications never point back at their windows.
type window struct {
	id      platform.WindowID
	handle  platform.WindowHandle
	app     *application
	invalid atomic.Bool

	position   *cell[model.Point]
	size       *cell[model.Size]
	title      *cell[string]
	minimized  *cell[bool]
	fullscreen *cell[bool]
}

// Window is a handle to a window known to a State. Handles are cheap to copy
// and compare equal (==) exactly when they refer to the same backend window.
// The zero Window refers to no window.
type Window struct {
	w *window
}

// ID returns the backend identity token, or "" for the zero Window.
func (w Window) ID() platform.WindowID {
	if w.w == nil {
		return ""
	}
	return w.w.id
}

// IsZero reports whether w refers to no window.
func (w Window) IsZero() bool { return w.w == nil }

// Equal reports whether w and o refer to the same backend window.
func (w Window) Equal(o Window) bool { return w.ID() == o.ID() }

func (w Window) String() string {
	if w.w == nil {
		return "Window(none)"
	}
	return fmt.Sprintf("Window(%s)", w.w.id)
}

// Application returns the application that owns the window, or the zero
// Application for the zero Window.
func (w Window) Application() Application {
	if w.w == nil {
		return Application{}
	}
	return Application{a: w.w.app}
}

// The properties of the zero Window read as zero values and ignore writes.

func (w Window) Position() WritableProperty[model.Point] {
	if w.w == nil {
		return none[model.Point]{}
	}
	return w.w.position
}

func (w Window) Size() WritableProperty[model.Size] {
	if w.w == nil {
		return none[model.Size]{}
	}
	return w.w.size
}

func (w Window) Title() WritableProperty[string] {
	if w.w == nil {
		return none[string]{}
	}
	return w.w.title
}

func (w Window) IsMinimized() WritableProperty[bool] {
	if w.w == nil {
		return none[bool]{}
	}
	return w.w.minimized
}

func (w Window) IsFullscreen() WritableProperty[bool] {
	if w.w == nil {
		return none[bool]{}
	}
	return w.w.fullscreen
}

// IsValid reports whether the window still exists. Once it returns false it
// always returns false.
func (w Window) IsValid() bool {
	if w.w == nil || w.w.invalid.Load() {
		return false
	}
	if !w.w.handle.Valid() {
		w.w.invalid.Store(true)
		return false
	}
	return true
}

// Snapshot returns the window's current mirrored values.
func (w Window) Snapshot() model.Window {
	if w.w == nil {
		return model.Window{}
	}
	app := w.w.app
	return model.Window{
		ID:         string(w.w.id),
		App:        string(app.id),
		PID:        app.pid,
		Title:      w.w.title.Get(),
		Position:   w.w.position.Get(),
		Size:       w.w.size.Get(),
		Minimized:  w.w.minimized.Get(),
		Fullscreen: w.w.fullscreen.Get(),
		Focused:    app.frontmost.Get() && app.mainWindow.Get() == w.w.id,
	}
}

func (w *window) cell(p platform.WindowProperty) observer {
	switch p {
	case platform.WindowPosition:
		return w.position
	case platform.WindowSize:
		return w.size
	case platform.WindowTitle:
		return w.title
	case platform.WindowMinimized:
		return w.minimized
	case platform.WindowFullscreen:
		return w.fullscreen
	}
	return nil
}

func (w *window) invalidate() {
	w.invalid.Store(true)
	for _, c := range []observer{w.position, w.size, w.title, w.minimized, w.fullscreen} {
		c.invalidate()
	}
}

// buildWindow reads the initial property values of h concurrently and
// returns the window record. Any failed read fails construction.
func (s *State) buildWindow(ctx context.Context, h platform.WindowHandle, app *application) (*window, error) {
	var (
		pos        model.Point
		size       model.Size
		title      string
		minimized  bool
		fullscreen bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { pos, err = h.Position().Read(gctx); return })
	g.Go(func() (err error) { size, err = h.Size().Read(gctx); return })
	g.Go(func() (err error) { title, err = h.Title().Read(gctx); return })
	g.Go(func() (err error) { minimized, err = h.Minimized().Read(gctx); return })
	g.Go(func() (err error) { fullscreen, err = h.Fullscreen().Read(gctx); return })
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("read window %s: %w", h.ID(), err)
	}

	w := &window{id: h.ID(), handle: h, app: app}
	entity := string(w.id)
	handle := Window{w: w}

	w.position = newCell(s, "window.position", entity, pos, h.Position(), h.Position())
	w.position.notify = func(ext bool, o, n model.Point) {
		publish(s, WindowPositionChangedEvent{External: ext, Window: handle, OldValue: o, NewValue: n})
	}
	w.size = newCell(s, "window.size", entity, size, h.Size(), h.Size())
	w.size.notify = func(ext bool, o, n model.Size) {
		publish(s, WindowSizeChangedEvent{External: ext, Window: handle, OldValue: o, NewValue: n})
	}
	w.title = newCell(s, "window.title", entity, title, h.Title(), h.Title())
	w.title.notify = func(ext bool, o, n string) {
		publish(s, WindowTitleChangedEvent{External: ext, Window: handle, OldValue: o, NewValue: n})
	}
	w.minimized = newCell(s, "window.minimized", entity, minimized, h.Minimized(), h.Minimized())
	w.minimized.notify = func(ext bool, o, n bool) {
		publish(s, WindowMinimizedChangedEvent{External: ext, Window: handle, OldValue: o, NewValue: n})
	}
	w.fullscreen = newCell(s, "window.fullscreen", entity, fullscreen, h.Fullscreen(), h.Fullscreen())
	w.fullscreen.notify = func(ext bool, o, n bool) {
		publish(s, WindowFullscreenChangedEvent{External: ext, Window: handle, OldValue: o, NewValue: n})
	}
	return w, nil
}
