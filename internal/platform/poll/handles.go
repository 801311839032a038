package poll

import (
	"context"
	"fmt"

	"github.com/mj1618/deskmirror/internal/model"
	"github.com/mj1618/deskmirror/internal/platform"
)

type accessor[T any] struct {
	read  func(ctx context.Context) (T, error)
	write func(ctx context.Context, v T) error
}

func (a accessor[T]) Read(ctx context.Context) (T, error) { return a.read(ctx) }

func (a accessor[T]) Write(ctx context.Context, v T) error {
	if a.write == nil {
		return fmt.Errorf("property is read-only")
	}
	return a.write(ctx, v)
}

// Reads go to a fresh snapshot so a read-back after a write sees the value
// the source applied, not the last polled one.

func (b *Backend) freshWindow(ctx context.Context, id platform.WindowID) (model.Window, error) {
	snap, err := b.src.Snapshot(ctx)
	if err != nil {
		return model.Window{}, err
	}
	for _, w := range snap.Windows {
		if w.ID == string(id) {
			return w, nil
		}
	}
	return model.Window{}, fmt.Errorf("window %s: %w", id, platform.ErrInvalidated)
}

func (b *Backend) freshApp(ctx context.Context, id platform.AppID) (model.App, error) {
	snap, err := b.src.Snapshot(ctx)
	if err != nil {
		return model.App{}, err
	}
	for _, a := range snap.Apps {
		if a.ID == string(id) {
			return a, nil
		}
	}
	return model.App{}, fmt.Errorf("application %s: %w", id, platform.ErrInvalidated)
}

type windowHandle struct {
	b   *Backend
	id  platform.WindowID
	app platform.AppID
}

func (b *Backend) newWindowHandle(w model.Window) windowHandle {
	return windowHandle{b: b, id: platform.WindowID(w.ID), app: platform.AppID(w.App)}
}

func (h windowHandle) ID() platform.WindowID { return h.id }
func (h windowHandle) App() platform.AppID   { return h.app }

func (h windowHandle) Equal(o platform.WindowHandle) bool {
	return o != nil && o.ID() == h.id
}

// Valid reports presence in the last polled snapshot.
func (h windowHandle) Valid() bool {
	h.b.mu.RLock()
	defer h.b.mu.RUnlock()
	_, ok := h.b.windows[string(h.id)]
	return ok
}

func windowProp[T any](h windowHandle, p platform.WindowProperty, get func(model.Window) T) platform.Accessor[T] {
	return accessor[T]{
		read: func(ctx context.Context) (T, error) {
			w, err := h.b.freshWindow(ctx, h.id)
			if err != nil {
				var zero T
				return zero, err
			}
			return get(w), nil
		},
		write: func(ctx context.Context, v T) error {
			return h.b.src.SetWindowProperty(ctx, h.id, p, v)
		},
	}
}

func (h windowHandle) Position() platform.Accessor[model.Point] {
	return windowProp(h, platform.WindowPosition, func(w model.Window) model.Point { return w.Position })
}

func (h windowHandle) Size() platform.Accessor[model.Size] {
	return windowProp(h, platform.WindowSize, func(w model.Window) model.Size { return w.Size })
}

func (h windowHandle) Title() platform.Accessor[string] {
	return windowProp(h, platform.WindowTitle, func(w model.Window) string { return w.Title })
}

func (h windowHandle) Minimized() platform.Accessor[bool] {
	return windowProp(h, platform.WindowMinimized, func(w model.Window) bool { return w.Minimized })
}

func (h windowHandle) Fullscreen() platform.Accessor[bool] {
	return windowProp(h, platform.WindowFullscreen, func(w model.Window) bool { return w.Fullscreen })
}

type appHandle struct {
	b        *Backend
	id       platform.AppID
	pid      int
	bundleID string
}

func (b *Backend) newAppHandle(a model.App) appHandle {
	return appHandle{b: b, id: platform.AppID(a.ID), pid: a.PID, bundleID: a.BundleID}
}

func (h appHandle) ID() platform.AppID { return h.id }
func (h appHandle) PID() int           { return h.pid }
func (h appHandle) BundleID() string   { return h.bundleID }

func (h appHandle) Equal(o platform.AppHandle) bool {
	return o != nil && o.ID() == h.id
}

func (h appHandle) Valid() bool {
	h.b.mu.RLock()
	defer h.b.mu.RUnlock()
	_, ok := h.b.apps[string(h.id)]
	return ok
}

func appProp[T any](h appHandle, p platform.AppProperty, get func(model.App) T, writable bool) accessor[T] {
	acc := accessor[T]{
		read: func(ctx context.Context) (T, error) {
			a, err := h.b.freshApp(ctx, h.id)
			if err != nil {
				var zero T
				return zero, err
			}
			return get(a), nil
		},
	}
	if writable {
		acc.write = func(ctx context.Context, v T) error {
			return h.b.src.SetAppProperty(ctx, h.id, p, v)
		}
	}
	return acc
}

func (h appHandle) MainWindow() platform.Accessor[platform.WindowID] {
	return appProp(h, platform.AppMainWindow, func(a model.App) platform.WindowID { return platform.WindowID(a.MainWindow) }, true)
}

func (h appHandle) FocusedWindow() platform.Reader[platform.WindowID] {
	return appProp(h, platform.AppFocusedWindow, func(a model.App) platform.WindowID { return platform.WindowID(a.FocusedWindow) }, false)
}

func (h appHandle) Frontmost() platform.Accessor[bool] {
	return appProp(h, platform.AppFrontmost, func(a model.App) bool { return a.Frontmost }, true)
}

func (h appHandle) Hidden() platform.Accessor[bool] {
	return appProp(h, platform.AppHidden, func(a model.App) bool { return a.Hidden }, true)
}
