package memory

import (
	"context"
	"fmt"

	"github.com/mj1618/deskmirror/internal/model"
	"github.com/mj1618/deskmirror/internal/platform"
)

// accessor adapts a getter and setter over Desktop state to
// platform.Accessor. get and set run with d.mu held.
type accessor[T any] struct {
	d      *Desktop
	entity string
	name   string
	get    func() (T, error)
	set    func(v T, requestID string) ([]platform.Notification, error)
}

func (a accessor[T]) Read(ctx context.Context) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	a.d.mu.Lock()
	defer a.d.mu.Unlock()
	if a.d.failRead != nil {
		return zero, a.d.failRead
	}
	return a.get()
}

func (a accessor[T]) Write(ctx context.Context, v T) error {
	if a.set == nil {
		return fmt.Errorf("%s is read-only", a.name)
	}
	if err := a.d.waitWrites(ctx); err != nil {
		return err
	}
	rid := platform.RequestIDFrom(ctx)
	return a.d.mutate(func() ([]platform.Notification, error) {
		if a.d.failWrite != nil {
			return nil, a.d.failWrite
		}
		notes, err := a.set(v, rid)
		if err != nil {
			return nil, err
		}
		a.d.writes = append(a.d.writes, Write{Entity: a.entity, Property: a.name, Value: v, RequestID: rid})
		return notes, nil
	})
}

type windowHandle struct {
	d   *Desktop
	id  platform.WindowID
	app platform.AppID
}

func (h windowHandle) ID() platform.WindowID { return h.id }
func (h windowHandle) App() platform.AppID   { return h.app }
func (h windowHandle) String() string        { return string(h.id) }

func (h windowHandle) Equal(o platform.WindowHandle) bool {
	return o != nil && o.ID() == h.id
}

func (h windowHandle) Valid() bool {
	h.d.mu.Lock()
	defer h.d.mu.Unlock()
	return h.d.windows[h.id] != nil
}

func (h windowHandle) live() (*win, error) {
	w := h.d.windows[h.id]
	if w == nil {
		return nil, fmt.Errorf("window %s: %w", h.id, platform.ErrInvalidated)
	}
	return w, nil
}

func windowAccessor[T any](h windowHandle, p platform.WindowProperty, get func(*win) T) platform.Accessor[T] {
	return accessor[T]{
		d:      h.d,
		entity: string(h.id),
		name:   string(p),
		get: func() (T, error) {
			w, err := h.live()
			if err != nil {
				var zero T
				return zero, err
			}
			return get(w), nil
		},
		set: func(v T, rid string) ([]platform.Notification, error) {
			if _, err := h.live(); err != nil {
				return nil, err
			}
			return h.d.setWindowLocked(h.id, p, v, false, rid)
		},
	}
}

func (h windowHandle) Position() platform.Accessor[model.Point] {
	return windowAccessor(h, platform.WindowPosition, func(w *win) model.Point { return w.pos })
}

func (h windowHandle) Size() platform.Accessor[model.Size] {
	return windowAccessor(h, platform.WindowSize, func(w *win) model.Size { return w.size })
}

func (h windowHandle) Title() platform.Accessor[string] {
	return windowAccessor(h, platform.WindowTitle, func(w *win) string { return w.title })
}

func (h windowHandle) Minimized() platform.Accessor[bool] {
	return windowAccessor(h, platform.WindowMinimized, func(w *win) bool { return w.minimized })
}

func (h windowHandle) Fullscreen() platform.Accessor[bool] {
	return windowAccessor(h, platform.WindowFullscreen, func(w *win) bool { return w.fullscreen })
}

type appHandle struct {
	d        *Desktop
	id       platform.AppID
	pid      int
	bundleID string
}

func (h appHandle) ID() platform.AppID { return h.id }
func (h appHandle) PID() int           { return h.pid }
func (h appHandle) BundleID() string   { return h.bundleID }
func (h appHandle) String() string     { return string(h.id) }

func (h appHandle) Equal(o platform.AppHandle) bool {
	return o != nil && o.ID() == h.id
}

func (h appHandle) Valid() bool {
	h.d.mu.Lock()
	defer h.d.mu.Unlock()
	return h.d.apps[h.id] != nil
}

func (h appHandle) live() (*app, error) {
	a := h.d.apps[h.id]
	if a == nil {
		return nil, fmt.Errorf("application %s: %w", h.id, platform.ErrInvalidated)
	}
	return a, nil
}

func appAccessor[T any](h appHandle, p platform.AppProperty, get func(*app) T, writable bool) accessor[T] {
	acc := accessor[T]{
		d:      h.d,
		entity: string(h.id),
		name:   string(p),
		get: func() (T, error) {
			a, err := h.live()
			if err != nil {
				var zero T
				return zero, err
			}
			return get(a), nil
		},
	}
	if writable {
		acc.set = func(v T, rid string) ([]platform.Notification, error) {
			if _, err := h.live(); err != nil {
				return nil, err
			}
			return h.d.setAppLocked(h.id, p, v, false, rid)
		}
	}
	return acc
}

func (h appHandle) MainWindow() platform.Accessor[platform.WindowID] {
	return appAccessor(h, platform.AppMainWindow, func(a *app) platform.WindowID { return a.main }, true)
}

func (h appHandle) FocusedWindow() platform.Reader[platform.WindowID] {
	return appAccessor(h, platform.AppFocusedWindow, func(a *app) platform.WindowID { return a.focused }, false)
}

func (h appHandle) Frontmost() platform.Accessor[bool] {
	return appAccessor(h, platform.AppFrontmost, func(a *app) bool { return h.d.frontmost == a.id }, true)
}

func (h appHandle) Hidden() platform.Accessor[bool] {
	return appAccessor(h, platform.AppHidden, func(a *app) bool { return a.hidden }, true)
}
