// Package poll adapts a snapshot source into the push-style platform
// backend contract. It takes a snapshot every interval, diffs it against
// the previous one, and reports the differences as notifications.
package poll

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mj1618/deskmirror/internal/model"
	"github.com/mj1618/deskmirror/internal/platform"
)

// DefaultInterval is the polling period used when none is configured.
const DefaultInterval = 250 * time.Millisecond

// Source produces complete snapshots of the desktop and applies writes.
type Source interface {
	Snapshot(ctx context.Context) (model.Snapshot, error)
	SetWindowProperty(ctx context.Context, id platform.WindowID, p platform.WindowProperty, v any) error
	SetAppProperty(ctx context.Context, id platform.AppID, p platform.AppProperty, v any) error
	SetFrontmost(ctx context.Context, id platform.AppID) error
}

// Backend implements platform.Backend on top of a Source. Polling cannot
// attribute changes, so every reported change is marked External; writes
// are confirmed by the read-back the mirror performs.
type Backend struct {
	src      Source
	interval time.Duration
	log      *zap.Logger

	notes  chan platform.Notification
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.RWMutex
	last    model.Snapshot
	windows map[string]model.Window
	apps    map[string]model.App
}

// Option configures a Backend.
type Option func(*Backend)

func WithInterval(d time.Duration) Option {
	return func(b *Backend) {
		if d > 0 {
			b.interval = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.log = l
		}
	}
}

// New takes the first snapshot and starts polling. Polling stops when ctx
// is cancelled or Close is called; the notification channel is then closed.
func New(ctx context.Context, src Source, opts ...Option) (*Backend, error) {
	b := &Backend{
		src:      src,
		interval: DefaultInterval,
		log:      zap.NewNop(),
		notes:    make(chan platform.Notification, 256),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	snap, err := src.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("initial snapshot: %w", err)
	}
	b.store(snap)

	ctx, b.cancel = context.WithCancel(ctx)
	go b.run(ctx)
	return b, nil
}

// Close stops polling and waits for the poller to exit.
func (b *Backend) Close() error {
	b.cancel()
	<-b.done
	return nil
}

func (b *Backend) run(ctx context.Context) {
	defer close(b.done)
	defer close(b.notes)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := b.Poll(ctx); err != nil {
			b.log.Warn("poll failed", zap.Error(err))
		}
	}
}

// Poll takes one snapshot and sends the notifications for what changed
// since the previous one. It is called by the poller; tests call it
// directly to step the backend.
func (b *Backend) Poll(ctx context.Context) error {
	snap, err := b.src.Snapshot(ctx)
	if err != nil {
		return err
	}
	b.mu.Lock()
	prev := b.last
	b.store(snap)
	b.mu.Unlock()

	for _, n := range b.changes(prev, snap) {
		select {
		case b.notes <- n:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// store replaces the last snapshot. Callers other than New hold mu.
func (b *Backend) store(snap model.Snapshot) {
	b.last = snap
	b.windows = make(map[string]model.Window, len(snap.Windows))
	for _, w := range snap.Windows {
		b.windows[w.ID] = w
	}
	b.apps = make(map[string]model.App, len(snap.Apps))
	for _, a := range snap.Apps {
		b.apps[a.ID] = a
	}
}

// changes orders notifications so that owners exist before their windows
// and windows disappear before their owners.
func (b *Backend) changes(prev, curr model.Snapshot) []platform.Notification {
	var launched, created, props, destroyed, terminated []platform.Notification

	for _, c := range model.DiffApps(prev.Apps, curr.Apps) {
		id := platform.AppID(c.ID)
		switch c.Type {
		case model.ChangeAdded:
			launched = append(launched, platform.ApplicationLaunched{App: b.newAppHandle(*c.App)})
		case model.ChangeRemoved:
			terminated = append(terminated, platform.ApplicationTerminated{App: id})
		case model.ChangeChanged:
			for _, f := range c.Fields {
				props = append(props, platform.ApplicationPropertyChanged{
					App: id, Property: platform.AppProperty(f), Value: appValue(*c.App, f), External: true,
				})
			}
		}
	}
	for _, c := range model.DiffWindows(prev.Windows, curr.Windows) {
		id := platform.WindowID(c.ID)
		switch c.Type {
		case model.ChangeAdded:
			created = append(created, platform.WindowCreated{Window: b.newWindowHandle(*c.Window), App: platform.AppID(c.App)})
		case model.ChangeRemoved:
			destroyed = append(destroyed, platform.WindowDestroyed{Window: id})
		case model.ChangeChanged:
			for _, f := range c.Fields {
				props = append(props, platform.WindowPropertyChanged{
					Window: id, Property: platform.WindowProperty(f), Value: windowValue(*c.Window, f), External: true,
				})
			}
		}
	}

	out := append(launched, created...)
	out = append(out, props...)
	out = append(out, destroyed...)
	out = append(out, terminated...)
	if prev.Frontmost != curr.Frontmost {
		out = append(out, platform.FrontmostApplicationChanged{App: platform.AppID(curr.Frontmost), External: true})
	}
	return out
}

func windowValue(w model.Window, field string) any {
	switch field {
	case model.FieldPosition:
		return w.Position
	case model.FieldSize:
		return w.Size
	case model.FieldTitle:
		return w.Title
	case model.FieldMinimized:
		return w.Minimized
	case model.FieldFullscreen:
		return w.Fullscreen
	}
	return nil
}

func appValue(a model.App, field string) any {
	switch field {
	case model.FieldMainWindow:
		return platform.WindowID(a.MainWindow)
	case model.FieldFocusedWindow:
		return platform.WindowID(a.FocusedWindow)
	case model.FieldFrontmost:
		return a.Frontmost
	case model.FieldHidden:
		return a.Hidden
	}
	return nil
}

// Notifications implements platform.Backend.
func (b *Backend) Notifications() <-chan platform.Notification { return b.notes }

// RunningApplications implements platform.Backend from the last snapshot.
func (b *Backend) RunningApplications(ctx context.Context) ([]platform.AppHandle, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]platform.AppHandle, 0, len(b.last.Apps))
	for _, a := range b.last.Apps {
		out = append(out, b.newAppHandle(a))
	}
	return out, ctx.Err()
}

// KnownWindows implements platform.Backend from the last snapshot.
func (b *Backend) KnownWindows(ctx context.Context) ([]platform.WindowHandle, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]platform.WindowHandle, 0, len(b.last.Windows))
	for _, w := range b.last.Windows {
		out = append(out, b.newWindowHandle(w))
	}
	return out, ctx.Err()
}

// FrontmostApplication implements platform.Backend.
func (b *Backend) FrontmostApplication() platform.Accessor[platform.AppID] {
	return accessor[platform.AppID]{
		read: func(ctx context.Context) (platform.AppID, error) {
			snap, err := b.src.Snapshot(ctx)
			if err != nil {
				return "", err
			}
			return platform.AppID(snap.Frontmost), nil
		},
		write: func(ctx context.Context, id platform.AppID) error { return b.src.SetFrontmost(ctx, id) },
	}
}
