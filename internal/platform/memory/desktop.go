// Package memory implements a simulated desktop that satisfies the platform
// backend contract without touching the OS. It is deterministic, so it also
// serves as the test double for the desktop mirror.
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/mj1618/deskmirror/internal/model"
	"github.com/mj1618/deskmirror/internal/platform"
)

// DefaultScreen is used when a fixture does not declare a screen.
var DefaultScreen = model.Rect{Width: 1920, Height: 1080}

// ErrNotFound is returned for unknown window or application tokens.
var ErrNotFound = errors.New("not found")

type app struct {
	id        platform.AppID
	pid       int
	bundleID  string
	main      platform.WindowID
	focused   platform.WindowID
	hidden    bool
	windowIDs []platform.WindowID
}

type win struct {
	id         platform.WindowID
	app        platform.AppID
	title      string
	pos        model.Point
	size       model.Size
	minimized  bool
	fullscreen bool
}

// Write is one backend write the Desktop applied, in order.
type Write struct {
	Entity    string
	Property  string
	Value     any
	RequestID string
}

// Option configures a Desktop.
type Option func(*Desktop)

// Quiet disables the notification stream. Use it when the Desktop is
// consumed through snapshots only.
func Quiet() Option {
	return func(d *Desktop) { d.quiet = true }
}

// Desktop is a simulated window/process manager.
//
// Mutations happen under mu. Notifications are sent in mutation order under
// emitMu, after mu is released, so readers are never blocked by a full
// notification buffer.
type Desktop struct {
	mu        sync.Mutex
	screen    model.Rect
	apps      map[platform.AppID]*app
	appOrder  []platform.AppID
	windows   map[platform.WindowID]*win
	frontmost platform.AppID
	writes    []Write
	failWrite error
	failRead  error

	emitMu sync.Mutex
	notes  chan platform.Notification
	closed bool
	quiet  bool

	gateMu sync.Mutex
	gate   chan struct{}
}

// New returns an empty Desktop with the given screen.
func New(screen model.Rect, opts ...Option) *Desktop {
	if screen.Empty() {
		screen = DefaultScreen
	}
	d := &Desktop{
		screen:  screen,
		apps:    make(map[platform.AppID]*app),
		windows: make(map[platform.WindowID]*win),
		notes:   make(chan platform.Notification, 1024),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Screen returns the screen rectangle windows are clamped to.
func (d *Desktop) Screen() model.Rect {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.screen
}

// Notifications implements platform.Backend.
func (d *Desktop) Notifications() <-chan platform.Notification { return d.notes }

// Close ends the notification stream.
func (d *Desktop) Close() error {
	d.emitMu.Lock()
	defer d.emitMu.Unlock()
	if !d.closed {
		d.closed = true
		close(d.notes)
	}
	return nil
}

// mutate runs fn under mu and sends the notifications it returns.
func (d *Desktop) mutate(fn func() ([]platform.Notification, error)) error {
	d.mu.Lock()
	notes, err := fn()
	d.emitMu.Lock()
	d.mu.Unlock()
	defer d.emitMu.Unlock()

	if err != nil {
		return err
	}
	if d.closed || d.quiet {
		return nil
	}
	for _, n := range notes {
		d.notes <- n
	}
	return nil
}

// HoldWrites blocks backend writes until ReleaseWrites is called.
func (d *Desktop) HoldWrites() {
	d.gateMu.Lock()
	defer d.gateMu.Unlock()
	if d.gate == nil {
		d.gate = make(chan struct{})
	}
}

// ReleaseWrites lets held writes proceed.
func (d *Desktop) ReleaseWrites() {
	d.gateMu.Lock()
	defer d.gateMu.Unlock()
	if d.gate != nil {
		close(d.gate)
		d.gate = nil
	}
}

func (d *Desktop) waitWrites(ctx context.Context) error {
	d.gateMu.Lock()
	gate := d.gate
	d.gateMu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FailWrites makes every backend write fail with err. A nil err clears it.
func (d *Desktop) FailWrites(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failWrite = err
}

// FailReads makes every backend read fail with err. A nil err clears it.
func (d *Desktop) FailReads(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failRead = err
}

// Writes returns the backend writes applied so far.
func (d *Desktop) Writes() []Write {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.writes)
}

// RunningApplications implements platform.Backend.
func (d *Desktop) RunningApplications(ctx context.Context) ([]platform.AppHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]platform.AppHandle, 0, len(d.appOrder))
	for _, id := range d.appOrder {
		out = append(out, appHandle{d: d, id: id, pid: d.apps[id].pid, bundleID: d.apps[id].bundleID})
	}
	return out, nil
}

// KnownWindows implements platform.Backend.
func (d *Desktop) KnownWindows(ctx context.Context) ([]platform.WindowHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []platform.WindowHandle
	for _, aid := range d.appOrder {
		for _, wid := range d.apps[aid].windowIDs {
			out = append(out, windowHandle{d: d, id: wid, app: aid})
		}
	}
	return out, nil
}

// FrontmostApplication implements platform.Backend.
func (d *Desktop) FrontmostApplication() platform.Accessor[platform.AppID] {
	return accessor[platform.AppID]{
		d:      d,
		entity: "",
		name:   "frontmost_application",
		get:    func() (platform.AppID, error) { return d.frontmost, nil },
		set: func(id platform.AppID, rid string) ([]platform.Notification, error) {
			if id != "" && d.apps[id] == nil {
				return nil, fmt.Errorf("activate %s: %w", id, ErrNotFound)
			}
			return d.activateLocked(id, false, rid, true), nil
		},
	}
}

// Snapshot returns the complete current state.
func (d *Desktop) Snapshot(ctx context.Context) (model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return model.Snapshot{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failRead != nil {
		return model.Snapshot{}, d.failRead
	}

	snap := model.Snapshot{Frontmost: string(d.frontmost)}
	for _, aid := range d.appOrder {
		a := d.apps[aid]
		snap.Apps = append(snap.Apps, model.App{
			ID:            string(a.id),
			PID:           a.pid,
			BundleID:      a.bundleID,
			MainWindow:    string(a.main),
			FocusedWindow: string(a.focused),
			Frontmost:     d.frontmost == a.id,
			Hidden:        a.hidden,
		})
		for _, wid := range a.windowIDs {
			w := d.windows[wid]
			snap.Windows = append(snap.Windows, model.Window{
				ID:         string(w.id),
				App:        string(a.id),
				PID:        a.pid,
				Title:      w.title,
				Position:   w.pos,
				Size:       w.size,
				Minimized:  w.minimized,
				Fullscreen: w.fullscreen,
				Focused:    d.frontmost == a.id && a.focused == w.id,
			})
		}
	}
	return snap, nil
}

// activateLocked makes id frontmost. rid correlates the change with a write
// of the frontmost application (onState) or of an application's frontmost
// flag (!onState).
func (d *Desktop) activateLocked(id platform.AppID, external bool, rid string, onState bool) []platform.Notification {
	prev := d.frontmost
	if prev == id {
		return nil
	}
	d.frontmost = id

	stateRID, appRID := "", rid
	if onState {
		stateRID, appRID = rid, ""
	}
	var notes []platform.Notification
	if prev != "" {
		notes = append(notes, platform.ApplicationPropertyChanged{
			App: prev, Property: platform.AppFrontmost, Value: false, External: external,
		})
	}
	if id != "" {
		notes = append(notes, platform.ApplicationPropertyChanged{
			App: id, Property: platform.AppFrontmost, Value: true, External: external, RequestID: appRID,
		})
	}
	return append(notes, platform.FrontmostApplicationChanged{App: id, External: external, RequestID: stateRID})
}

func (d *Desktop) lookupWindow(id platform.WindowID) (*win, error) {
	w := d.windows[id]
	if w == nil {
		return nil, fmt.Errorf("window %s: %w", id, ErrNotFound)
	}
	return w, nil
}

func (d *Desktop) lookupApp(id platform.AppID) (*app, error) {
	a := d.apps[id]
	if a == nil {
		return nil, fmt.Errorf("application %s: %w", id, ErrNotFound)
	}
	return a, nil
}

// Inject sends raw notifications without changing any state, the way a
// redundant or misbehaving OS integration would.
func (d *Desktop) Inject(notes ...platform.Notification) {
	_ = d.mutate(func() ([]platform.Notification, error) { return notes, nil })
}
