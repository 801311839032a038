package memory

import (
	"fmt"
	"slices"

	"github.com/mj1618/deskmirror/internal/model"
	"github.com/mj1618/deskmirror/internal/platform"
)

// setWindowLocked applies v to one window property the way a window
// manager would: positions are clamped to the screen, sizes to at least one
// point. Unchanged values produce no notification.
func (d *Desktop) setWindowLocked(id platform.WindowID, p platform.WindowProperty, v any, external bool, rid string) ([]platform.Notification, error) {
	w, err := d.lookupWindow(id)
	if err != nil {
		return nil, err
	}
	var applied any
	switch p {
	case platform.WindowPosition:
		pt, ok := v.(model.Point)
		if !ok {
			return nil, valueError(p, v)
		}
		pt = d.screen.Clamp(pt, w.size)
		if pt == w.pos {
			return nil, nil
		}
		w.pos, applied = pt, pt
	case platform.WindowSize:
		sz, ok := v.(model.Size)
		if !ok {
			return nil, valueError(p, v)
		}
		sz = model.Size{Width: max(sz.Width, 1), Height: max(sz.Height, 1)}
		if sz == w.size {
			return nil, nil
		}
		w.size, applied = sz, sz
	case platform.WindowTitle:
		title, ok := v.(string)
		if !ok {
			return nil, valueError(p, v)
		}
		if title == w.title {
			return nil, nil
		}
		w.title, applied = title, title
	case platform.WindowMinimized, platform.WindowFullscreen:
		b, ok := v.(bool)
		if !ok {
			return nil, valueError(p, v)
		}
		field := &w.minimized
		if p == platform.WindowFullscreen {
			field = &w.fullscreen
		}
		if *field == b {
			return nil, nil
		}
		*field, applied = b, b
	default:
		return nil, fmt.Errorf("unknown window property %q", p)
	}
	return []platform.Notification{platform.WindowPropertyChanged{
		Window: id, Property: p, Value: applied, External: external, RequestID: rid,
	}}, nil
}

func (d *Desktop) setAppLocked(id platform.AppID, p platform.AppProperty, v any, external bool, rid string) ([]platform.Notification, error) {
	a, err := d.lookupApp(id)
	if err != nil {
		return nil, err
	}
	switch p {
	case platform.AppMainWindow:
		wid, ok := v.(platform.WindowID)
		if !ok {
			return nil, valueError(p, v)
		}
		if wid != "" && !slices.Contains(a.windowIDs, wid) {
			return nil, fmt.Errorf("window %s does not belong to %s: %w", wid, id, ErrNotFound)
		}
		return d.focusLocked(a, wid, external, rid), nil
	case platform.AppFrontmost:
		b, ok := v.(bool)
		if !ok {
			return nil, valueError(p, v)
		}
		switch {
		case b:
			return d.activateLocked(id, external, rid, false), nil
		case d.frontmost == id:
			return d.activateLocked("", external, rid, false), nil
		}
		return nil, nil
	case platform.AppHidden:
		b, ok := v.(bool)
		if !ok {
			return nil, valueError(p, v)
		}
		if a.hidden == b {
			return nil, nil
		}
		a.hidden = b
		return []platform.Notification{platform.ApplicationPropertyChanged{
			App: id, Property: p, Value: b, External: external, RequestID: rid,
		}}, nil
	}
	return nil, fmt.Errorf("application property %q is not writable", p)
}

// focusLocked makes wid the main and focused window of a.
func (d *Desktop) focusLocked(a *app, wid platform.WindowID, external bool, rid string) []platform.Notification {
	var notes []platform.Notification
	if a.main != wid {
		a.main = wid
		notes = append(notes, platform.ApplicationPropertyChanged{
			App: a.id, Property: platform.AppMainWindow, Value: wid, External: external, RequestID: rid,
		})
	}
	if a.focused != wid {
		a.focused = wid
		notes = append(notes, platform.ApplicationPropertyChanged{
			App: a.id, Property: platform.AppFocusedWindow, Value: wid, External: external,
		})
	}
	return notes
}

func valueError(p any, v any) error {
	return fmt.Errorf("property %v: unexpected value type %T", p, v)
}

// External changes. Each one is reported with External set, as if a user
// or another process had made it.

// Move moves a window, clamped to the screen.
func (d *Desktop) Move(id platform.WindowID, p model.Point) error {
	return d.externalWindow(id, platform.WindowPosition, p)
}

func (d *Desktop) Resize(id platform.WindowID, s model.Size) error {
	return d.externalWindow(id, platform.WindowSize, s)
}

func (d *Desktop) Retitle(id platform.WindowID, title string) error {
	return d.externalWindow(id, platform.WindowTitle, title)
}

func (d *Desktop) Minimize(id platform.WindowID, minimized bool) error {
	return d.externalWindow(id, platform.WindowMinimized, minimized)
}

func (d *Desktop) SetFullscreen(id platform.WindowID, fullscreen bool) error {
	return d.externalWindow(id, platform.WindowFullscreen, fullscreen)
}

// Hide hides or unhides an application.
func (d *Desktop) Hide(id platform.AppID, hidden bool) error {
	return d.mutate(func() ([]platform.Notification, error) {
		return d.setAppLocked(id, platform.AppHidden, hidden, true, "")
	})
}

// SetMainWindow makes wid the main and focused window of its application.
func (d *Desktop) SetMainWindow(id platform.AppID, wid platform.WindowID) error {
	return d.mutate(func() ([]platform.Notification, error) {
		return d.setAppLocked(id, platform.AppMainWindow, wid, true, "")
	})
}

// Activate makes id the frontmost application. The empty id deactivates all.
func (d *Desktop) Activate(id platform.AppID) error {
	return d.mutate(func() ([]platform.Notification, error) {
		if id != "" {
			if _, err := d.lookupApp(id); err != nil {
				return nil, err
			}
		}
		return d.activateLocked(id, true, "", true), nil
	})
}

func (d *Desktop) externalWindow(id platform.WindowID, p platform.WindowProperty, v any) error {
	return d.mutate(func() ([]platform.Notification, error) {
		return d.setWindowLocked(id, p, v, true, "")
	})
}

// OpenWindow creates a window for an application and makes it the main window.
func (d *Desktop) OpenWindow(appID platform.AppID, spec WindowSpec) error {
	return d.mutate(func() ([]platform.Notification, error) {
		a, err := d.lookupApp(appID)
		if err != nil {
			return nil, err
		}
		w, err := d.addWindowLocked(a, spec)
		if err != nil {
			return nil, err
		}
		notes := []platform.Notification{platform.WindowCreated{Window: windowHandle{d: d, id: w.id, app: a.id}, App: a.id}}
		return append(notes, d.focusLocked(a, w.id, true, "")...), nil
	})
}

// CloseWindow destroys a window. If it was the main window, the next
// remaining window of the application takes over.
func (d *Desktop) CloseWindow(id platform.WindowID) error {
	return d.mutate(func() ([]platform.Notification, error) {
		w, err := d.lookupWindow(id)
		if err != nil {
			return nil, err
		}
		a := d.apps[w.app]
		a.windowIDs = slices.DeleteFunc(a.windowIDs, func(x platform.WindowID) bool { return x == id })
		delete(d.windows, id)

		var notes []platform.Notification
		if a.main == id || a.focused == id {
			var next platform.WindowID
			if len(a.windowIDs) > 0 {
				next = a.windowIDs[0]
			}
			notes = d.focusLocked(a, next, true, "")
		}
		return append(notes, platform.WindowDestroyed{Window: id}), nil
	})
}

// Launch starts an application with its windows.
func (d *Desktop) Launch(spec AppSpec) error {
	return d.mutate(func() ([]platform.Notification, error) {
		a, err := d.seedLocked(spec)
		if err != nil {
			return nil, err
		}
		notes := []platform.Notification{platform.ApplicationLaunched{
			App: appHandle{d: d, id: a.id, pid: a.pid, bundleID: a.bundleID},
		}}
		for _, wid := range a.windowIDs {
			notes = append(notes, platform.WindowCreated{Window: windowHandle{d: d, id: wid, app: a.id}, App: a.id})
		}
		return notes, nil
	})
}

// Terminate ends an application. Its windows disappear with it; only the
// termination itself is reported.
func (d *Desktop) Terminate(id platform.AppID) error {
	return d.mutate(func() ([]platform.Notification, error) {
		a, err := d.lookupApp(id)
		if err != nil {
			return nil, err
		}
		var notes []platform.Notification
		if d.frontmost == id {
			notes = d.activateLocked("", true, "", true)
		}
		for _, wid := range a.windowIDs {
			delete(d.windows, wid)
		}
		delete(d.apps, id)
		d.appOrder = slices.DeleteFunc(d.appOrder, func(x platform.AppID) bool { return x == id })
		return append(notes, platform.ApplicationTerminated{App: id}), nil
	})
}

// seedLocked adds an application and its windows without notifications.
// The AppSpec is validated before anything is added.
func (d *Desktop) seedLocked(spec AppSpec) (*app, error) {
	id := platform.AppID(spec.ID)
	if id == "" {
		return nil, fmt.Errorf("application without id")
	}
	if d.apps[id] != nil {
		return nil, fmt.Errorf("application %s already running", id)
	}
	seen := make(map[platform.WindowID]bool, len(spec.Windows))
	for _, ws := range spec.Windows {
		wid := platform.WindowID(ws.ID)
		if wid == "" {
			return nil, fmt.Errorf("window of %s without id", id)
		}
		if seen[wid] || d.windows[wid] != nil {
			return nil, fmt.Errorf("window %s already exists", wid)
		}
		seen[wid] = true
	}
	main := platform.WindowID(spec.MainWindow)
	if main == "" && len(spec.Windows) > 0 {
		main = platform.WindowID(spec.Windows[0].ID)
	}
	if main != "" && !seen[main] {
		return nil, fmt.Errorf("main window %s does not belong to %s", main, id)
	}

	a := &app{id: id, pid: spec.PID, bundleID: spec.BundleID, hidden: spec.Hidden, main: main, focused: main}
	d.apps[id] = a
	d.appOrder = append(d.appOrder, id)
	for _, ws := range spec.Windows {
		if _, err := d.addWindowLocked(a, ws); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (d *Desktop) addWindowLocked(a *app, spec WindowSpec) (*win, error) {
	id := platform.WindowID(spec.ID)
	if id == "" {
		return nil, fmt.Errorf("window of %s without id", a.id)
	}
	if d.windows[id] != nil {
		return nil, fmt.Errorf("window %s already exists", id)
	}
	size := model.Size{Width: max(spec.Size.Width, 1), Height: max(spec.Size.Height, 1)}
	w := &win{
		id:         id,
		app:        a.id,
		title:      spec.Title,
		pos:        d.screen.Clamp(spec.Position, size),
		size:       size,
		minimized:  spec.Minimized,
		fullscreen: spec.Fullscreen,
	}
	d.windows[id] = w
	a.windowIDs = append(a.windowIDs, id)
	return w, nil
}
