package output

import (
	"time"

	"github.com/mj1618/deskmirror/internal/desktop"
	"github.com/mj1618/deskmirror/internal/model"
)

// Event record types.
const (
	EventWindowCreated    = "window_created"
	EventWindowDestroyed  = "window_destroyed"
	EventWindowChanged    = "window_changed"
	EventAppLaunched      = "app_launched"
	EventAppTerminated    = "app_terminated"
	EventAppChanged       = "app_changed"
	EventFrontmostChanged = "frontmost_changed"
)

// EventRecord is the flat, encodable form of a desktop event. Window and
// application references are written as their IDs; "" means none.
type EventRecord struct {
	Type     string `yaml:"type"               json:"type"`
	TS       int64  `yaml:"ts"                 json:"ts"`
	External bool   `yaml:"external"           json:"external"`
	Window   string `yaml:"window,omitempty"   json:"window,omitempty"`
	App      string `yaml:"app,omitempty"      json:"app,omitempty"`
	Property string `yaml:"property,omitempty" json:"property,omitempty"`
	Old      any    `yaml:"old,omitempty"      json:"old,omitempty"`
	New      any    `yaml:"new,omitempty"      json:"new,omitempty"`
}

// NewEventRecord flattens e, stamping it with ts in Unix milliseconds.
func NewEventRecord(e desktop.Event, ts time.Time) EventRecord {
	r := EventRecord{TS: ts.UnixMilli()}
	switch e := e.(type) {
	case desktop.WindowCreatedEvent:
		r.Type, r.External = EventWindowCreated, e.External
		r.setWindow(e.Window)
	case desktop.WindowDestroyedEvent:
		r.Type, r.External = EventWindowDestroyed, e.External
		r.setWindow(e.Window)
	case desktop.WindowPositionChangedEvent:
		r.windowChange(e.Window, e.External, model.FieldPosition, e.OldValue, e.NewValue)
	case desktop.WindowSizeChangedEvent:
		r.windowChange(e.Window, e.External, model.FieldSize, e.OldValue, e.NewValue)
	case desktop.WindowTitleChangedEvent:
		r.windowChange(e.Window, e.External, model.FieldTitle, e.OldValue, e.NewValue)
	case desktop.WindowMinimizedChangedEvent:
		r.windowChange(e.Window, e.External, model.FieldMinimized, e.OldValue, e.NewValue)
	case desktop.WindowFullscreenChangedEvent:
		r.windowChange(e.Window, e.External, model.FieldFullscreen, e.OldValue, e.NewValue)
	case desktop.ApplicationLaunchedEvent:
		r.Type, r.External, r.App = EventAppLaunched, e.External, string(e.Application.ID())
	case desktop.ApplicationTerminatedEvent:
		r.Type, r.External, r.App = EventAppTerminated, e.External, string(e.Application.ID())
	case desktop.ApplicationMainWindowChangedEvent:
		r.appChange(e.Application, e.External, model.FieldMainWindow, string(e.OldValue.ID()), string(e.NewValue.ID()))
	case desktop.ApplicationFocusedWindowChangedEvent:
		r.appChange(e.Application, e.External, model.FieldFocusedWindow, string(e.OldValue.ID()), string(e.NewValue.ID()))
	case desktop.ApplicationFrontmostChangedEvent:
		r.appChange(e.Application, e.External, model.FieldFrontmost, e.OldValue, e.NewValue)
	case desktop.ApplicationHiddenChangedEvent:
		r.appChange(e.Application, e.External, model.FieldHidden, e.OldValue, e.NewValue)
	case desktop.FrontmostApplicationChangedEvent:
		r.Type, r.External = EventFrontmostChanged, e.External
		r.Old, r.New = string(e.OldValue.ID()), string(e.NewValue.ID())
	}
	return r
}

func (r *EventRecord) setWindow(w desktop.Window) {
	r.Window = string(w.ID())
	if !w.IsZero() {
		r.App = string(w.Application().ID())
	}
}

func (r *EventRecord) windowChange(w desktop.Window, external bool, field string, from, to any) {
	r.Type, r.External, r.Property, r.Old, r.New = EventWindowChanged, external, field, from, to
	r.setWindow(w)
}

func (r *EventRecord) appChange(a desktop.Application, external bool, field string, from, to any) {
	r.Type, r.External, r.Property, r.Old, r.New = EventAppChanged, external, field, from, to
	r.App = string(a.ID())
}
