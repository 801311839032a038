package platform

import (
	"fmt"

	"github.com/mj1618/deskmirror/internal/model"
)

// WindowProperty names one observable window attribute.
type WindowProperty string

const (
	WindowPosition   WindowProperty = model.FieldPosition
	WindowSize       WindowProperty = model.FieldSize
	WindowTitle      WindowProperty = model.FieldTitle
	WindowMinimized  WindowProperty = model.FieldMinimized
	WindowFullscreen WindowProperty = model.FieldFullscreen
)

// AppProperty names one observable application attribute.
type AppProperty string

const (
	AppMainWindow    AppProperty = model.FieldMainWindow
	AppFocusedWindow AppProperty = model.FieldFocusedWindow
	AppFrontmost     AppProperty = model.FieldFrontmost
	AppHidden        AppProperty = model.FieldHidden
)

// ParseWindowProperty converts a string to a WindowProperty.
func ParseWindowProperty(s string) (WindowProperty, error) {
	switch p := WindowProperty(s); p {
	case WindowPosition, WindowSize, WindowTitle, WindowMinimized, WindowFullscreen:
		return p, nil
	default:
		return "", fmt.Errorf("unknown window property: %q", s)
	}
}

// ParseAppProperty converts a string to an AppProperty.
func ParseAppProperty(s string) (AppProperty, error) {
	switch p := AppProperty(s); p {
	case AppMainWindow, AppFocusedWindow, AppFrontmost, AppHidden:
		return p, nil
	default:
		return "", fmt.Errorf("unknown application property: %q", s)
	}
}

// Notification is a change reported by the backend. The set of
// notifications is closed: only types in this package implement it.
type Notification interface {
	notification()
}

// WindowPropertyChanged reports a new value for one window property.
// Value holds the property's Go type (model.Point, model.Size, string, bool).
type WindowPropertyChanged struct {
	Window   WindowID
	Property WindowProperty
	Value    any
	// External is the backend's hint that the change did not come from a
	// write issued by this process.
	External bool
	// RequestID correlates the change with a write, when the backend can.
	RequestID string
}

// ApplicationPropertyChanged reports a new value for one application
// property. Window references are carried as WindowID.
type ApplicationPropertyChanged struct {
	App       AppID
	Property  AppProperty
	Value     any
	External  bool
	RequestID string
}

// WindowCreated reports a new window of App.
type WindowCreated struct {
	Window WindowHandle
	App    AppID
}

// WindowDestroyed reports that a window is gone.
type WindowDestroyed struct {
	Window WindowID
}

// ApplicationLaunched reports a newly running application.
type ApplicationLaunched struct {
	App AppHandle
}

// ApplicationTerminated reports that an application exited.
type ApplicationTerminated struct {
	App AppID
}

// FrontmostApplicationChanged reports a new active application.
// The zero AppID means no application is frontmost.
type FrontmostApplicationChanged struct {
	App       AppID
	External  bool
	RequestID string
}

func (WindowPropertyChanged) notification()       {}
func (ApplicationPropertyChanged) notification()  {}
func (WindowCreated) notification()               {}
func (WindowDestroyed) notification()             {}
func (ApplicationLaunched) notification()         {}
func (ApplicationTerminated) notification()       {}
func (FrontmostApplicationChanged) notification() {}
