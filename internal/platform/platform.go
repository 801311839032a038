package platform

import (
	"context"

	"github.com/mj1618/deskmirror/internal/model"
)

// WindowID is the opaque, backend-supplied identity token of a window.
type WindowID string

// AppID is the opaque, backend-supplied identity token of an application.
type AppID string

// Reader reads one property value from the OS window/process manager.
type Reader[T any] interface {
	// Read returns the current value. It fails with ErrInvalidated once the
	// owning window or application is gone.
	Read(ctx context.Context) (T, error)
}

// Accessor reads and writes one property value.
type Accessor[T any] interface {
	Reader[T]

	// Write asks the OS to apply v. A nil error means the request was
	// accepted, not that the OS kept v unchanged: the applied value is
	// confirmed later by a notification or a read. The correlation id of
	// the write, if any, is available through RequestIDFrom(ctx).
	Write(ctx context.Context, v T) error
}

// WindowHandle is a backend reference to one window.
type WindowHandle interface {
	ID() WindowID
	// App returns the owning application.
	App() AppID
	Equal(other WindowHandle) bool
	// Valid reports whether the window still exists. Once false it stays false.
	Valid() bool

	Position() Accessor[model.Point]
	Size() Accessor[model.Size]
	Title() Accessor[string]
	Minimized() Accessor[bool]
	Fullscreen() Accessor[bool]
}

// AppHandle is a backend reference to one running application.
type AppHandle interface {
	ID() AppID
	PID() int
	BundleID() string
	Equal(other AppHandle) bool
	// Valid reports whether the application is still running. Once false it
	// stays false.
	Valid() bool

	MainWindow() Accessor[WindowID]
	FocusedWindow() Reader[WindowID]
	Frontmost() Accessor[bool]
	Hidden() Accessor[bool]
}

// Backend is the capability set an OS integration layer provides to the
// desktop mirror.
type Backend interface {
	// RunningApplications enumerates the applications running right now.
	RunningApplications(ctx context.Context) ([]AppHandle, error)

	// KnownWindows enumerates the windows of running applications.
	KnownWindows(ctx context.Context) ([]WindowHandle, error)

	// FrontmostApplication accesses the active application. The zero AppID
	// means no application is frontmost.
	FrontmostApplication() Accessor[AppID]

	// Notifications delivers changes in arrival order. The channel is closed
	// when the backend shuts down.
	Notifications() <-chan Notification
}
