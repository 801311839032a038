package desktop

import "github.com/mj1618/deskmirror/internal/platform"

// Property is an observable value mirrored from the backend.
type Property[T any] interface {
	// Get returns the last known value. It never waits on the backend.
	Get() T
	// Refresh re-reads the value from the backend in the background. A
	// changed value is published as an external change event.
	Refresh()
}

// WritableProperty is a Property that can be changed from this process.
type WritableProperty[T any] interface {
	Property[T]
	// Set updates the value immediately and writes it to the backend in the
	// background. The change event is published once the backend confirms.
	// Failures are logged, never returned: the value reverts to what the
	// backend reports.
	Set(v T)
}

// readOnly hides Set from a writable implementation.
type readOnly[T any] struct {
	p Property[T]
}

func (r readOnly[T]) Get() T   { return r.p.Get() }
func (r readOnly[T]) Refresh() { r.p.Refresh() }

// none is the property of an absent entity: it reads as the zero value and
// ignores writes.
type none[T any] struct{}

func (none[T]) Get() T {
	var zero T
	return zero
}

func (none[T]) Set(T)    {}
func (none[T]) Refresh() {}

// windowRef exposes a cell of window tokens as a property of Window handles.
type windowRef struct {
	c *cell[platform.WindowID]
	s *State
}

func (r windowRef) Get() Window  { return r.s.lookupWindow(r.c.Get()) }
func (r windowRef) Set(w Window) { r.c.Set(w.ID()) }
func (r windowRef) Refresh()     { r.c.Refresh() }

// appRef exposes a cell of application tokens as a property of Application handles.
type appRef struct {
	c *cell[platform.AppID]
	s *State
}

func (r appRef) Get() Application  { return r.s.lookupApp(r.c.Get()) }
func (r appRef) Set(a Application) { r.c.Set(a.ID()) }
func (r appRef) Refresh()          { r.c.Refresh() }
