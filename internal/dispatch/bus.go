// Package dispatch provides a typed, synchronous publish/subscribe bus.
//
// Handlers are keyed by the exact static type of the event: a handler
// registered for WindowTitleChangedEvent never sees any other type, and there
// is no supertype or interface matching. Publishing takes a snapshot of the
// handler list, so handlers may subscribe, unsubscribe, or publish while an
// event is being delivered; changes apply to later events only.
package dispatch

import (
	"reflect"
	"sync"
)

type subscription struct {
	id uint64
	fn any
}

// Bus routes events to handlers by concrete type.
type Bus struct {
	mu       sync.RWMutex
	handlers map[reflect.Type][]subscription
	nextID   uint64
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{handlers: make(map[reflect.Type][]subscription)}
}

// Subscribe registers h for events of type E. Handlers of one type run in
// registration order. The returned function removes the handler; calling it
// more than once is harmless.
func Subscribe[E any](b *Bus, h func(E)) (unsubscribe func()) {
	t := reflect.TypeFor[E]()

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[t] = append(b.handlers[t], subscription{id: id, fn: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(t, id) })
	}
}

// Publish delivers e synchronously to every handler registered for exactly
// type E and returns how many handlers ran.
func Publish[E any](b *Bus, e E) int {
	t := reflect.TypeFor[E]()

	b.mu.RLock()
	subs := b.handlers[t]
	b.mu.RUnlock()

	for _, s := range subs {
		s.fn.(func(E))(e)
	}
	return len(subs)
}

// Len returns the number of handlers registered for type E.
func Len[E any](b *Bus) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[reflect.TypeFor[E]()])
}

// remove copies the handler list so snapshots held by in-progress
// publishes are never modified.
func (b *Bus) remove(t reflect.Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[t]
	kept := make([]subscription, 0, len(subs))
	for _, s := range subs {
		if s.id != id {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		delete(b.handlers, t)
		return
	}
	b.handlers[t] = kept
}
