package desktop

import (
	"reflect"

	"go.uber.org/zap"

	"github.com/mj1618/deskmirror/internal/dispatch"
	"github.com/mj1618/deskmirror/internal/model"
)

// Event is a change in the mirrored desktop. The set of events is closed:
// only the types in this file implement it. Events are plain comparable
// values; External is true when the change was not caused by a write from
// this process.
type Event interface {
	event()
}

// WindowCreatedEvent is published after a new window is added to the known set.
type WindowCreatedEvent struct {
	External bool
	Window   Window
}

// WindowDestroyedEvent is published before a window is removed from the known set.
type WindowDestroyedEvent struct {
	External bool
	Window   Window
}

type WindowPositionChangedEvent struct {
	External           bool
	Window             Window
	OldValue, NewValue model.Point
}

type WindowSizeChangedEvent struct {
	External           bool
	Window             Window
	OldValue, NewValue model.Size
}

type WindowTitleChangedEvent struct {
	External           bool
	Window             Window
	OldValue, NewValue string
}

type WindowMinimizedChangedEvent struct {
	External           bool
	Window             Window
	OldValue, NewValue bool
}

type WindowFullscreenChangedEvent struct {
	External           bool
	Window             Window
	OldValue, NewValue bool
}

// ApplicationLaunchedEvent is published after a new application is added.
type ApplicationLaunchedEvent struct {
	External    bool
	Application Application
}

// ApplicationTerminatedEvent is published before an application is removed.
// WindowDestroyedEvents for its windows precede it.
type ApplicationTerminatedEvent struct {
	External    bool
	Application Application
}

// ApplicationMainWindowChangedEvent carries zero Windows for "none" and for
// windows the mirror does not know.
type ApplicationMainWindowChangedEvent struct {
	External           bool
	Application        Application
	OldValue, NewValue Window
}

type ApplicationFocusedWindowChangedEvent struct {
	External           bool
	Application        Application
	OldValue, NewValue Window
}

type ApplicationFrontmostChangedEvent struct {
	External           bool
	Application        Application
	OldValue, NewValue bool
}

type ApplicationHiddenChangedEvent struct {
	External           bool
	Application        Application
	OldValue, NewValue bool
}

type FrontmostApplicationChangedEvent struct {
	External           bool
	OldValue, NewValue Application
}

func (WindowCreatedEvent) event()                   {}
func (WindowDestroyedEvent) event()                 {}
func (WindowPositionChangedEvent) event()           {}
func (WindowSizeChangedEvent) event()               {}
func (WindowTitleChangedEvent) event()              {}
func (WindowMinimizedChangedEvent) event()          {}
func (WindowFullscreenChangedEvent) event()         {}
func (ApplicationLaunchedEvent) event()             {}
func (ApplicationTerminatedEvent) event()           {}
func (ApplicationMainWindowChangedEvent) event()    {}
func (ApplicationFocusedWindowChangedEvent) event() {}
func (ApplicationFrontmostChangedEvent) event()     {}
func (ApplicationHiddenChangedEvent) event()        {}
func (FrontmostApplicationChangedEvent) event()     {}

// Subscribe registers h for events of exactly type E. Handlers run on the
// State's loop goroutine, in registration order, and must not block.
// Subscriptions made while an event is being delivered apply to later events.
func Subscribe[E Event](s *State, h func(E)) (unsubscribe func()) {
	unsubscribe = dispatch.Subscribe(s.bus, h)
	if ce := s.log.Check(zap.DebugLevel, "subscribed"); ce != nil {
		ce.Write(zap.String("event", reflect.TypeFor[E]().Name()), zap.Int("handlers", dispatch.Len[E](s.bus)))
	}
	return unsubscribe
}

// SubscribeAll registers h for every event type.
func SubscribeAll(s *State, h func(Event)) (unsubscribe func()) {
	unsubs := []func(){
		subscribeAs[WindowCreatedEvent](s, h),
		subscribeAs[WindowDestroyedEvent](s, h),
		subscribeAs[WindowPositionChangedEvent](s, h),
		subscribeAs[WindowSizeChangedEvent](s, h),
		subscribeAs[WindowTitleChangedEvent](s, h),
		subscribeAs[WindowMinimizedChangedEvent](s, h),
		subscribeAs[WindowFullscreenChangedEvent](s, h),
		subscribeAs[ApplicationLaunchedEvent](s, h),
		subscribeAs[ApplicationTerminatedEvent](s, h),
		subscribeAs[ApplicationMainWindowChangedEvent](s, h),
		subscribeAs[ApplicationFocusedWindowChangedEvent](s, h),
		subscribeAs[ApplicationFrontmostChangedEvent](s, h),
		subscribeAs[ApplicationHiddenChangedEvent](s, h),
		subscribeAs[FrontmostApplicationChangedEvent](s, h),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func subscribeAs[E Event](s *State, h func(Event)) func() {
	return dispatch.Subscribe(s.bus, func(e E) { h(e) })
}

// publish must only be called from the loop goroutine.
func publish[E Event](s *State, e E) {
	s.metrics.EventPublished(reflect.TypeFor[E]().Name())
	dispatch.Publish(s.bus, e)
}
