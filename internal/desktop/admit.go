package desktop

import (
	"go.uber.org/zap"

	"github.com/mj1618/deskmirror/internal/platform"
)

// Admission: entities are built off the loop and inserted on it. An entity
// is "pending" between the two; pending entities that are destroyed before
// they are inserted are discarded without events.
//
// While an entity is pending, the properties the backend reports as changed
// are remembered and re-read once it is inserted, and events that refer to
// it are held back so they carry the admitted handle.

// pending is the bookkeeping of one entity under construction.
type pending[P comparable] struct {
	changed []P
	held    []func()
}

func (p *pending[P]) change(prop P) {
	for _, c := range p.changed {
		if c == prop {
			return
		}
	}
	p.changed = append(p.changed, prop)
}

// release publishes the held events.
func (p *pending[P]) release() {
	held := p.held
	p.held = nil
	for _, fn := range held {
		fn()
	}
}

// whenWindowKnown runs fn now, or once window id has left construction.
func (s *State) whenWindowKnown(id platform.WindowID, fn func()) {
	if p, ok := s.pendingWindows[id]; ok {
		p.held = append(p.held, fn)
		return
	}
	fn()
}

// whenAppKnown runs fn now, or once application id has left construction.
func (s *State) whenAppKnown(id platform.AppID, fn func()) {
	if p, ok := s.pendingApps[id]; ok {
		p.held = append(p.held, fn)
		return
	}
	fn()
}

// dropWindow forgets a pending window that will not be admitted.
func (s *State) dropWindow(id platform.WindowID) {
	p, ok := s.pendingWindows[id]
	if !ok {
		return
	}
	delete(s.pendingWindows, id)
	p.release()
}

func (s *State) admitApp(h platform.AppHandle) {
	id := h.ID()
	if _, ok := s.pendingApps[id]; ok || s.appByID(id) != nil {
		s.protocolError("duplicate application", zap.String("application", string(id)))
		return
	}
	s.pendingApps[id] = &pending[platform.AppProperty]{}

	go func() {
		ctx, cancel := s.opContext()
		defer cancel()
		a, err := s.buildApp(ctx, h)
		s.post(func() { s.finishApp(id, a, err) })
	}()
}

func (s *State) finishApp(id platform.AppID, a *application, err error) {
	p, ok := s.pendingApps[id]
	if !ok {
		s.log.Debug("application terminated during construction", zap.String("application", string(id)))
		return
	}
	delete(s.pendingApps, id)
	waiting := s.deferred[id]
	delete(s.deferred, id)

	if err != nil {
		s.log.Warn("application construction failed", zap.String("application", string(id)), zap.Error(err))
		p.release()
		for _, h := range waiting {
			s.dropWindow(h.ID())
		}
		return
	}
	s.insertApp(a)
	publish(s, ApplicationLaunchedEvent{External: true, Application: Application{a: a}})
	p.release()
	for _, prop := range p.changed {
		s.refreshApp(a, prop)
	}

	for _, h := range waiting {
		wp, ok := s.pendingWindows[h.ID()]
		if !ok {
			continue
		}
		delete(s.pendingWindows, h.ID())
		s.admitWindow(h, id)
		if _, ok := s.pendingWindows[h.ID()]; ok {
			s.pendingWindows[h.ID()] = wp
		} else {
			wp.release()
		}
	}
}

func (s *State) admitWindow(h platform.WindowHandle, appID platform.AppID) {
	id := h.ID()
	if _, ok := s.pendingWindows[id]; ok || s.windowByID(id) != nil {
		s.protocolError("duplicate window", zap.String("window", string(id)))
		return
	}
	if _, ok := s.pendingApps[appID]; ok {
		s.pendingWindows[id] = &pending[platform.WindowProperty]{}
		s.deferred[appID] = append(s.deferred[appID], h)
		return
	}
	a := s.appByID(appID)
	if a == nil || !a.handle.Valid() {
		s.log.Warn("window owner not available",
			zap.String("window", string(id)), zap.String("application", string(appID)))
		return
	}
	s.pendingWindows[id] = &pending[platform.WindowProperty]{}

	go func() {
		ctx, cancel := s.opContext()
		defer cancel()
		w, err := s.buildWindow(ctx, h, a)
		s.post(func() { s.finishWindow(id, w, err) })
	}()
}

func (s *State) finishWindow(id platform.WindowID, w *window, err error) {
	p, ok := s.pendingWindows[id]
	if !ok {
		s.log.Debug("window destroyed during construction", zap.String("window", string(id)))
		return
	}
	delete(s.pendingWindows, id)

	if err != nil {
		s.log.Warn("window construction failed", zap.String("window", string(id)), zap.Error(err))
		p.release()
		return
	}
	if s.appByID(w.app.id) != w.app {
		s.log.Debug("window owner terminated during construction",
			zap.String("window", string(id)), zap.String("application", string(w.app.id)))
		p.release()
		return
	}
	s.insertWindow(w)
	publish(s, WindowCreatedEvent{External: true, Window: Window{w: w}})
	p.release()
	for _, prop := range p.changed {
		s.refreshWindow(w, prop)
	}
}

// refreshWindow re-reads a property that changed while w was being built.
func (s *State) refreshWindow(w *window, prop platform.WindowProperty) {
	c := w.cell(prop)
	if c == nil {
		s.protocolError("unknown property", zap.String("window", string(w.id)), zap.String("property", string(prop)))
		return
	}
	c.Refresh()
}

// refreshApp re-reads a property that changed while a was being built.
func (s *State) refreshApp(a *application, prop platform.AppProperty) {
	c := a.cell(prop)
	if c == nil {
		s.protocolError("unknown property", zap.String("application", string(a.id)), zap.String("property", string(prop)))
		return
	}
	c.Refresh()
}

func (s *State) insertApp(a *application) {
	s.mu.Lock()
	s.apps[a.id] = a
	apps, windows := len(s.apps), len(s.windows)
	s.mu.Unlock()
	s.metrics.EntitiesKnown(apps, windows)
}

func (s *State) insertWindow(w *window) {
	s.mu.Lock()
	s.windows[w.id] = w
	set := s.appWindows[w.app.id]
	if set == nil {
		set = make(map[platform.WindowID]struct{})
		s.appWindows[w.app.id] = set
	}
	set[w.id] = struct{}{}
	apps, windows := len(s.apps), len(s.windows)
	s.mu.Unlock()
	s.metrics.EntitiesKnown(apps, windows)
}

// retireWindow invalidates the window, tells subscribers, then forgets it.
func (s *State) retireWindow(id platform.WindowID) {
	w := s.windowByID(id)
	if w == nil {
		if _, ok := s.pendingWindows[id]; ok {
			s.dropWindow(id)
			s.log.Debug("window destroyed during construction", zap.String("window", string(id)))
			return
		}
		s.protocolError("unknown window", zap.String("window", string(id)), zap.String("notification", "window destroyed"))
		return
	}
	w.invalidate()
	publish(s, WindowDestroyedEvent{External: true, Window: Window{w: w}})

	s.mu.Lock()
	s.removeWindowLocked(w)
	apps, windows := len(s.apps), len(s.windows)
	s.mu.Unlock()
	s.metrics.EntitiesKnown(apps, windows)
}

// retireApp destroys the application's windows first, then the application.
func (s *State) retireApp(id platform.AppID) {
	a := s.appByID(id)
	if a == nil {
		if p, ok := s.pendingApps[id]; ok {
			delete(s.pendingApps, id)
			for _, h := range s.deferred[id] {
				s.dropWindow(h.ID())
			}
			delete(s.deferred, id)
			p.release()
			s.log.Debug("application terminated during construction", zap.String("application", string(id)))
			return
		}
		s.protocolError("unknown application", zap.String("application", string(id)))
		return
	}

	owned := s.windowsOf(id)
	for _, w := range owned {
		w.w.invalidate()
		publish(s, WindowDestroyedEvent{External: true, Window: w})
	}
	a.invalidate()
	publish(s, ApplicationTerminatedEvent{External: true, Application: Application{a: a}})

	s.mu.Lock()
	for _, w := range owned {
		s.removeWindowLocked(w.w)
	}
	delete(s.appWindows, id)
	delete(s.apps, id)
	apps, windows := len(s.apps), len(s.windows)
	s.mu.Unlock()
	s.metrics.EntitiesKnown(apps, windows)
}

func (s *State) removeWindowLocked(w *window) {
	delete(s.windows, w.id)
	if set := s.appWindows[w.app.id]; set != nil {
		delete(set, w.id)
		if len(set) == 0 {
			delete(s.appWindows, w.app.id)
		}
	}
}
