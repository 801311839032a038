package desktop

import (
	"context"
	"sync"
	"time"
)

const waitPoll = 5 * time.Millisecond

// Wait blocks until no entity is under construction and no property of any
// known entity has a backend read or write in flight or scheduled, so every
// Set made before the call has been confirmed, overridden, or rolled back.
// Events caused by those writes have been published when Wait returns nil.
func (s *State) Wait(ctx context.Context) error {
	ticker := time.NewTicker(waitPoll)
	defer ticker.Stop()
	for {
		var busy bool
		if err := s.call(func() { busy = s.busy() }); err != nil {
			return err
		}
		if !busy {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return ErrClosed
		case <-ticker.C:
		}
	}
}

// busy runs on the loop.
func (s *State) busy() bool {
	if len(s.pendingApps) > 0 || len(s.pendingWindows) > 0 || s.frontmost.busy() {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, w := range s.windows {
		for _, c := range []observer{w.position, w.size, w.title, w.minimized, w.fullscreen} {
			if c.busy() {
				return true
			}
		}
	}
	for _, a := range s.apps {
		for _, c := range []observer{a.mainWindow, a.focusedWindow, a.frontmost, a.hidden} {
			if c.busy() {
				return true
			}
		}
	}
	return false
}

// Apply runs writes, waits for the backend to settle them, and returns the
// events published in the meantime. Events from unrelated external changes
// that arrive during the wait are included.
func (s *State) Apply(ctx context.Context, writes ...func()) ([]Event, error) {
	var (
		mu     sync.Mutex
		events []Event
	)
	unsubscribe := SubscribeAll(s, func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})
	defer unsubscribe()

	for _, write := range writes {
		write()
	}
	err := s.Wait(ctx)

	mu.Lock()
	defer mu.Unlock()
	return events, err
}
