package desktop

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mj1618/deskmirror/internal/platform"
)

// observer is the type-erased view of a cell used when routing backend
// notifications.
type observer interface {
	observe(raw any, external bool, requestID string)
	Refresh()
	invalidate()
	busy() bool
}

// write is one Set request and its correlation id.
type write[T comparable] struct {
	id    string
	value T
	done  bool // confirmed or failed
}

// cell is one observable value slot synchronized with the backend.
//
// Backend round-trips run on their own goroutines; their completions are
// posted to the State loop, which is the only place a cell reconciles values
// and publishes events. mu protects the fields below against Get and Set
// callers on other goroutines and is never held while publishing.
type cell[T comparable] struct {
	s      *State
	name   string // e.g. "window.title"
	entity string
	reader platform.Reader[T]
	writer platform.Accessor[T] // nil for read-only cells
	notify func(external bool, old, new T)

	mu        sync.Mutex
	value     T // what Get returns, including optimistic writes
	announced T // last value subscribers were told about
	backend   T // last value the backend reported
	inflight  *write[T]
	queued    *write[T]
	reading   bool
	reread    bool
	invalid   bool
}

func newCell[T comparable](s *State, name, entity string, initial T, r platform.Reader[T], w platform.Accessor[T]) *cell[T] {
	return &cell[T]{
		s:         s,
		name:      name,
		entity:    entity,
		reader:    r,
		writer:    w,
		value:     initial,
		announced: initial,
		backend:   initial,
	}
}

// Get returns the last known value without touching the backend.
func (c *cell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set stores v optimistically and schedules the backend write.
func (c *cell[T]) Set(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writer == nil {
		c.s.log.DPanic("write to read-only property", zap.String("property", c.name))
		return
	}
	if c.invalid {
		c.s.log.Debug("write to invalidated entity ignored",
			zap.String("property", c.name), zap.String("entity", c.entity))
		return
	}
	if c.queued != nil {
		c.s.metrics.WriteSettled(c.name, OutcomeSuperseded)
	}
	c.queued = &write[T]{id: uuid.NewString(), value: v}
	c.value = v
	c.kickLocked()
}

// Refresh schedules a backend read.
func (c *cell[T]) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.invalid {
		return
	}
	c.reread = true
	c.kickLocked()
}

func (c *cell[T]) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.invalid = true
	c.queued = nil
	c.reread = false
}

// observe applies a value carried by a backend notification. Runs on the loop.
func (c *cell[T]) observe(raw any, external bool, requestID string) {
	v, ok := raw.(T)
	if !ok {
		c.s.protocolError("value type",
			zap.String("property", c.name),
			zap.String("entity", c.entity),
			zap.String("type", fmt.Sprintf("%T", raw)))
		return
	}
	c.deliver(func() func() {
		if c.invalid {
			return nil
		}
		w := c.inflight
		awaiting := w != nil && !w.done
		if requestID != "" {
			if awaiting && requestID == w.id {
				return c.confirmLocked(w, v)
			}
			// Confirmation of a write that already settled: newer state exists.
			c.s.log.Debug("stale write confirmation ignored",
				zap.String("property", c.name), zap.String("request", requestID))
			return nil
		}
		if awaiting && !external {
			return c.confirmLocked(w, v)
		}
		return c.applyLocked(v, external)
	})
}

// kickLocked starts the next backend operation if none is in flight.
// Writes take priority over reads; only the latest queued write is sent.
func (c *cell[T]) kickLocked() {
	if c.invalid || c.inflight != nil || c.reading {
		return
	}
	if w := c.queued; w != nil {
		c.queued = nil
		c.inflight = w
		c.s.metrics.WriteIssued(c.name)
		go c.runWrite(w)
		return
	}
	if c.reread && c.reader != nil {
		c.reread = false
		c.reading = true
		go c.runRead()
	}
}

func (c *cell[T]) runWrite(w *write[T]) {
	ctx, cancel := c.s.opContext()
	defer cancel()
	ctx = platform.WithRequestID(ctx, w.id)

	if err := c.writer.Write(ctx, w.value); err != nil {
		c.s.post(func() {
			c.deliver(func() func() { return c.writeFailedLocked(w, err) })
		})
		return
	}
	v, err := c.reader.Read(ctx)
	c.s.post(func() {
		c.deliver(func() func() {
			if err != nil {
				return c.writeFailedLocked(w, err)
			}
			return c.writeDoneLocked(w, v)
		})
	})
}

func (c *cell[T]) runRead() {
	ctx, cancel := c.s.opContext()
	defer cancel()

	v, err := c.reader.Read(ctx)
	c.s.post(func() {
		c.deliver(func() func() { return c.readDoneLocked(v, err) })
	})
}

// deliver runs f under the cell lock and then the publication it returns.
func (c *cell[T]) deliver(f func() func()) {
	c.mu.Lock()
	publish := f()
	c.mu.Unlock()

	if publish != nil {
		publish()
	}
}

// busy reports whether a backend operation is in flight or scheduled.
func (c *cell[T]) busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight != nil || c.queued != nil || c.reading || (c.reread && c.reader != nil && !c.invalid)
}

func (c *cell[T]) pendingLocked() bool {
	return c.queued != nil || (c.inflight != nil && !c.inflight.done)
}

// applyLocked records a backend value not tied to the pending write. While
// a local write is pending the optimistic value stands.
func (c *cell[T]) applyLocked(v T, external bool) func() {
	c.backend = v
	if c.pendingLocked() || c.value == v {
		return nil
	}
	old := c.value
	c.value, c.announced = v, v
	return c.event(external, old, v)
}

// confirmLocked settles w with the value the backend actually applied.
func (c *cell[T]) confirmLocked(w *write[T], v T) func() {
	w.done = true
	c.backend = v
	if c.queued != nil {
		c.s.metrics.WriteSettled(c.name, OutcomeSuperseded)
		return nil
	}

	old, outcome := c.announced, OutcomeConfirmed
	if v != w.value {
		old, outcome = c.value, OutcomeOverridden
	}
	c.s.metrics.WriteSettled(c.name, outcome)
	c.value, c.announced = v, v
	if old == v {
		return nil
	}
	return c.event(false, old, v)
}

func (c *cell[T]) writeDoneLocked(w *write[T], v T) func() {
	c.inflight = nil
	defer c.kickLocked()

	if c.invalid {
		return nil
	}
	if !w.done {
		return c.confirmLocked(w, v)
	}
	// Already confirmed by a notification; the read-back is a fresh observation.
	return c.applyLocked(v, true)
}

func (c *cell[T]) writeFailedLocked(w *write[T], err error) func() {
	c.inflight = nil
	defer c.kickLocked()

	if c.invalid || w.done {
		return nil
	}
	w.done = true
	c.logFailure("write failed", err)
	c.s.metrics.WriteSettled(c.name, OutcomeFailed)
	if c.queued != nil {
		return nil
	}

	c.reread = true
	c.value = c.backend
	if c.value == c.announced {
		return nil
	}
	old := c.announced
	c.announced = c.value
	return c.event(false, old, c.value)
}

func (c *cell[T]) readDoneLocked(v T, err error) func() {
	c.reading = false
	defer c.kickLocked()

	if c.invalid {
		return nil
	}
	if err != nil {
		c.logFailure("read failed", err)
		c.s.metrics.ReadFailed(c.name)
		return nil
	}
	return c.applyLocked(v, true)
}

func (c *cell[T]) event(external bool, old, new T) func() {
	if c.notify == nil {
		return nil
	}
	return func() { c.notify(external, old, new) }
}

func (c *cell[T]) logFailure(msg string, err error) {
	fields := []zap.Field{zap.String("property", c.name), zap.String("entity", c.entity), zap.Error(err)}
	if errors.Is(err, platform.ErrInvalidated) {
		c.s.log.Debug(msg, fields...)
		return
	}
	c.s.log.Warn(msg, fields...)
}
