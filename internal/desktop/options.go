package desktop

import (
	"time"

	"go.uber.org/zap"
)

// Write outcomes reported to a Recorder.
const (
	OutcomeConfirmed  = "confirmed"
	OutcomeOverridden = "overridden"
	OutcomeSuperseded = "superseded"
	OutcomeFailed     = "failed"
)

// DefaultOpTimeout bounds a single backend read or write.
const DefaultOpTimeout = 5 * time.Second

// Recorder receives counters from the synchronization engine.
// Property names have the form "window.title"; they never include tokens.
type Recorder interface {
	EventPublished(event string)
	WriteIssued(property string)
	WriteSettled(property, outcome string)
	ReadFailed(property string)
	ProtocolError(kind string)
	EntitiesKnown(apps, windows int)
}

type nopRecorder struct{}

func (nopRecorder) EventPublished(string)       {}
func (nopRecorder) WriteIssued(string)          {}
func (nopRecorder) WriteSettled(string, string) {}
func (nopRecorder) ReadFailed(string)           {}
func (nopRecorder) ProtocolError(string)        {}
func (nopRecorder) EntitiesKnown(int, int)      {}

// Option configures a State.
type Option func(*State)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(s *State) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics sets the recorder for synchronization counters.
func WithMetrics(r Recorder) Option {
	return func(s *State) {
		if r != nil {
			s.metrics = r
		}
	}
}

// WithOpTimeout bounds each backend read and write.
func WithOpTimeout(d time.Duration) Option {
	return func(s *State) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}
