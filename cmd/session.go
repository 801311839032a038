package cmd

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mj1618/deskmirror/internal/config"
	"github.com/mj1618/deskmirror/internal/desktop"
	"github.com/mj1618/deskmirror/internal/metrics"
	"github.com/mj1618/deskmirror/internal/model"
	"github.com/mj1618/deskmirror/internal/platform"
	"github.com/mj1618/deskmirror/internal/platform/memory"
	"github.com/mj1618/deskmirror/internal/platform/poll"
)

//go:embed demo.yaml
var demoFixture []byte

// session is a running mirror bound to the configured backend.
type session struct {
	state   *desktop.State
	metrics *metrics.Metrics

	// sim and fixture are set for the simulated backends.
	sim     *memory.Desktop
	fixture *memory.Fixture
	screen  model.Rect

	closers []func() error
}

// openSession builds the backend selected by cfg and mirrors it. The mirror
// stops when ctx is done or Close is called.
func openSession(ctx context.Context, c *config.Config) (*session, error) {
	s := &session{metrics: metrics.New()}

	var backend platform.Backend
	switch c.Desktop.Backend {
	case config.BackendMemory, config.BackendPoll:
		f, err := loadFixture(c.Desktop.Fixture)
		if err != nil {
			return nil, err
		}
		var opts []memory.Option
		if c.Desktop.Backend == config.BackendPoll {
			opts = append(opts, memory.Quiet())
		}
		sim, err := memory.FromFixture(f, opts...)
		if err != nil {
			return nil, fmt.Errorf("fixture: %w", err)
		}
		s.sim, s.fixture, s.screen = sim, f, sim.Screen()
		s.closers = append(s.closers, sim.Close)
		backend = sim

		if c.Desktop.Backend == config.BackendPoll {
			pb, err := poll.New(ctx, sim, poll.WithInterval(c.Desktop.PollInterval), poll.WithLogger(logger))
			if err != nil {
				s.Close()
				return nil, fmt.Errorf("poll backend: %w", err)
			}
			s.closers = append(s.closers, pb.Close)
			backend = pb
		}

	case config.BackendNative:
		provider, err := platform.NewProvider()
		if err != nil {
			return nil, err
		}
		if provider.Close != nil {
			s.closers = append(s.closers, provider.Close)
		}
		backend = provider.Backend

	default:
		return nil, fmt.Errorf("unknown backend %q", c.Desktop.Backend)
	}

	state, err := desktop.New(ctx, backend,
		desktop.WithLogger(logger),
		desktop.WithMetrics(s.metrics),
		desktop.WithOpTimeout(c.Desktop.OpTimeout),
	)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("mirror desktop: %w", err)
	}
	s.state = state
	logger.Debug("desktop mirrored",
		zap.String("backend", c.Desktop.Backend),
		zap.Int("applications", len(state.RunningApplications())),
		zap.Int("windows", len(state.KnownWindows())))
	return s, nil
}

func loadFixture(path string) (*memory.Fixture, error) {
	if path == "" {
		return memory.ParseFixture(demoFixture)
	}
	return memory.LoadFixture(path)
}

// Close stops the mirror, then the backend.
func (s *session) Close() {
	if s.state != nil {
		s.state.Close()
	}
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	if err := errors.Join(errs...); err != nil {
		logger.Warn("backend close failed", zap.Error(err))
	}
}

// play runs the fixture's script against the simulated desktop.
func (s *session) play(ctx context.Context) error {
	if s.sim == nil {
		return fmt.Errorf("--play needs the memory or poll backend")
	}
	return s.sim.Play(ctx, s.fixture.Script)
}
