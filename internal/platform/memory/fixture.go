package memory

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mj1618/deskmirror/internal/model"
	"github.com/mj1618/deskmirror/internal/platform"
)

// Fixture describes a simulated desktop and an optional timeline of
// external changes.
type Fixture struct {
	Screen       model.Rect `yaml:"screen"`
	Frontmost    string     `yaml:"frontmost"`
	Applications []AppSpec  `yaml:"applications"`
	Script       []Step     `yaml:"script"`
}

// AppSpec describes one application. MainWindow defaults to the first window.
type AppSpec struct {
	ID         string       `yaml:"id"`
	PID        int          `yaml:"pid"`
	BundleID   string       `yaml:"bundle_id"`
	MainWindow string       `yaml:"main_window"`
	Hidden     bool         `yaml:"hidden"`
	Windows    []WindowSpec `yaml:"windows"`
}

type WindowSpec struct {
	ID         string      `yaml:"id"`
	Title      string      `yaml:"title"`
	Position   model.Point `yaml:"position"`
	Size       model.Size  `yaml:"size"`
	Minimized  bool        `yaml:"minimized"`
	Fullscreen bool        `yaml:"fullscreen"`
}

// Step is one scripted external change. After is the delay since the
// previous step.
type Step struct {
	After  time.Duration `yaml:"after"`
	Op     string        `yaml:"op"`
	App    string        `yaml:"app"`
	Window string        `yaml:"window"`

	X      int    `yaml:"x"`
	Y      int    `yaml:"y"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
	Value  bool   `yaml:"value"`

	// launch only
	PID      int          `yaml:"pid"`
	BundleID string       `yaml:"bundle_id"`
	Windows  []WindowSpec `yaml:"windows"`
}

// Script operations.
const (
	OpMove       = "move"
	OpResize     = "resize"
	OpRetitle    = "retitle"
	OpMinimize   = "minimize"
	OpFullscreen = "fullscreen"
	OpOpen       = "open"
	OpClose      = "close"
	OpLaunch     = "launch"
	OpTerminate  = "terminate"
	OpActivate   = "activate"
)

// LoadFixture reads a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	f, err := ParseFixture(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// ParseFixture decodes a YAML fixture and checks its script.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	for i, s := range f.Script {
		if err := s.validate(); err != nil {
			return nil, fmt.Errorf("script step %d: %w", i, err)
		}
	}
	return &f, nil
}

func (s Step) validate() error {
	switch s.Op {
	case OpMove, OpResize, OpRetitle, OpMinimize, OpFullscreen, OpClose:
		if s.Window == "" {
			return fmt.Errorf("%s needs a window", s.Op)
		}
	case OpOpen:
		if s.App == "" || s.Window == "" {
			return fmt.Errorf("open needs an app and a window")
		}
	case OpLaunch, OpTerminate:
		if s.App == "" {
			return fmt.Errorf("%s needs an app", s.Op)
		}
	case OpActivate:
	default:
		return fmt.Errorf("unknown op %q", s.Op)
	}
	if s.After < 0 {
		return fmt.Errorf("negative delay %s", s.After)
	}
	return nil
}

// FromFixture builds a Desktop in the fixture's initial state. No
// notifications are produced for the initial state.
func FromFixture(f *Fixture, opts ...Option) (*Desktop, error) {
	d := New(f.Screen, opts...)
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, spec := range f.Applications {
		if _, err := d.seedLocked(spec); err != nil {
			return nil, fmt.Errorf("fixture: %w", err)
		}
	}
	if f.Frontmost != "" {
		if d.apps[platform.AppID(f.Frontmost)] == nil {
			return nil, fmt.Errorf("fixture: frontmost application %s is not defined", f.Frontmost)
		}
		d.frontmost = platform.AppID(f.Frontmost)
	}
	return d, nil
}

// Play applies steps in order, waiting each step's delay first. It stops at
// the first failing step or when ctx is done.
func (d *Desktop) Play(ctx context.Context, steps []Step) error {
	for i, s := range steps {
		if s.After > 0 {
			t := time.NewTimer(s.After)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		if err := d.Apply(s); err != nil {
			return fmt.Errorf("script step %d (%s): %w", i, s.Op, err)
		}
	}
	return nil
}

// Apply performs one step immediately.
func (d *Desktop) Apply(s Step) error {
	wid := platform.WindowID(s.Window)
	switch s.Op {
	case OpMove:
		return d.Move(wid, model.Point{X: s.X, Y: s.Y})
	case OpResize:
		return d.Resize(wid, model.Size{Width: s.Width, Height: s.Height})
	case OpRetitle:
		return d.Retitle(wid, s.Title)
	case OpMinimize:
		return d.Minimize(wid, s.Value)
	case OpFullscreen:
		return d.SetFullscreen(wid, s.Value)
	case OpOpen:
		return d.OpenWindow(platform.AppID(s.App), WindowSpec{
			ID:       s.Window,
			Title:    s.Title,
			Position: model.Point{X: s.X, Y: s.Y},
			Size:     model.Size{Width: s.Width, Height: s.Height},
		})
	case OpClose:
		return d.CloseWindow(wid)
	case OpLaunch:
		return d.Launch(AppSpec{ID: s.App, PID: s.PID, BundleID: s.BundleID, Windows: s.Windows})
	case OpTerminate:
		return d.Terminate(platform.AppID(s.App))
	case OpActivate:
		return d.Activate(platform.AppID(s.App))
	}
	return fmt.Errorf("unknown op %q", s.Op)
}
