package model

// Point is a screen coordinate in points.
type Point struct {
	X int `yaml:"x" json:"x"`
	Y int `yaml:"y" json:"y"`
}

// Size is a window extent in points.
type Size struct {
	Width  int `yaml:"width"  json:"width"`
	Height int `yaml:"height" json:"height"`
}

// Rect represents a screen rectangle.
type Rect struct {
	X      int `yaml:"x"      json:"x"`
	Y      int `yaml:"y"      json:"y"`
	Width  int `yaml:"width"  json:"width"`
	Height int `yaml:"height" json:"height"`
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Clamp returns the position closest to p at which a window of size s keeps
// its top-left corner on r. Windows larger than r are pinned to r's origin.
func (r Rect) Clamp(p Point, s Size) Point {
	if r.Empty() {
		return p
	}
	maxX := r.X + r.Width - min(s.Width, r.Width)
	maxY := r.Y + r.Height - min(s.Height, r.Height)
	return Point{
		X: max(r.X, min(p.X, maxX)),
		Y: max(r.Y, min(p.Y, maxY)),
	}
}

// Window is a snapshot of one application window.
type Window struct {
	ID         string `yaml:"id"                   json:"id"`
	App        string `yaml:"app"                  json:"app"`
	PID        int    `yaml:"pid,omitempty"        json:"pid,omitempty"`
	Title      string `yaml:"title"                json:"title"`
	Position   Point  `yaml:"position"             json:"position"`
	Size       Size   `yaml:"size"                 json:"size"`
	Minimized  bool   `yaml:"minimized,omitempty"  json:"minimized,omitempty"`
	Fullscreen bool   `yaml:"fullscreen,omitempty" json:"fullscreen,omitempty"`
	Focused    bool   `yaml:"focused,omitempty"    json:"focused,omitempty"`
}

// Bounds returns the window frame as [x, y, width, height].
func (w Window) Bounds() [4]int {
	return [4]int{w.Position.X, w.Position.Y, w.Size.Width, w.Size.Height}
}

// App is a snapshot of one running application.
type App struct {
	ID            string `yaml:"id"                       json:"id"`
	PID           int    `yaml:"pid"                      json:"pid"`
	BundleID      string `yaml:"bundle_id,omitempty"      json:"bundle_id,omitempty"`
	MainWindow    string `yaml:"main_window,omitempty"    json:"main_window,omitempty"`
	FocusedWindow string `yaml:"focused_window,omitempty" json:"focused_window,omitempty"`
	Frontmost     bool   `yaml:"frontmost,omitempty"      json:"frontmost,omitempty"`
	Hidden        bool   `yaml:"hidden,omitempty"         json:"hidden,omitempty"`
}

// Snapshot is a complete picture of the desktop at one instant.
type Snapshot struct {
	Apps      []App    `yaml:"apps"                json:"apps"`
	Windows   []Window `yaml:"windows"             json:"windows"`
	Frontmost string   `yaml:"frontmost,omitempty" json:"frontmost,omitempty"`
}

// Property names shared by snapshots, diffs, and the backend contract.
const (
	FieldPosition   = "position"
	FieldSize       = "size"
	FieldTitle      = "title"
	FieldMinimized  = "minimized"
	FieldFullscreen = "fullscreen"

	FieldMainWindow    = "main_window"
	FieldFocusedWindow = "focused_window"
	FieldFrontmost     = "frontmost"
	FieldHidden        = "hidden"
)
