package model

import "testing"

func TestFilterWindows_NoFilters(t *testing.T) {
	windows := []Window{{ID: "W1", App: "A1"}, {ID: "W2", App: "A2"}}
	result := FilterWindows(windows, "", "")
	if len(result) != 2 {
		t.Errorf("expected 2 windows, got %d", len(result))
	}
}

func TestFilterWindows(t *testing.T) {
	windows := []Window{
		{ID: "W1", App: "A1", Title: "Terminal"},
		{ID: "W2", App: "A1", Title: "Preferences"},
		{ID: "W3", App: "A2", Title: "terminal help"},
	}
	tests := []struct {
		app, title string
		want       []string
	}{
		{"A1", "", []string{"W1", "W2"}},
		{"", "TERMINAL", []string{"W1", "W3"}},
		{"A2", "term", []string{"W3"}},
		{"A3", "", nil},
	}
	for _, tt := range tests {
		got := FilterWindows(windows, tt.app, tt.title)
		if len(got) != len(tt.want) {
			t.Errorf("FilterWindows(%q, %q): got %d windows, want %d", tt.app, tt.title, len(got), len(tt.want))
			continue
		}
		for i := range got {
			if got[i].ID != tt.want[i] {
				t.Errorf("FilterWindows(%q, %q)[%d] = %s, want %s", tt.app, tt.title, i, got[i].ID, tt.want[i])
			}
		}
	}
}

func TestIntersects(t *testing.T) {
	screen := [4]int{0, 0, 100, 100}
	tests := []struct {
		b    [4]int
		want bool
	}{
		{[4]int{10, 10, 50, 30}, true},
		{[4]int{200, 200, 50, 30}, false},
		{[4]int{90, 90, 50, 30}, true},
		{[4]int{100, 0, 10, 10}, false},
	}
	for _, tt := range tests {
		if got := Intersects(screen, tt.b); got != tt.want {
			t.Errorf("Intersects(%v, %v) = %v, want %v", screen, tt.b, got, tt.want)
		}
	}
}

func TestRectClamp(t *testing.T) {
	screen := Rect{X: 0, Y: 0, Width: 1920, Height: 1080}
	size := Size{Width: 800, Height: 600}
	tests := []struct {
		in, want Point
	}{
		{Point{10, 20}, Point{10, 20}},
		{Point{-50, 20}, Point{0, 20}},
		{Point{5000, 5000}, Point{1120, 480}},
	}
	for _, tt := range tests {
		if got := screen.Clamp(tt.in, size); got != tt.want {
			t.Errorf("Clamp(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if got := (Rect{}).Clamp(Point{-5, -5}, size); got != (Point{-5, -5}) {
		t.Errorf("empty rect should not clamp, got %v", got)
	}
	big := Size{Width: 4000, Height: 4000}
	if got := screen.Clamp(Point{300, 300}, big); got != (Point{0, 0}) {
		t.Errorf("oversized window should pin to origin, got %v", got)
	}
}
