package model

import "strings"

// FilterWindows returns the windows that belong to app (exact ID match,
// empty = any) and whose title contains title (case-insensitive, empty = any).
func FilterWindows(windows []Window, app, title string) []Window {
	if app == "" && title == "" {
		return windows
	}
	titleLower := strings.ToLower(title)
	var result []Window
	for _, w := range windows {
		if app != "" && w.App != app {
			continue
		}
		if title != "" && !strings.Contains(strings.ToLower(w.Title), titleLower) {
			continue
		}
		result = append(result, w)
	}
	return result
}

// Intersects reports whether two [x, y, width, height] rectangles overlap.
func Intersects(a, b [4]int) bool {
	ax1, ay1, ax2, ay2 := a[0], a[1], a[0]+a[2], a[1]+a[3]
	bx1, by1, bx2, by2 := b[0], b[1], b[0]+b[2], b[1]+b[3]
	return ax1 < bx2 && ax2 > bx1 && ay1 < by2 && ay2 > by1
}
