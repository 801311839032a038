package model

// ChangeType represents the kind of desktop change detected.
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeRemoved ChangeType = "removed"
	ChangeChanged ChangeType = "changed"
)

// WindowChange represents a single window change between two snapshots.
type WindowChange struct {
	Type   ChangeType `json:"type"`
	ID     string     `json:"id"`
	App    string     `json:"app,omitempty"`
	Window *Window    `json:"window,omitempty"` // For added/changed: the current window
	Fields []string   `json:"fields,omitempty"` // For changed: names of changed properties
}

// AppChange represents a single application change between two snapshots.
type AppChange struct {
	Type   ChangeType `json:"type"`
	ID     string     `json:"id"`
	App    *App       `json:"app,omitempty"`
	Fields []string   `json:"fields,omitempty"`
}

// DiffWindows compares two window lists and returns the changes.
// Windows are matched by ID. Added and changed windows are reported in the
// order of curr, removed windows in the order of prev.
func DiffWindows(prev, curr []Window) []WindowChange {
	prevMap := make(map[string]Window, len(prev))
	for _, w := range prev {
		prevMap[w.ID] = w
	}
	currMap := make(map[string]Window, len(curr))
	for _, w := range curr {
		currMap[w.ID] = w
	}

	var changes []WindowChange

	for _, w := range curr {
		wCopy := w
		prevW, existed := prevMap[w.ID]
		if !existed {
			changes = append(changes, WindowChange{
				Type:   ChangeAdded,
				ID:     w.ID,
				App:    w.App,
				Window: &wCopy,
			})
			continue
		}
		if fields := windowFields(prevW, w); len(fields) > 0 {
			changes = append(changes, WindowChange{
				Type:   ChangeChanged,
				ID:     w.ID,
				App:    w.App,
				Window: &wCopy,
				Fields: fields,
			})
		}
	}

	for _, w := range prev {
		if _, exists := currMap[w.ID]; !exists {
			changes = append(changes, WindowChange{
				Type: ChangeRemoved,
				ID:   w.ID,
				App:  w.App,
			})
		}
	}

	return changes
}

// DiffApps compares two application lists and returns the changes.
func DiffApps(prev, curr []App) []AppChange {
	prevMap := make(map[string]App, len(prev))
	for _, a := range prev {
		prevMap[a.ID] = a
	}
	currMap := make(map[string]App, len(curr))
	for _, a := range curr {
		currMap[a.ID] = a
	}

	var changes []AppChange

	for _, a := range curr {
		aCopy := a
		prevA, existed := prevMap[a.ID]
		if !existed {
			changes = append(changes, AppChange{Type: ChangeAdded, ID: a.ID, App: &aCopy})
			continue
		}
		if fields := appFields(prevA, a); len(fields) > 0 {
			changes = append(changes, AppChange{Type: ChangeChanged, ID: a.ID, App: &aCopy, Fields: fields})
		}
	}

	for _, a := range prev {
		if _, exists := currMap[a.ID]; !exists {
			changes = append(changes, AppChange{Type: ChangeRemoved, ID: a.ID})
		}
	}

	return changes
}

// windowFields compares two windows and returns the names of changed properties.
func windowFields(prev, curr Window) []string {
	var fields []string
	if prev.Position != curr.Position {
		fields = append(fields, FieldPosition)
	}
	if prev.Size != curr.Size {
		fields = append(fields, FieldSize)
	}
	if prev.Title != curr.Title {
		fields = append(fields, FieldTitle)
	}
	if prev.Minimized != curr.Minimized {
		fields = append(fields, FieldMinimized)
	}
	if prev.Fullscreen != curr.Fullscreen {
		fields = append(fields, FieldFullscreen)
	}
	return fields
}

// appFields compares two applications and returns the names of changed properties.
func appFields(prev, curr App) []string {
	var fields []string
	if prev.MainWindow != curr.MainWindow {
		fields = append(fields, FieldMainWindow)
	}
	if prev.FocusedWindow != curr.FocusedWindow {
		fields = append(fields, FieldFocusedWindow)
	}
	if prev.Frontmost != curr.Frontmost {
		fields = append(fields, FieldFrontmost)
	}
	if prev.Hidden != curr.Hidden {
		fields = append(fields, FieldHidden)
	}
	return fields
}
