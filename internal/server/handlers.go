package server

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/mj1618/deskmirror/internal/model"
	"github.com/mj1618/deskmirror/internal/output"
	"github.com/mj1618/deskmirror/internal/platform"
)

func (s *Server) registerTools() {
	s.mcp.AddTool(
		mcp.NewTool("list_windows",
			mcp.WithDescription("List the windows currently mirrored from the desktop, sorted by ID"),
			mcp.WithString("app", mcp.Description("Only windows of this application ID")),
			mcp.WithString("title", mcp.Description("Only windows whose title contains this text (case-insensitive)")),
		),
		s.handleListWindows,
	)

	s.mcp.AddTool(
		mcp.NewTool("list_apps",
			mcp.WithDescription("List running applications with their main/focused window and frontmost/hidden flags"),
		),
		s.handleListApps,
	)

	s.mcp.AddTool(
		mcp.NewTool("get_window",
			mcp.WithDescription("Get the mirrored properties of one window"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Window ID")),
		),
		s.handleGetWindow,
	)

	s.mcp.AddTool(
		mcp.NewTool("set_window",
			mcp.WithDescription("Move, resize, retitle, minimize or fullscreen a window. Waits for the desktop to confirm and returns the resulting window and change events. The desktop may adjust requested values (e.g. clamp a position to the screen)."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Window ID")),
			mcp.WithNumber("x", mcp.Description("New X position (requires y)")),
			mcp.WithNumber("y", mcp.Description("New Y position (requires x)")),
			mcp.WithNumber("width", mcp.Description("New width (requires height)")),
			mcp.WithNumber("height", mcp.Description("New height (requires width)")),
			mcp.WithString("title", mcp.Description("New title")),
			mcp.WithBoolean("minimized", mcp.Description("Minimize or restore")),
			mcp.WithBoolean("fullscreen", mcp.Description("Enter or leave fullscreen")),
		),
		s.handleSetWindow,
	)

	s.mcp.AddTool(
		mcp.NewTool("activate_app",
			mcp.WithDescription("Make an application frontmost and wait for the desktop to confirm"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Application ID")),
		),
		s.handleActivateApp,
	)

	s.mcp.AddTool(
		mcp.NewTool("recent_events",
			mcp.WithDescription("Return the most recent desktop change events, oldest first"),
			mcp.WithNumber("limit", mcp.Description("Max events to return (default 50, 0 = all kept)")),
			mcp.WithString("property", mcp.Description("Only changes of this property, e.g. title, position, frontmost")),
		),
		s.handleRecentEvents,
	)
}

// yamlResult serializes v to YAML for an MCP response.
func yamlResult(v interface{}) (*mcp.CallToolResult, error) {
	text, err := output.YAML(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleListWindows(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap := s.state.Snapshot()
	windows := model.FilterWindows(snap.Windows, request.GetString("app", ""), request.GetString("title", ""))
	if windows == nil {
		windows = []model.Window{}
	}
	return yamlResult(windows)
}

func (s *Server) handleListApps(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return yamlResult(s.state.Snapshot().Apps)
}

func (s *Server) handleGetWindow(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	w, ok := s.state.Window(platform.WindowID(id))
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("window %s not found", id)), nil
	}
	return yamlResult(w.Snapshot())
}

func (s *Server) handleSetWindow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	w, ok := s.state.Window(platform.WindowID(id))
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("window %s not found", id)), nil
	}

	args := request.GetArguments()
	has := func(key string) bool {
		_, ok := args[key]
		return ok
	}
	if has("x") != has("y") {
		return mcp.NewToolResultError("x and y must be given together"), nil
	}
	if has("width") != has("height") {
		return mcp.NewToolResultError("width and height must be given together"), nil
	}

	var writes []func()
	if has("x") {
		p := model.Point{X: request.GetInt("x", 0), Y: request.GetInt("y", 0)}
		writes = append(writes, func() { w.Position().Set(p) })
	}
	if has("width") {
		sz := model.Size{Width: request.GetInt("width", 0), Height: request.GetInt("height", 0)}
		writes = append(writes, func() { w.Size().Set(sz) })
	}
	if has("title") {
		title := request.GetString("title", "")
		writes = append(writes, func() { w.Title().Set(title) })
	}
	if has("minimized") {
		v := request.GetBool("minimized", false)
		writes = append(writes, func() { w.IsMinimized().Set(v) })
	}
	if has("fullscreen") {
		v := request.GetBool("fullscreen", false)
		writes = append(writes, func() { w.IsFullscreen().Set(v) })
	}
	if len(writes) == 0 {
		return mcp.NewToolResultError("nothing to set: give x/y, width/height, title, minimized or fullscreen"), nil
	}

	result := s.apply(ctx, writes)
	snap := w.Snapshot()
	result.Window = &snap
	if !w.IsValid() {
		result.OK = false
		result.Error = fmt.Sprintf("window %s was destroyed", id)
		return errorResult(result)
	}
	if !result.OK {
		return errorResult(result)
	}
	return yamlResult(result)
}

func (s *Server) handleActivateApp(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	a, ok := s.state.Application(platform.AppID(id))
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("application %s not found", id)), nil
	}

	front := s.state.FrontmostApplication()
	result := s.apply(ctx, []func(){func() { front.Set(a) }})
	snap := a.Snapshot()
	result.App = &snap
	if got := front.Get(); result.OK && !got.Equal(a) {
		result.OK = false
		result.Error = fmt.Sprintf("frontmost application is %s", got.ID())
	}
	if !result.OK {
		return errorResult(result)
	}
	return yamlResult(result)
}

func (s *Server) handleRecentEvents(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", 50)
	property := request.GetString("property", "")
	if property == "" {
		return yamlResult(s.events.Recent(limit))
	}
	if err := validProperty(property); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var events []output.EventRecord
	for _, e := range s.events.Recent(0) {
		if e.Property == property {
			events = append(events, e)
		}
	}
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	if events == nil {
		events = []output.EventRecord{}
	}
	return yamlResult(events)
}

// validProperty accepts any window or application property name.
func validProperty(name string) error {
	if _, err := platform.ParseWindowProperty(name); err == nil {
		return nil
	}
	if _, err := platform.ParseAppProperty(name); err != nil {
		return fmt.Errorf("unknown property %q", name)
	}
	return nil
}

// apply runs the writes and waits for the desktop to settle them, collecting
// the events published meanwhile.
func (s *Server) apply(ctx context.Context, writes []func()) output.SetResult {
	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	events, err := s.state.Apply(ctx, writes...)
	result := output.SetResult{OK: true}
	if err != nil {
		s.log.Warn("writes not settled", zap.Error(err))
		result.OK = false
		result.Error = err.Error()
	}
	now := time.Now()
	for _, e := range events {
		result.Events = append(result.Events, output.NewEventRecord(e, now))
	}
	return result
}

func errorResult(result output.SetResult) (*mcp.CallToolResult, error) {
	text, err := output.YAML(result)
	if err != nil {
		return mcp.NewToolResultError(result.Error), nil
	}
	return mcp.NewToolResultError(text), nil
}
