package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mj1618/deskmirror/internal/model"
	"github.com/mj1618/deskmirror/internal/output"
	"github.com/mj1618/deskmirror/internal/platform"
)

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Change a window's position, size, title, or state",
	Long: `Write one or more properties of a window and wait for the desktop to settle them.

The mirror updates optimistically, sends the writes to the backend, and
reports the values the desktop actually applied. The desktop may adjust a
request: a position that would push the window off screen is clamped, for
example, and the result shows the clamped value.

Examples:
  deskmirror set --window terminal-1 --x 100 --y 80
  deskmirror set --window finder-1 --width 800 --height 600 --title Inbox
  deskmirror set --window notes-1 --minimized=false`,
	RunE: runSet,
}

func init() {
	rootCmd.AddCommand(setCmd)
	setCmd.Flags().String("window", "", "Window ID (required)")
	setCmd.Flags().Int("x", 0, "New X position (with --y)")
	setCmd.Flags().Int("y", 0, "New Y position (with --x)")
	setCmd.Flags().Int("width", 0, "New width (with --height)")
	setCmd.Flags().Int("height", 0, "New height (with --width)")
	setCmd.Flags().String("title", "", "New title")
	setCmd.Flags().Bool("minimized", false, "Minimize (true) or restore (false)")
	setCmd.Flags().Bool("fullscreen", false, "Enter (true) or leave (false) fullscreen")
	setCmd.Flags().Duration("timeout", 3*time.Second, "How long to wait for the desktop to confirm")
	setCmd.Flags().Bool("pretty", false, "Pretty-print JSON output")
}

func runSet(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	id, _ := flags.GetString("window")
	if id == "" {
		return fmt.Errorf("--window is required")
	}
	if flags.Changed("x") != flags.Changed("y") {
		return fmt.Errorf("--x and --y must be given together")
	}
	if flags.Changed("width") != flags.Changed("height") {
		return fmt.Errorf("--width and --height must be given together")
	}
	timeout, _ := flags.GetDuration("timeout")

	s, err := openSession(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	w, ok := s.state.Window(platform.WindowID(id))
	if !ok {
		return fmt.Errorf("window %s not found", id)
	}

	var writes []func()
	if flags.Changed("x") {
		x, _ := flags.GetInt("x")
		y, _ := flags.GetInt("y")
		writes = append(writes, func() { w.Position().Set(model.Point{X: x, Y: y}) })
	}
	if flags.Changed("width") {
		width, _ := flags.GetInt("width")
		height, _ := flags.GetInt("height")
		writes = append(writes, func() { w.Size().Set(model.Size{Width: width, Height: height}) })
	}
	if flags.Changed("title") {
		title, _ := flags.GetString("title")
		writes = append(writes, func() { w.Title().Set(title) })
	}
	if flags.Changed("minimized") {
		v, _ := flags.GetBool("minimized")
		writes = append(writes, func() { w.IsMinimized().Set(v) })
	}
	if flags.Changed("fullscreen") {
		v, _ := flags.GetBool("fullscreen")
		writes = append(writes, func() { w.IsFullscreen().Set(v) })
	}
	if len(writes) == 0 {
		return fmt.Errorf("nothing to set: give --x/--y, --width/--height, --title, --minimized or --fullscreen")
	}

	result := applyWrites(cmd, s, writes, timeout)
	snap := w.Snapshot()
	result.Window = &snap
	if result.OK && !w.IsValid() {
		result.OK = false
		result.Error = fmt.Sprintf("window %s was destroyed", id)
	}
	if err := output.Print(result); err != nil {
		return err
	}
	if !result.OK {
		return fmt.Errorf("%s", result.Error)
	}
	return nil
}

// applyWrites runs writes, waits for them to settle, and returns a result
// holding the events published meanwhile.
func applyWrites(cmd *cobra.Command, s *session, writes []func(), timeout time.Duration) output.SetResult {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	events, err := s.state.Apply(ctx, writes...)
	result := output.SetResult{OK: true}
	if err != nil {
		result.OK = false
		result.Error = fmt.Sprintf("writes not confirmed: %v", err)
	}
	now := time.Now()
	for _, e := range events {
		result.Events = append(result.Events, output.NewEventRecord(e, now))
	}
	return result
}
