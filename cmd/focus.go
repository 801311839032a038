package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mj1618/deskmirror/internal/output"
	"github.com/mj1618/deskmirror/internal/platform"
)

var focusCmd = &cobra.Command{
	Use:   "focus",
	Short: "Bring an application to the foreground",
	Long:  "Make an application frontmost and wait for the desktop to confirm the switch.",
	RunE:  runFocus,
}

func init() {
	rootCmd.AddCommand(focusCmd)
	focusCmd.Flags().String("app", "", "Application ID (required)")
	focusCmd.Flags().Duration("timeout", 3*time.Second, "How long to wait for the desktop to confirm")
}

func runFocus(cmd *cobra.Command, args []string) error {
	id, _ := cmd.Flags().GetString("app")
	if id == "" {
		return fmt.Errorf("--app is required")
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")

	s, err := openSession(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	a, ok := s.state.Application(platform.AppID(id))
	if !ok {
		return fmt.Errorf("application %s not found", id)
	}

	front := s.state.FrontmostApplication()
	result := applyWrites(cmd, s, []func(){func() { front.Set(a) }}, timeout)
	snap := a.Snapshot()
	result.App = &snap
	if got := front.Get(); result.OK && !got.Equal(a) {
		result.OK = false
		result.Error = fmt.Sprintf("frontmost application is %s", got.ID())
	}
	if err := output.Print(result); err != nil {
		return err
	}
	if !result.OK {
		return fmt.Errorf("%s", result.Error)
	}
	return nil
}
