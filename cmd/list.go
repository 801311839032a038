package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/mj1618/deskmirror/internal/model"
	"github.com/mj1618/deskmirror/internal/output"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List mirrored windows and applications",
	Long:  "List open windows with their application, title, position and size, or running applications with --apps.",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().Bool("apps", false, "List running applications")
	listCmd.Flags().String("app", "", "Filter windows by application ID")
	listCmd.Flags().String("title", "", "Filter windows by title substring (case-insensitive)")
	listCmd.Flags().Bool("pretty", false, "Pretty-print output (no-op for YAML)")
}

func runList(cmd *cobra.Command, args []string) error {
	apps, _ := cmd.Flags().GetBool("apps")
	app, _ := cmd.Flags().GetString("app")
	title, _ := cmd.Flags().GetString("title")

	s, err := openSession(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	snap := s.state.Snapshot()
	result := output.ListResult{
		TS:        time.Now().Unix(),
		Frontmost: snap.Frontmost,
	}
	if apps {
		result.Apps = snap.Apps
	} else {
		result.Windows = model.FilterWindows(snap.Windows, app, title)
	}
	return output.Print(result)
}
