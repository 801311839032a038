package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mj1618/deskmirror/internal/output"
	"github.com/mj1618/deskmirror/internal/render"
)

// LayoutResult is the output of a successful layout render.
type LayoutResult struct {
	OK      bool   `yaml:"ok"      json:"ok"`
	File    string `yaml:"file"    json:"file"`
	Width   int    `yaml:"width"   json:"width"`
	Height  int    `yaml:"height"  json:"height"`
	Windows int    `yaml:"windows" json:"windows"`
}

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Render mirrored windows as a PNG wireframe",
	Long: `Draw every visible window of the mirror as a labelled rectangle on a PNG.

The focused window is highlighted and painted on top; minimized windows are
skipped. The canvas is the simulated screen for the memory and poll backends
and the extent of all windows otherwise.`,
	RunE: runLayout,
}

func init() {
	rootCmd.AddCommand(layoutCmd)
	layoutCmd.Flags().String("out", "layout.png", "Output PNG file")
	layoutCmd.Flags().Float64("scale", 0.5, "Pixels per screen point")
}

func runLayout(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("out")
	scale, _ := cmd.Flags().GetFloat64("scale")
	if scale <= 0 || scale > 4 {
		return fmt.Errorf("--scale must be in (0, 4], got %g", scale)
	}

	s, err := openSession(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	snap := s.state.Snapshot()
	img, err := render.Layout(snap, render.Options{Screen: s.screen, Scale: scale})
	if err != nil {
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	if err := render.WritePNG(f, img); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	return output.Print(LayoutResult{
		OK:      true,
		File:    out,
		Width:   img.Bounds().Dx(),
		Height:  img.Bounds().Dy(),
		Windows: len(snap.Windows),
	})
}
