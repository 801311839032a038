// Package render draws mirrored desktop state as a PNG wireframe.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/mj1618/deskmirror/internal/model"
)

var (
	backgroundColor = color.RGBA{R: 32, G: 34, B: 40, A: 255}
	windowColor     = color.RGBA{R: 70, G: 110, B: 170, A: 255}
	focusedColor    = color.RGBA{R: 220, G: 160, B: 40, A: 255}
	borderColor     = color.RGBA{R: 230, G: 230, B: 230, A: 255}
	textColor       = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	outlineColor    = color.RGBA{R: 0, G: 0, B: 0, A: 200}
)

// Options controls how a layout is drawn.
type Options struct {
	// Screen is the area to draw, in points. When empty, the union of the
	// window frames is used.
	Screen model.Rect
	// Scale converts points to pixels. Zero means 0.5.
	Scale float64
}

// Extent returns the smallest rectangle containing every window frame, with
// its origin at or above (0, 0).
func Extent(windows []model.Window) model.Rect {
	var maxX, maxY int
	for _, w := range windows {
		maxX = max(maxX, w.Position.X+w.Size.Width)
		maxY = max(maxY, w.Position.Y+w.Size.Height)
	}
	return model.Rect{Width: maxX, Height: maxY}
}

// Layout draws every visible window in snap. Minimized windows and windows
// entirely off screen are skipped; windows are painted in snapshot order with the focused window last.
func Layout(snap model.Snapshot, opts Options) (*image.RGBA, error) {
	screen := opts.Screen
	if screen.Empty() {
		screen = Extent(snap.Windows)
	}
	if screen.Empty() {
		return nil, fmt.Errorf("nothing to draw: no screen size and no windows")
	}
	scale := opts.Scale
	if scale <= 0 {
		scale = 0.5
	}

	img := image.NewRGBA(image.Rect(0, 0, px(screen.Width, scale), px(screen.Height, scale)))
	draw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)

	bounds := [4]int{screen.X, screen.Y, screen.Width, screen.Height}
	var focused *model.Window
	for i := range snap.Windows {
		w := &snap.Windows[i]
		if w.Minimized || !model.Intersects(w.Bounds(), bounds) {
			continue
		}
		if w.Focused {
			focused = w
			continue
		}
		drawWindow(img, *w, screen, scale, windowColor)
	}
	if focused != nil {
		drawWindow(img, *focused, screen, scale, focusedColor)
	}
	return img, nil
}

// WritePNG encodes img as PNG.
func WritePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("png encode: %w", err)
	}
	return nil
}

func px(v int, scale float64) int {
	return int(float64(v) * scale)
}

func drawWindow(img *image.RGBA, w model.Window, screen model.Rect, scale float64, fill color.Color) {
	r := image.Rect(
		px(w.Position.X-screen.X, scale),
		px(w.Position.Y-screen.Y, scale),
		px(w.Position.X-screen.X+w.Size.Width, scale),
		px(w.Position.Y-screen.Y+w.Size.Height, scale),
	).Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(img, r, image.NewUniform(fill), image.Point{}, draw.Over)
	drawRectangle(img, r, borderColor)

	label := w.ID
	if w.Title != "" {
		label += " " + w.Title
	}
	drawTextWithOutline(img, label, r.Min.X+4, r.Min.Y+14)
}

func drawRectangle(img *image.RGBA, r image.Rectangle, c color.Color) {
	for x := r.Min.X; x < r.Max.X; x++ {
		img.Set(x, r.Min.Y, c)
		img.Set(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.Set(r.Min.X, y, c)
		img.Set(r.Max.X-1, y, c)
	}
}

// drawTextWithOutline draws text with its baseline at (x, y). Pixels outside
// img are clipped by the drawer.
func drawTextWithOutline(img *image.RGBA, text string, x, y int) {
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			drawText(img, text, x+dx, y+dy, outlineColor)
		}
	}
	drawText(img, text, x, y, textColor)
}

func drawText(img *image.RGBA, text string, x, y int, c color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
