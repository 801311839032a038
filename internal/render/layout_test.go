package render

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mj1618/deskmirror/internal/model"
)

func snapshot() model.Snapshot {
	return model.Snapshot{
		Windows: []model.Window{
			{ID: "W1", Title: "Terminal", Position: model.Point{X: 0, Y: 0}, Size: model.Size{Width: 400, Height: 300}},
			{ID: "W2", Title: "Docs", Position: model.Point{X: 200, Y: 100}, Size: model.Size{Width: 400, Height: 300}, Focused: true},
			{ID: "W3", Position: model.Point{X: 700, Y: 500}, Size: model.Size{Width: 100, Height: 100}, Minimized: true},
		},
	}
}

func TestExtent(t *testing.T) {
	assert.Equal(t, model.Rect{Width: 800, Height: 600}, Extent(snapshot().Windows))
	assert.True(t, Extent(nil).Empty())
}

func TestLayoutSizeFollowsScreenAndScale(t *testing.T) {
	img, err := Layout(snapshot(), Options{Screen: model.Rect{Width: 1000, Height: 800}, Scale: 0.25})
	require.NoError(t, err)
	assert.Equal(t, 250, img.Bounds().Dx())
	assert.Equal(t, 200, img.Bounds().Dy())
}

func TestLayoutPaintsFocusedWindowOnTop(t *testing.T) {
	img, err := Layout(snapshot(), Options{Scale: 1})
	require.NoError(t, err)

	// Inside both W1 and W2, away from borders and labels.
	assert.Equal(t, focusedColor, img.RGBAAt(300, 250))
	// Inside W1 only.
	assert.Equal(t, windowColor, img.RGBAAt(100, 250))
	// W3 is minimized.
	assert.Equal(t, backgroundColor, img.RGBAAt(750, 550))
	// Border.
	assert.Equal(t, borderColor, img.RGBAAt(0, 200))
}

func TestLayoutRejectsEmpty(t *testing.T) {
	_, err := Layout(model.Snapshot{}, Options{})
	assert.Error(t, err)
}

func TestWritePNG(t *testing.T) {
	img, err := Layout(snapshot(), Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, img))
	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
}
