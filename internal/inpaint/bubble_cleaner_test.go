package inpaint

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toonslate/toonslate-backend/internal/geometry"
	"github.com/toonslate/toonslate-backend/internal/region"
)

// newPage builds a page with the given background color and black text
// pixels inside the text box.
func newPage(w, h int, bg color.NRGBA, text geometry.BBox) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	x1, y1, x2, y2 := text.ToTuple()
	draw.Draw(img, image.Rect(x1, y1, x2, y2),
		image.NewUniform(color.NRGBA{A: 255}), image.Point{}, draw.Src)
	return img
}

func TestSolidFillCleaner_Clean(t *testing.T) {
	var cleaner SolidFillCleaner
	paper := color.NRGBA{R: 250, G: 248, B: 245, A: 255}

	bubble := geometry.New(20, 20, 180, 180)
	text := geometry.New(80, 80, 120, 120)
	regions := []region.TextRegion{{Index: 0, TextBBox: text, BubbleBBox: &bubble}}

	img := newPage(200, 200, paper, text)
	result, updated := cleaner.Clean(img, regions)

	t.Run("text pixels replaced with paper color", func(t *testing.T) {
		got := result.NRGBAAt(100, 100)
		assert.InDelta(t, paper.R, got.R, 3)
		assert.InDelta(t, paper.G, got.G, 3)
		assert.InDelta(t, paper.B, got.B, 3)
	})

	t.Run("input image untouched", func(t *testing.T) {
		assert.Equal(t, uint8(0), img.NRGBAAt(100, 100).R)
	})

	t.Run("inpaint bbox stays inside the inscribed rect", func(t *testing.T) {
		require.Len(t, updated, 1)
		require.NotNil(t, updated[0].InpaintBBox)

		inscribed := geometry.InscribedRect(bubble, geometry.InscribedRatio)
		ib := *updated[0].InpaintBBox
		assert.GreaterOrEqual(t, ib.X1, inscribed.X1)
		assert.GreaterOrEqual(t, ib.Y1, inscribed.Y1)
		assert.LessOrEqual(t, ib.X2, inscribed.X2)
		assert.LessOrEqual(t, ib.Y2, inscribed.Y2)
	})

	t.Run("render bbox is the inscribed rect", func(t *testing.T) {
		require.NotNil(t, updated[0].RenderBBox)
		assert.Equal(t, geometry.InscribedRect(bubble, geometry.InscribedRatio), *updated[0].RenderBBox)
	})

	t.Run("regions without a bubble are skipped", func(t *testing.T) {
		_, updated := cleaner.Clean(img, []region.TextRegion{{Index: 0, TextBBox: text}})
		assert.Empty(t, updated)
	})
}

func TestExtractBackgroundColor(t *testing.T) {
	paper := color.NRGBA{R: 240, G: 240, B: 240, A: 255}

	t.Run("picks the bright paper color around dark text", func(t *testing.T) {
		text := geometry.New(40, 40, 80, 80)
		img := newPage(120, 120, paper, text)

		// Sample a box slightly larger than the text so the edges see paper.
		got := extractBackgroundColor(img, geometry.New(30, 30, 90, 90))
		assert.InDelta(t, paper.R, got.R, 3)
	})

	t.Run("dark surroundings fall back to edge median", func(t *testing.T) {
		dark := color.NRGBA{R: 40, G: 40, B: 40, A: 255}
		img := newPage(120, 120, dark, geometry.New(40, 40, 80, 80))

		got := extractBackgroundColor(img, geometry.New(30, 30, 90, 90))
		// No bright pixels survive; median of the dark edge sample.
		assert.InDelta(t, dark.R, got.R, 3)
	})

	t.Run("degenerate box is white", func(t *testing.T) {
		img := newPage(120, 120, paper, geometry.New(0, 0, 1, 1))
		got := extractBackgroundColor(img, geometry.New(10, 10, 12, 12))
		assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, got)
	})

	t.Run("zero-area box is white", func(t *testing.T) {
		img := newPage(120, 120, paper, geometry.New(0, 0, 1, 1))
		got := extractBackgroundColor(img, geometry.New(10, 10, 10, 10))
		assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, got)
	})
}

func TestMedianColor(t *testing.T) {
	fallback := color.NRGBA{R: 255, G: 255, B: 255, A: 255}

	t.Run("odd count takes the middle", func(t *testing.T) {
		sample := []color.NRGBA{
			{R: 10, G: 10, B: 10, A: 255},
			{R: 20, G: 20, B: 20, A: 255},
			{R: 200, G: 200, B: 200, A: 255},
		}
		got := medianColor(sample, fallback)
		assert.Equal(t, uint8(20), got.R)
	})

	t.Run("empty sample uses fallback", func(t *testing.T) {
		assert.Equal(t, fallback, medianColor(nil, fallback))
	})
}
