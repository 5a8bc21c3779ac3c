package inpaint

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/toonslate/toonslate-backend/internal/geometry"
	"github.com/toonslate/toonslate-backend/internal/region"
)

const (
	// paddingRatio expands the text bbox before filling so stroke
	// antialiasing is covered too.
	paddingRatio = 0.2

	// brightThreshold selects "paper color" pixels when sampling the fill
	// color from the edges of the inpaint box.
	brightThreshold = 180

	// edgeStripWidth is the sampling strip along each edge of the box.
	edgeStripWidth = 5

	// minBrightSamples is how many bright pixels must survive the filter
	// before we trust them over the full edge sample.
	minBrightSamples = 10
)

// SolidFillCleaner erases bubble text by sampling the background color
// around the text and filling with it. No network calls.
type SolidFillCleaner struct{}

// Clean fills each bubble region's inpaint box with the sampled color.
// The input image is not modified; regions without a bubble are skipped.
func (SolidFillCleaner) Clean(img *image.NRGBA, regions []region.TextRegion) (*image.NRGBA, []region.TextRegion) {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()

	result := imaging.Clone(img)
	updated := make([]region.TextRegion, 0, len(regions))

	for _, r := range regions {
		if r.BubbleBBox == nil {
			continue
		}

		inpaintBBox := calcBubbleInpaintBBox(r.TextBBox, *r.BubbleBBox, w, h)
		renderBBox := geometry.CalcRenderBBox(r.BubbleBBox, inpaintBBox)
		fill := extractBackgroundColor(img, inpaintBBox)

		x1, y1, x2, y2 := inpaintBBox.ToTuple()
		draw.Draw(result, image.Rect(x1, y1, x2, y2), image.NewUniform(fill), image.Point{}, draw.Src)

		ib, rb := inpaintBBox, renderBBox
		updated = append(updated, region.TextRegion{
			Index:       r.Index,
			TextBBox:    r.TextBBox,
			BubbleBBox:  r.BubbleBBox,
			InpaintBBox: &ib,
			RenderBBox:  &rb,
		})
	}
	return result, updated
}

// calcBubbleInpaintBBox expands the text box by 20% of its own size,
// bounds it by the bubble's inscribed rectangle (so the bubble outline is
// never painted over) and clips to the image.
func calcBubbleInpaintBBox(text, bubble geometry.BBox, w, h int) geometry.BBox {
	inscribed := geometry.InscribedRect(bubble, geometry.InscribedRatio)
	padX := text.Width() * paddingRatio
	padY := text.Height() * paddingRatio

	bbox := geometry.New(
		math.Max(text.X1-padX, inscribed.X1),
		math.Max(text.Y1-padY, inscribed.Y1),
		math.Min(text.X2+padX, inscribed.X2),
		math.Min(text.Y2+padY, inscribed.Y2),
	)
	return geometry.ClipToBounds(bbox, w, h)
}

// extractBackgroundColor samples a strip along the four edges of the box,
// keeps pixels brighter than the paper threshold and takes their median.
// Degenerate boxes fall back to white.
func extractBackgroundColor(img *image.NRGBA, bbox geometry.BBox) color.NRGBA {
	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}

	x1, y1, x2, y2 := bbox.ToTuple()
	w, h := x2-x1, y2-y1
	if w <= 0 || h <= 0 {
		return white
	}

	border := min(edgeStripWidth, h/4, w/4)
	if border < 1 {
		return white
	}

	var edges []color.NRGBA
	collect := func(px, py int) {
		edges = append(edges, img.NRGBAAt(px, py))
	}
	for y := y1; y < y1+border; y++ {
		for x := x1; x < x2; x++ {
			collect(x, y)
		}
	}
	for y := y2 - border; y < y2; y++ {
		for x := x1; x < x2; x++ {
			collect(x, y)
		}
	}
	for y := y1; y < y2; y++ {
		for x := x1; x < x1+border; x++ {
			collect(x, y)
		}
		for x := x2 - border; x < x2; x++ {
			collect(x, y)
		}
	}

	var bright []color.NRGBA
	for _, c := range edges {
		if (int(c.R)+int(c.G)+int(c.B))/3 > brightThreshold {
			bright = append(bright, c)
		}
	}

	sample := edges
	if len(bright) > minBrightSamples {
		sample = bright
	}
	return medianColor(sample, white)
}

// medianColor takes the per-channel median of the sample.
func medianColor(sample []color.NRGBA, fallback color.NRGBA) color.NRGBA {
	if len(sample) == 0 {
		return fallback
	}

	channel := func(pick func(color.NRGBA) uint8) uint8 {
		vals := make([]int, len(sample))
		for i, c := range sample {
			vals[i] = int(pick(c))
		}
		sort.Ints(vals)
		mid := len(vals) / 2
		if len(vals)%2 == 0 {
			return uint8((vals[mid-1] + vals[mid]) / 2)
		}
		return uint8(vals[mid])
	}

	return color.NRGBA{
		R: channel(func(c color.NRGBA) uint8 { return c.R }),
		G: channel(func(c color.NRGBA) uint8 { return c.G }),
		B: channel(func(c color.NRGBA) uint8 { return c.B }),
		A: 255,
	}
}

var _ BubbleCleaner = SolidFillCleaner{}
