// Package render draws translated text into the safe area of each region.
// Font size descends until the wrapped block fits; the face for each size
// is cached because face construction is not cheap.
package render

import (
	"image"
	"image/color"
	"os"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/toonslate/toonslate-backend/internal/region"
	"github.com/toonslate/toonslate-backend/internal/translation"
)

// fontPaths is tried in order; the bundled Go Regular face is the fallback
// when none of them exists on the host.
var fontPaths = []string{
	"/System/Library/Fonts/Supplemental/Arial.ttf",
	"/System/Library/Fonts/Helvetica.ttc",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
	"C:/Windows/Fonts/arial.ttf",
}

const (
	maxFontSize = 40
	minFontSize = 8

	// charSample estimates average glyph width for the wrap-column count.
	charSample = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// wrapRatio of the box width is the wrap target; fillRatio is the
	// acceptance bound for the measured block; forceWrapRatio bounds the
	// character-level fallback.
	wrapRatio      = 0.8
	fillRatio      = 0.95
	forceWrapRatio = 0.9

	// Block height is measured with blockSpacing but drawn with
	// lineSpacing, leaving a little slack inside the box.
	blockSpacing = 1.3
	lineSpacing  = 1.4

	minBoxDim = 10
)

// Renderer owns the parsed font and a face cache keyed by point size.
type Renderer struct {
	font     *opentype.Font
	fallback font.Face
	logger   *zap.Logger

	mu    sync.Mutex
	faces map[int]font.Face
}

// New loads the first available system font, falling back to the bundled
// Go Regular face.
func New(logger *zap.Logger) (*Renderer, error) {
	parsed, path := loadSystemFont()
	if parsed == nil {
		var err error
		parsed, err = opentype.Parse(goregular.TTF)
		if err != nil {
			return nil, err
		}
		path = "goregular (bundled)"
	}
	logger.Info("renderer font loaded", zap.String("font", path))

	fallback, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    minFontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}

	return &Renderer{
		font:     parsed,
		fallback: fallback,
		logger:   logger,
		faces:    make(map[int]font.Face),
	}, nil
}

func loadSystemFont() (*opentype.Font, string) {
	for _, path := range fontPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		// ParseCollection handles both single .ttf files and .ttc
		// collections; the first fonte wins.
		coll, err := opentype.ParseCollection(data)
		if err != nil {
			continue
		}
		f, err := coll.Font(0)
		if err != nil {
			continue
		}
		return f, path
	}
	return nil, ""
}

func (r *Renderer) face(size int) font.Face {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.faces[size]; ok {
		return f
	}
	f, err := opentype.NewFace(r.font, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		// NewFace only fails on absurd options; reuse the smallest
		// face rather than dropping the region.
		r.logger.Warn("face construction failed", zap.Int("size", size), zap.Error(err))
		return r.fallback
	}
	r.faces[size] = f
	return f
}

// Render draws each translated string into its region's render box. The
// input image is not modified. Regions without a translation or without a
// render box are left untouched.
func (r *Renderer) Render(img *image.NRGBA, regions []region.TextRegion, translations []translation.Result) *image.NRGBA {
	result := imaging.Clone(img)

	byIndex := make(map[int]string, len(translations))
	for _, t := range translations {
		byIndex[t.Index] = t.Translated
	}

	for _, reg := range regions {
		text := strings.TrimSpace(byIndex[reg.Index])
		if text == "" || reg.RenderBBox == nil {
			continue
		}
		x1, y1, x2, y2 := reg.RenderBBox.ToTuple()
		r.renderInBox(result, text, x1, y1, x2, y2)
	}

	r.logger.Debug("rendering complete", zap.Int("regions", len(regions)))
	return result
}

func (r *Renderer) renderInBox(dst *image.NRGBA, text string, x1, y1, x2, y2 int) {
	w, h := x2-x1, y2-y1
	if w < minBoxDim || h < minBoxDim {
		return
	}

	face, size, lines := r.fitText(text, w, h)

	lineHeight := float64(size) * lineSpacing
	totalHeight := float64(len(lines)) * lineHeight
	startY := float64(y1) + (float64(h)-totalHeight)/2
	ascent := face.Metrics().Ascent

	for i, line := range lines {
		lineWidth := font.MeasureString(face, line).Ceil()
		x := x1 + (w-lineWidth)/2
		top := startY + float64(i)*lineHeight

		d := &font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(color.Black),
			Face: face,
			Dot: fixed.Point26_6{
				X: fixed.I(x),
				Y: fixed.I(int(top)) + ascent,
			},
		}
		d.DrawString(line)
	}
}

// fitText walks sizes from min(h/2, 40) down to 8 and returns the first
// whose wrapped block fits; otherwise character-wraps at the minimum size.
func (r *Renderer) fitText(text string, w, h int) (font.Face, int, []string) {
	maxSize := min(h/2, maxFontSize)

	for size := maxSize; size >= minFontSize; size-- {
		face := r.face(size)
		lines := wrapText(text, w, face)
		if blockFits(lines, w, h, size, face) {
			return face, size, lines
		}
	}

	face := r.face(minFontSize)
	return face, minFontSize, forceWrap(text, w, face)
}

// wrapText word-wraps to a column count derived from the average glyph
// width of the sample string.
func wrapText(text string, boxWidth int, face font.Face) []string {
	sampleWidth := font.MeasureString(face, charSample)
	avgCharWidth := float64(sampleWidth) / 64 / float64(len(charSample))
	cols := charsPerLine(boxWidth, avgCharWidth)

	var lines []string
	var current []rune
	for _, word := range strings.Fields(text) {
		runes := []rune(word)
		switch {
		case len(current) == 0:
			current = runes
		case len(current)+1+len(runes) <= cols:
			current = append(append(current, ' '), runes...)
		default:
			lines = append(lines, string(current))
			current = runes
		}
		// A single word longer than the column count gets hard-split.
		for len(current) > cols {
			lines = append(lines, string(current[:cols]))
			current = current[cols:]
		}
	}
	if len(current) > 0 {
		lines = append(lines, string(current))
	}
	if len(lines) == 0 {
		lines = []string{""}
	}
	return lines
}

func charsPerLine(boxWidth int, avgCharWidth float64) int {
	if avgCharWidth <= 0 {
		return 1
	}
	return max(1, int(float64(boxWidth)*wrapRatio/avgCharWidth))
}

// blockFits accepts when the measured block stays within 95% of the box in
// both dimensions.
func blockFits(lines []string, boxWidth, boxHeight, size int, face font.Face) bool {
	blockHeight := float64(len(lines)) * float64(size) * blockSpacing

	var maxLine int
	for _, line := range lines {
		if lw := font.MeasureString(face, line).Ceil(); lw > maxLine {
			maxLine = lw
		}
	}
	return blockHeight <= float64(boxHeight)*fillRatio &&
		float64(maxLine) <= float64(boxWidth)*fillRatio
}

// forceWrap breaks at the character level whenever the next rune would
// push the line past 90% of the box width.
func forceWrap(text string, boxWidth int, face font.Face) []string {
	limit := fixed.Int26_6(float64(boxWidth) * forceWrapRatio * 64)

	var lines []string
	var current []rune
	for _, ch := range text {
		test := append(current, ch)
		if font.MeasureString(face, string(test)) > limit && len(current) > 0 {
			lines = append(lines, string(current))
			current = []rune{ch}
			continue
		}
		current = test
	}
	if len(current) > 0 {
		lines = append(lines, string(current))
	}
	return lines
}
