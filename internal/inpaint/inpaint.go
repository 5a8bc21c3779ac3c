// Package inpaint erases source text from a page. Bubble-interior text is
// filled with the sampled paper color; free-floating text goes to a neural
// inpainting backend. The routed inpainter dispatches between the two.
package inpaint

import (
	"context"
	"fmt"
	"image"

	"github.com/toonslate/toonslate-backend/internal/geometry"
	"github.com/toonslate/toonslate-backend/internal/region"
)

// InpaintingError wraps background-restoration failures: timeouts, HTTP
// errors, undecodable results.
type InpaintingError struct {
	Message string
	Err     error
}

func (e *InpaintingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("inpainting: %s: %v", e.Message, e.Err)
	}
	return "inpainting: " + e.Message
}

func (e *InpaintingError) Unwrap() error { return e.Err }

// BubbleCleaner erases text inside speech bubbles.
type BubbleCleaner interface {
	Clean(img *image.NRGBA, regions []region.TextRegion) (*image.NRGBA, []region.TextRegion)
}

// BackgroundRestorer erases free-floating text via neural inpainting.
type BackgroundRestorer interface {
	Restore(ctx context.Context, img *image.NRGBA, regions []region.TextRegion) (*image.NRGBA, []region.TextRegion, error)
	RestoreMask(ctx context.Context, img image.Image, mask *image.Gray) (image.Image, error)
}

// Inpainter is the full capability the pipeline and erase path consume.
type Inpainter interface {
	Inpaint(ctx context.Context, img *image.NRGBA, regions []region.TextRegion, bubbles []geometry.BBox) (*image.NRGBA, []region.TextRegion, error)
	InpaintMask(ctx context.Context, img image.Image, mask *image.Gray) (image.Image, error)
}
