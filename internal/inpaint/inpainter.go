package inpaint

import (
	"context"
	"image"
	"sort"

	"github.com/toonslate/toonslate-backend/internal/geometry"
	"github.com/toonslate/toonslate-backend/internal/region"
)

// RoutedInpainter classifies text regions and delegates each bucket to
// the matching backend: bubble text to the solid-fill cleaner, free text
// to the neural restorer.
type RoutedInpainter struct {
	classifier region.Classifier
	cleaner    BubbleCleaner
	restorer   BackgroundRestorer
}

// NewRoutedInpainter wires the dispatch.
func NewRoutedInpainter(cleaner BubbleCleaner, restorer BackgroundRestorer) *RoutedInpainter {
	return &RoutedInpainter{cleaner: cleaner, restorer: restorer}
}

// Inpaint cleans bubbles first, then restores the background of the
// partially cleaned image, and returns the merged region list sorted by
// original detection index.
func (ri *RoutedInpainter) Inpaint(ctx context.Context, img *image.NRGBA, regions []region.TextRegion, bubbles []geometry.BBox) (*image.NRGBA, []region.TextRegion, error) {
	bubbleRegions, freeRegions := ri.classifier.Classify(regions, bubbles)

	cleaned, bubbleUpdated := ri.cleaner.Clean(img, bubbleRegions)

	restored, freeUpdated, err := ri.restorer.Restore(ctx, cleaned, freeRegions)
	if err != nil {
		return nil, nil, err
	}

	all := append(bubbleUpdated, freeUpdated...)
	sort.Slice(all, func(i, j int) bool { return all[i].Index < all[j].Index })

	return restored, all, nil
}

// InpaintMask delegates a caller-supplied mask straight to the restorer.
func (ri *RoutedInpainter) InpaintMask(ctx context.Context, img image.Image, mask *image.Gray) (image.Image, error) {
	return ri.restorer.RestoreMask(ctx, img, mask)
}

var _ Inpainter = (*RoutedInpainter)(nil)
