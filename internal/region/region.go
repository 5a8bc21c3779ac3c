// Package region models detected text regions and their classification
// into bubble-bound vs free-floating text.
package region

import "github.com/toonslate/toonslate-backend/internal/geometry"

// TextRegion carries one detected text area through the pipeline. Index is
// the stable position in the original detection output and is what links a
// region to its translation. The optional boxes are filled in by later
// stages: BubbleBBox by classification, InpaintBBox and RenderBBox by
// inpainting.
type TextRegion struct {
	Index       int
	TextBBox    geometry.BBox
	BubbleBBox  *geometry.BBox
	InpaintBBox *geometry.BBox
	RenderBBox  *geometry.BBox
}

// Classifier splits text regions into bubble regions and free text.
type Classifier struct{}

// Classify returns (bubbleRegions, freeRegions). Regions matched to a
// bubble get a copy with BubbleBBox set; the rest are copied without one.
// Input order is preserved within each bucket and inputs are not mutated.
func (Classifier) Classify(regions []TextRegion, bubbles []geometry.BBox) ([]TextRegion, []TextRegion) {
	var bubbleRegions, freeRegions []TextRegion

	for _, r := range regions {
		if bubble, ok := geometry.FindBubble(r.TextBBox, bubbles); ok {
			b := bubble
			bubbleRegions = append(bubbleRegions, TextRegion{
				Index:      r.Index,
				TextBBox:   r.TextBBox,
				BubbleBBox: &b,
			})
			continue
		}
		freeRegions = append(freeRegions, TextRegion{
			Index:    r.Index,
			TextBBox: r.TextBBox,
		})
	}
	return bubbleRegions, freeRegions
}
