package geometry

import "math"

const (
	// InscribedRatio scales the rectangle inscribed in a bubble's bounding
	// ellipse. The mathematical ceiling is 1/sqrt(2) (~0.707); 0.65 leaves a
	// margin against painting over the ellipse boundary.
	InscribedRatio = 0.65

	// OverlapThreshold is the minimum text/bubble overlap ratio for a text
	// region to be considered part of that bubble.
	OverlapThreshold = 0.5
)

// OverlapRatio returns area(a ∩ b) / area(a). Zero when a has no area or
// the boxes are disjoint.
func OverlapRatio(a, b BBox) float64 {
	areaA := a.Width() * a.Height()
	if areaA <= 0 {
		return 0
	}

	ix1 := math.Max(a.X1, b.X1)
	iy1 := math.Max(a.Y1, b.Y1)
	ix2 := math.Min(a.X2, b.X2)
	iy2 := math.Min(a.Y2, b.Y2)

	if ix1 >= ix2 || iy1 >= iy2 {
		return 0
	}
	return (ix2 - ix1) * (iy2 - iy1) / areaA
}

// ClipToBounds clamps every coordinate into [0,width] x [0,height].
// A box entirely outside the bounds collapses to zero area.
func ClipToBounds(b BBox, width, height int) BBox {
	w, h := float64(width), float64(height)
	return BBox{
		X1: math.Min(w, math.Max(0, b.X1)),
		Y1: math.Min(h, math.Max(0, b.Y1)),
		X2: math.Min(w, math.Max(0, b.X2)),
		Y2: math.Min(h, math.Max(0, b.Y2)),
	}
}

// InscribedRect returns the axis-aligned rectangle centered on the bubble
// with half extents scaled by ratio.
func InscribedRect(bubble BBox, ratio float64) BBox {
	cx, cy := bubble.Center()
	hw, hh := bubble.Width()/2, bubble.Height()/2
	return New(cx-hw*ratio, cy-hh*ratio, cx+hw*ratio, cy+hh*ratio)
}

// FindBubble returns the bubble with the highest overlap against text and
// whether any bubble exceeded OverlapThreshold.
func FindBubble(text BBox, bubbles []BBox) (BBox, bool) {
	var best BBox
	bestOverlap := 0.0

	for _, bubble := range bubbles {
		if overlap := OverlapRatio(text, bubble); overlap > bestOverlap {
			best, bestOverlap = bubble, overlap
		}
	}
	return best, bestOverlap > OverlapThreshold
}

// CalcRenderBBox returns the safe drawing area: the bubble's inscribed
// rectangle when a bubble exists, otherwise the inpaint box itself.
func CalcRenderBBox(bubble *BBox, inpaint BBox) BBox {
	if bubble != nil {
		return InscribedRect(*bubble, InscribedRatio)
	}
	return inpaint
}
