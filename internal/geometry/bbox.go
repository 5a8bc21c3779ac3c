// Package geometry holds the bounding-box arithmetic shared by detection,
// inpainting and rendering. Boxes are float-valued and normalized at
// construction: coordinates are sorted so x1 <= x2 and y1 <= y2, and
// negative values clamp to zero.
package geometry

import (
	"fmt"
	"math"
)

// BBox is an axis-aligned box (x1,y1) top-left, (x2,y2) bottom-right.
type BBox struct {
	X1, Y1, X2, Y2 float64
}

// New builds a normalized BBox: inverted coordinates are sorted,
// negatives clamp to 0.
func New(x1, y1, x2, y2 float64) BBox {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return BBox{
		X1: math.Max(0, x1),
		Y1: math.Max(0, y1),
		X2: math.Max(0, x2),
		Y2: math.Max(0, y2),
	}
}

// FromList builds a BBox from a 4-element coordinate slice.
// NaN/Inf coordinates and wrong arity are rejected.
func FromList(coords []float64) (BBox, error) {
	if len(coords) != 4 {
		return BBox{}, fmt.Errorf("bbox requires 4 coordinates, got %d", len(coords))
	}
	for i, c := range coords {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return BBox{}, fmt.Errorf("bbox coordinate %d is NaN or Inf", i)
		}
	}
	return New(coords[0], coords[1], coords[2], coords[3]), nil
}

// ToList returns the coordinates as a slice.
func (b BBox) ToList() []float64 {
	return []float64{b.X1, b.Y1, b.X2, b.Y2}
}

// ToTuple returns rounded integer coordinates for pixel indexing.
func (b BBox) ToTuple() (int, int, int, int) {
	return int(math.Round(b.X1)), int(math.Round(b.Y1)),
		int(math.Round(b.X2)), int(math.Round(b.Y2))
}

func (b BBox) Width() float64  { return b.X2 - b.X1 }
func (b BBox) Height() float64 { return b.Y2 - b.Y1 }

// Center returns the midpoint (cx, cy).
func (b BBox) Center() (float64, float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// IsValid reports whether the box covers a positive area.
func (b BBox) IsValid() bool {
	return b.Width() > 0 && b.Height() > 0
}
