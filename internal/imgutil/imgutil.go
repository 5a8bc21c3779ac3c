// Package imgutil holds the small image plumbing shared by the inpainting
// stages and the erase path: PNG and base64 codecs, binary masks and mask
// normalization.
package imgutil

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"

	"github.com/toonslate/toonslate-backend/internal/region"
)

// EncodePNG serializes an image as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("png encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses PNG or JPEG bytes.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("image decode: %w", err)
	}
	return img, nil
}

// ToBase64PNG returns the image as a base64-encoded PNG string.
func ToBase64PNG(img image.Image) (string, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// FromBase64PNG decodes a base64 PNG (or JPEG) payload into an image.
func FromBase64PNG(s string) (image.Image, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}
	return Decode(data)
}

// NewMask builds a binary mask of the given size: 255 inside every
// region's text bbox, 0 elsewhere.
func NewMask(width, height int, regions []region.TextRegion) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, width, height))
	for _, r := range regions {
		x1, y1, x2, y2 := r.TextBBox.ToTuple()
		rect := image.Rect(x1, y1, x2, y2).Intersect(mask.Bounds())
		draw.Draw(mask, rect, image.NewUniform(color.Gray{Y: 255}), image.Point{}, draw.Src)
	}
	return mask
}

// EnsureGrayscale reduces a decoded mask image to single-channel. Gray,
// NRGBA and RGBA inputs are supported; anything else is rejected.
func EnsureGrayscale(img image.Image) (*image.Gray, error) {
	switch img.(type) {
	case *image.Gray, *image.NRGBA, *image.RGBA:
	default:
		return nil, fmt.Errorf("unsupported mask format: %T", img)
	}
	if g, ok := img.(*image.Gray); ok {
		return g, nil
	}

	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, img, bounds.Min, draw.Src)
	return gray, nil
}

// Threshold maps every non-zero pixel to 255 in place and returns the mask.
func Threshold(mask *image.Gray) *image.Gray {
	for i, v := range mask.Pix {
		if v >= 1 {
			mask.Pix[i] = 255
		}
	}
	return mask
}

// ResizeNearest scales a mask to the target size with nearest-neighbor
// sampling, keeping values binary.
func ResizeNearest(mask *image.Gray, width, height int) *image.Gray {
	resized := imaging.Resize(mask, width, height, imaging.NearestNeighbor)
	gray := image.NewGray(resized.Bounds())
	draw.Draw(gray, gray.Bounds(), resized, resized.Bounds().Min, draw.Src)
	return Threshold(gray)
}

// ToNRGBA clones any image into the working pixel format.
func ToNRGBA(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}
