// Package pipeline chains detection, inpainting, translation and rendering
// into the single-image translation flow the worker runs.
package pipeline

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/toonslate/toonslate-backend/internal/detection"
	"github.com/toonslate/toonslate-backend/internal/geometry"
	"github.com/toonslate/toonslate-backend/internal/imgutil"
	"github.com/toonslate/toonslate-backend/internal/inpaint"
	"github.com/toonslate/toonslate-backend/internal/region"
	"github.com/toonslate/toonslate-backend/internal/translation"
)

// PipelineError marks failures in the orchestration itself, as opposed to
// backend errors which pass through untouched.
type PipelineError struct {
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pipeline: %s: %v", e.Message, e.Err)
	}
	return "pipeline: " + e.Message
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Renderer draws translated strings into their render boxes.
type Renderer interface {
	Render(img *image.NRGBA, regions []region.TextRegion, translations []translation.Result) *image.NRGBA
}

// Pipeline holds the four stage backends.
type Pipeline struct {
	detector   detection.Detector
	inpainter  inpaint.Inpainter
	translator translation.Translator
	renderer   Renderer
	logger     *zap.Logger
}

// New wires the stages together.
func New(detector detection.Detector, inpainter inpaint.Inpainter, translator translation.Translator, renderer Renderer, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		detector:   detector,
		inpainter:  inpainter,
		translator: translator,
		renderer:   renderer,
		logger:     logger,
	}
}

// buildTextRegions converts a detection result into indexed regions plus
// the parallel bubble list. Indices are the detection order and stay
// stable through every later stage.
func buildTextRegions(det *detection.Result) ([]region.TextRegion, []geometry.BBox, error) {
	regions := make([]region.TextRegion, 0, len(det.Texts))
	for i, coords := range det.Texts {
		bbox, err := geometry.FromList(coords)
		if err != nil {
			return nil, nil, err
		}
		regions = append(regions, region.TextRegion{Index: i, TextBBox: bbox})
	}

	bubbles := make([]geometry.BBox, 0, len(det.Bubbles))
	for _, coords := range det.Bubbles {
		bbox, err := geometry.FromList(coords)
		if err != nil {
			return nil, nil, err
		}
		bubbles = append(bubbles, bbox)
	}
	return regions, bubbles, nil
}

// TranslateImage runs the full flow for one image and returns the final
// page. When detection finds no text the original image comes back
// unchanged and the remaining stages are skipped. Backend errors propagate
// to the caller.
func (p *Pipeline) TranslateImage(ctx context.Context, imagePath string) (image.Image, error) {
	det, err := p.detector.Detect(ctx, imagePath)
	if err != nil {
		return nil, err
	}

	regions, bubbles, err := buildTextRegions(det)
	if err != nil {
		return nil, &PipelineError{Message: "invalid detection geometry", Err: err}
	}
	p.logger.Info("detection complete",
		zap.Int("texts", len(regions)), zap.Int("bubbles", len(bubbles)))

	if len(regions) == 0 {
		img, err := imaging.Open(imagePath)
		if err != nil {
			return nil, &PipelineError{Message: "failed to load image", Err: err}
		}
		return img, nil
	}

	src, err := imaging.Open(imagePath)
	if err != nil {
		return nil, &PipelineError{Message: "failed to load image", Err: err}
	}

	clean, updated, err := p.inpainter.Inpaint(ctx, imgutil.ToNRGBA(src), regions, bubbles)
	if err != nil {
		return nil, err
	}
	p.logger.Info("inpainting complete", zap.Int("regions", len(updated)))

	// Translation reads the original file, not the cleaned image: the
	// source text has to still be there for OCR.
	textBBoxes := make([]geometry.BBox, len(regions))
	for i, r := range regions {
		textBBoxes[i] = r.TextBBox
	}
	translations, err := p.translator.Translate(ctx, imagePath, textBBoxes)
	if err != nil {
		return nil, err
	}
	p.logger.Info("translation complete",
		zap.Int("translated", len(translations)), zap.Int("regions", len(regions)))

	result := p.renderer.Render(clean, updated, translations)
	p.logger.Info("rendering complete")

	return result, nil
}
