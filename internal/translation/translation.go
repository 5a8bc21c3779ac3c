// Package translation turns cropped text regions into target-language
// strings. The production backend is Gemini: crops are submitted in one
// multimodal request and the model answers with a JSON array indexed over
// the submitted order.
package translation

import (
	"context"
	"fmt"

	"github.com/toonslate/toonslate-backend/internal/geometry"
)

// Result pairs a translated string with the original detection index of
// its region.
type Result struct {
	Index      int    `json:"index"`
	Translated string `json:"translated"`
}

// TranslationError wraps backend failures: missing key, empty response,
// malformed payloads.
type TranslationError struct {
	Message string
	Err     error
}

func (e *TranslationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("translation: %s: %v", e.Message, e.Err)
	}
	return "translation: " + e.Message
}

func (e *TranslationError) Unwrap() error { return e.Err }

// Translator is the swappable translation capability.
type Translator interface {
	Translate(ctx context.Context, imagePath string, bboxes []geometry.BBox) ([]Result, error)
}
