package translation

import (
	"context"
	"encoding/json"
	"image"
	"sort"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/toonslate/toonslate-backend/internal/geometry"
	"github.com/toonslate/toonslate-backend/internal/imgutil"
)

// translatePrompt asks for a JSON array indexed 0..K-1 over the submitted
// crop order. The worker remaps those indices back to detection order.
const translatePrompt = `각 이미지는 웹툰/만화에서 크롭한 텍스트 영역입니다.
각 이미지의 한국어 텍스트를 영어로 번역해주세요.

규칙:
- 이미지 순서대로 index 부여 (0부터 시작)
- 의성어/의태어는 자연스러운 영어 효과음으로 번역
- 텍스트가 없거나 읽을 수 없으면 translated를 빈 문자열로

JSON 배열로만 응답:
[{"index": 0, "translated": "Hello"}, {"index": 1, "translated": "BOOM"}, ...]`

// Gemini translates cropped text regions through the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewGemini builds the translator. The API key is required.
func NewGemini(ctx context.Context, apiKey, model string, logger *zap.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, &TranslationError{Message: "GEMINI_API_KEY is not set"}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, &TranslationError{Message: "failed to create Gemini client", Err: err}
	}
	return &Gemini{client: client, model: model, logger: logger}, nil
}

// Translate crops each valid bbox from the original image, submits the
// crops in one request and maps the answers back to the original indices,
// sorted ascending. Invalid bboxes are skipped; an empty input returns an
// empty result without a backend call.
func (g *Gemini) Translate(ctx context.Context, imagePath string, bboxes []geometry.BBox) ([]Result, error) {
	if len(bboxes) == 0 {
		return nil, nil
	}

	parts, validIndices, err := cropToParts(imagePath, bboxes)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, nil
	}

	raw, err := g.callGemini(ctx, parts)
	if err != nil {
		return nil, err
	}
	return g.mapResults(raw, validIndices), nil
}

// cropToParts returns one PNG part per valid bbox plus the original index
// of each submitted crop.
func cropToParts(imagePath string, bboxes []geometry.BBox) ([]*genai.Part, []int, error) {
	img, err := imaging.Open(imagePath)
	if err != nil {
		return nil, nil, &TranslationError{Message: "failed to open source image", Err: err}
	}

	var parts []*genai.Part
	var validIndices []int

	for idx, bbox := range bboxes {
		if !bbox.IsValid() {
			continue
		}

		x1, y1, x2, y2 := bbox.ToTuple()
		cropped := imaging.Crop(img, image.Rect(x1, y1, x2, y2))

		data, err := imgutil.EncodePNG(cropped)
		if err != nil {
			return nil, nil, &TranslationError{Message: "failed to encode crop", Err: err}
		}
		parts = append(parts, genai.NewPartFromBytes(data, "image/png"))
		validIndices = append(validIndices, idx)
	}
	return parts, validIndices, nil
}

func (g *Gemini) callGemini(ctx context.Context, parts []*genai.Part) ([]json.RawMessage, error) {
	all := append([]*genai.Part{genai.NewPartFromText(translatePrompt)}, parts...)
	contents := []*genai.Content{genai.NewContentFromParts(all, genai.RoleUser)}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents,
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"})
	if err != nil {
		return nil, &TranslationError{Message: "Gemini request failed", Err: err}
	}

	text := resp.Text()
	if text == "" {
		return nil, &TranslationError{Message: "empty response"}
	}

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, &TranslationError{Message: "response is not a JSON array", Err: err}
	}
	return raw, nil
}

// mapResults remaps part indices to original detection indices, dropping
// malformed or out-of-range items with a warning.
func (g *Gemini) mapResults(raw []json.RawMessage, validIndices []int) []Result {
	results := make([]Result, 0, len(raw))

	for _, item := range raw {
		var parsed Result
		if err := json.Unmarshal(item, &parsed); err != nil {
			g.logger.Warn("dropping malformed translation item",
				zap.String("item", string(item)), zap.Error(err))
			continue
		}
		if parsed.Index < 0 || parsed.Index >= len(validIndices) {
			g.logger.Warn("dropping out-of-range translation item",
				zap.Int("index", parsed.Index), zap.Int("submitted", len(validIndices)))
			continue
		}
		results = append(results, Result{
			Index:      validIndices[parsed.Index],
			Translated: parsed.Translated,
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })
	return results
}

var _ Translator = (*Gemini)(nil)
