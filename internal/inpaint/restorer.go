package inpaint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/toonslate/toonslate-backend/internal/geometry"
	"github.com/toonslate/toonslate-backend/internal/imgutil"
	"github.com/toonslate/toonslate-backend/internal/region"
)

// SpaceRestorer erases free text through a hosted neural inpainting
// endpoint. The image and a binary mask go out as a base64-PNG pair; the
// response body is the restored image. Calls run through a circuit breaker
// so a dead upstream fails fast instead of holding worker slots.
type SpaceRestorer struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewSpaceRestorer builds a restorer for the given endpoint.
func NewSpaceRestorer(baseURL string, timeout time.Duration) *SpaceRestorer {
	return &SpaceRestorer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "inpainting",
			Timeout: 60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

// Restore clips each free region to the image, drops the empties, builds a
// single mask over the survivors and submits one inpainting call. An empty
// region list returns the input unchanged without a network call.
func (s *SpaceRestorer) Restore(ctx context.Context, img *image.NRGBA, regions []region.TextRegion) (*image.NRGBA, []region.TextRegion, error) {
	if len(regions) == 0 {
		return img, nil, nil
	}

	w := img.Bounds().Dx()
	h := img.Bounds().Dy()

	updated := make([]region.TextRegion, 0, len(regions))
	for _, r := range regions {
		inpaintBBox := geometry.ClipToBounds(r.TextBBox, w, h)
		if !inpaintBBox.IsValid() {
			continue
		}
		renderBBox := geometry.CalcRenderBBox(r.BubbleBBox, inpaintBBox)

		ib, rb := inpaintBBox, renderBBox
		updated = append(updated, region.TextRegion{
			Index:       r.Index,
			TextBBox:    r.TextBBox,
			BubbleBBox:  r.BubbleBBox,
			InpaintBBox: &ib,
			RenderBBox:  &rb,
		})
	}
	if len(updated) == 0 {
		return img, nil, nil
	}

	mask := imgutil.NewMask(w, h, updated)
	clean, err := s.callAPI(ctx, img, mask)
	if err != nil {
		return nil, nil, err
	}
	return imgutil.ToNRGBA(clean), updated, nil
}

// RestoreMask runs a caller-supplied mask through the same endpoint
// (interactive erase path).
func (s *SpaceRestorer) RestoreMask(ctx context.Context, img image.Image, mask *image.Gray) (image.Image, error) {
	return s.callAPI(ctx, img, mask)
}

func (s *SpaceRestorer) callAPI(ctx context.Context, img image.Image, mask *image.Gray) (image.Image, error) {
	imgB64, err := imgutil.ToBase64PNG(img)
	if err != nil {
		return nil, &InpaintingError{Message: "failed to encode image", Err: err}
	}
	maskB64, err := imgutil.ToBase64PNG(mask)
	if err != nil {
		return nil, &InpaintingError{Message: "failed to encode mask", Err: err}
	}

	payload, err := json.Marshal(map[string]string{"image": imgB64, "mask": maskB64})
	if err != nil {
		return nil, &InpaintingError{Message: "failed to marshal request", Err: err}
	}

	result, err := s.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			s.baseURL+"/api/v1/inpaint", bytes.NewReader(payload))
		if err != nil {
			return nil, &InpaintingError{Message: "failed to build request", Err: err}
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, &InpaintingError{Message: "inpainting API call failed", Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusBadRequest {
			return nil, &InpaintingError{Message: fmt.Sprintf("inpainting API status %d", resp.StatusCode)}
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		var ie *InpaintingError
		if errors.As(err, &ie) {
			return nil, ie
		}
		// Breaker-open and other transport-layer errors.
		return nil, &InpaintingError{Message: "inpainting unavailable", Err: err}
	}

	decoded, err := imgutil.Decode(result.([]byte))
	if err != nil {
		return nil, &InpaintingError{Message: "failed to decode result image", Err: err}
	}
	return decoded, nil
}

var _ BackgroundRestorer = (*SpaceRestorer)(nil)
