package service

import (
	"context"
	"fmt"
	"image"
	"os"
	"regexp"

	"go.uber.org/zap"

	"github.com/toonslate/toonslate-backend/internal/imgutil"
	"github.com/toonslate/toonslate-backend/internal/jobstore"
)

// translateIDPattern is the strict id format. The id is interpolated into
// a storage path, so anything else is rejected before any store access.
var translateIDPattern = regexp.MustCompile(`^tr_[a-f0-9]{8}$`)

// Erase re-inpaints the brush-marked area of a finished translation. When
// the caller sends the source image inline, record and file checks are
// skipped entirely; possession of the image is the proof of completion.
// Returns the result as base64 PNG.
func (s *Service) Erase(ctx context.Context, translateID, maskB64, sourceB64 string) (string, error) {
	if !translateIDPattern.MatchString(translateID) {
		return "", newError(CodeInvalidTranslateID,
			fmt.Sprintf("올바르지 않은 번역 ID 형식: %s", translateID))
	}

	var working image.Image
	if sourceB64 != "" {
		img, err := imgutil.FromBase64PNG(sourceB64)
		if err != nil {
			return "", newError(CodeInpaintingFailed, "원본 이미지 디코딩 실패")
		}
		working = img
	} else {
		img, err := s.loadResultImage(ctx, translateID)
		if err != nil {
			return "", err
		}
		working = img
	}

	maskImg, err := imgutil.FromBase64PNG(maskB64)
	if err != nil {
		return "", newError(CodeInpaintingFailed, "마스크 이미지 디코딩 실패")
	}
	gray, err := imgutil.EnsureGrayscale(maskImg)
	if err != nil {
		return "", newError(CodeInpaintingFailed,
			fmt.Sprintf("지원하지 않는 마스크 형식: %v", err))
	}
	mask := imgutil.Threshold(gray)

	w := working.Bounds().Dx()
	h := working.Bounds().Dy()
	if mask.Bounds().Dx() != w || mask.Bounds().Dy() != h {
		mask = imgutil.ResizeNearest(mask, w, h)
	}

	result, err := s.inpainter.InpaintMask(ctx, working, mask)
	if err != nil {
		s.logger.Error("erase inpainting failed", zap.String("translate_id", translateID), zap.Error(err))
		return "", newError(CodeInpaintingFailed, fmt.Sprintf("Inpainting 실패: %v", err))
	}

	encoded, err := imgutil.ToBase64PNG(result)
	if err != nil {
		return "", newError(CodeInpaintingFailed, "결과 이미지 인코딩 실패")
	}

	s.logger.Info("erase complete", zap.String("translate_id", translateID))
	return encoded, nil
}

// loadResultImage resolves record → completed status → result file.
func (s *Service) loadResultImage(ctx context.Context, translateID string) (image.Image, error) {
	rec, found, err := s.jobs.GetTranslate(ctx, translateID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, newError(CodeTranslateNotFound,
			fmt.Sprintf("번역을 찾을 수 없습니다: %s", translateID))
	}
	if rec.Status != jobstore.StatusCompleted {
		return nil, newError(CodeTranslateNotCompleted,
			fmt.Sprintf("번역이 완료되지 않았습니다 (현재: %s)", rec.Status))
	}

	resultRelative := fmt.Sprintf("result/%s_result.png", translateID)
	if !s.store.Exists(resultRelative) {
		return nil, newError(CodeResultImageNotFound, "번역 결과 이미지 파일이 없습니다")
	}

	data, err := os.ReadFile(s.store.AbsolutePath(resultRelative))
	if err != nil {
		return nil, newError(CodeInpaintingFailed, fmt.Sprintf("이미지 로드 실패: %v", err))
	}
	img, err := imgutil.Decode(data)
	if err != nil {
		return nil, newError(CodeInpaintingFailed, fmt.Sprintf("이미지 로드 실패: %v", err))
	}
	return img, nil
}
