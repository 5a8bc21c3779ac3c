package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/toonslate/toonslate-backend/internal/jobstore"
	"github.com/toonslate/toonslate-backend/internal/metrics"
	"github.com/toonslate/toonslate-backend/internal/queue"
	"github.com/toonslate/toonslate-backend/internal/quota"
)

// Failure message stored on records whose worker task could not be queued.
const msgEnqueueFailed = "작업 큐잉에 실패했습니다. 잠시 후 다시 시도해주세요."

// CreateTranslate validates the upload, reserves one image from the weekly
// quota, persists a pending record and queues the worker task. Any failure
// after the reservation refunds it.
func (s *Service) CreateTranslate(ctx context.Context, clientIP, uploadID, sourceLang, targetLang string) (jobstore.TranslateRecord, error) {
	upload, found, err := s.jobs.GetUpload(ctx, uploadID)
	if err != nil {
		return jobstore.TranslateRecord{}, err
	}
	if !found {
		return jobstore.TranslateRecord{}, newError(CodeInvalidUploadID,
			fmt.Sprintf("유효하지 않은 업로드 ID: %s", uploadID))
	}

	ipHash := s.quota.HashIP(clientIP)
	if err := s.quota.CheckAndConsume(ctx, ipHash, 1); err != nil {
		if errors.Is(err, quota.ErrQuotaExceeded) {
			metrics.QuotaRejections.Inc()
			return jobstore.TranslateRecord{}, newError(CodeRateLimitExceeded, "주간 사용량 한도를 초과했습니다")
		}
		return jobstore.TranslateRecord{}, err
	}

	rec := jobstore.TranslateRecord{
		TranslateID:    "tr_" + s.newID(),
		Status:         jobstore.StatusPending,
		UploadID:       uploadID,
		SourceLanguage: sourceLang,
		TargetLanguage: targetLang,
		CreatedAt:      s.jobs.Timestamp(),
		OriginalURL:    s.ImageURL(upload.Path),
	}

	if err := s.jobs.PutTranslate(ctx, rec); err != nil {
		s.refund(ctx, ipHash, 1)
		return jobstore.TranslateRecord{}, fmt.Errorf("persist translate record: %w", err)
	}

	if err := s.queue.Enqueue(ctx, queue.Task{TranslateID: rec.TranslateID}); err != nil {
		s.logger.Error("enqueue failed", zap.String("translate_id", rec.TranslateID), zap.Error(err))
		s.refund(ctx, ipHash, 1)
		if _, err := s.jobs.UpdateTranslateStatus(ctx, rec.TranslateID, jobstore.StatusUpdate{
			Status:       jobstore.StatusFailed,
			ErrorMessage: msgEnqueueFailed,
		}); err != nil {
			s.logger.Error("status update failed", zap.String("translate_id", rec.TranslateID), zap.Error(err))
		}
		return jobstore.TranslateRecord{}, newError(CodeQueueUnavailable, msgEnqueueFailed)
	}

	s.logger.Info("translate created",
		zap.String("translate_id", rec.TranslateID), zap.String("upload_id", uploadID))
	return rec, nil
}

// GetTranslate reads a translate record.
func (s *Service) GetTranslate(ctx context.Context, translateID string) (jobstore.TranslateRecord, error) {
	rec, found, err := s.jobs.GetTranslate(ctx, translateID)
	if err != nil {
		return jobstore.TranslateRecord{}, err
	}
	if !found {
		return jobstore.TranslateRecord{}, newError(CodeTranslateNotFound,
			fmt.Sprintf("번역 작업을 찾을 수 없습니다: %s", translateID))
	}
	return rec, nil
}
