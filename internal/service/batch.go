package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/toonslate/toonslate-backend/internal/jobstore"
	"github.com/toonslate/toonslate-backend/internal/metrics"
	"github.com/toonslate/toonslate-backend/internal/queue"
	"github.com/toonslate/toonslate-backend/internal/quota"
)

// Derived batch statuses. A batch is processing while any child is still
// moving; the other three describe fully settled batches.
const (
	BatchProcessing     = "processing"
	BatchCompleted      = "completed"
	BatchFailed         = "failed"
	BatchPartialFailure = "partial_failure"
)

// BatchImage is one child translation in a batch view.
type BatchImage struct {
	OrderIndex   int
	UploadID     string
	TranslateID  string
	Status       string
	OriginalURL  string
	ResultURL    string
	ErrorMessage string
}

// BatchView is a batch with its derived status and live child states.
type BatchView struct {
	BatchID        string
	Status         string
	Images         []BatchImage
	SourceLanguage string
	TargetLanguage string
	CreatedAt      string
}

// CreateBatch fans one request out to N child translations under a single
// N-image quota reservation. Enqueue failures are partial by design: the
// failed children are marked and their share of the quota refunded; only a
// total queue outage fails the request.
func (s *Service) CreateBatch(ctx context.Context, clientIP string, uploadIDs []string, sourceLang, targetLang string) (BatchView, error) {
	if len(uploadIDs) == 0 {
		return BatchView{}, newError(CodeInvalidRequest, "최소 1개의 upload_id가 필요합니다")
	}
	if len(uploadIDs) > s.maxBatchSize {
		return BatchView{}, newError(CodeInvalidRequest,
			fmt.Sprintf("최대 %d개까지 가능합니다", s.maxBatchSize))
	}

	uploads := make([]jobstore.UploadRecord, 0, len(uploadIDs))
	for _, uploadID := range uploadIDs {
		upload, found, err := s.jobs.GetUpload(ctx, uploadID)
		if err != nil {
			return BatchView{}, err
		}
		if !found {
			return BatchView{}, newError(CodeInvalidUploadID,
				fmt.Sprintf("유효하지 않은 업로드 ID: %s", uploadID))
		}
		uploads = append(uploads, upload)
	}

	ipHash := s.quota.HashIP(clientIP)
	n := len(uploadIDs)
	if err := s.quota.CheckAndConsume(ctx, ipHash, n); err != nil {
		if errors.Is(err, quota.ErrQuotaExceeded) {
			metrics.QuotaRejections.Inc()
			return BatchView{}, newError(CodeRateLimitExceeded, "주간 사용량 한도를 초과했습니다")
		}
		return BatchView{}, err
	}

	view := BatchView{
		BatchID:        "batch_" + s.newID(),
		Status:         BatchProcessing,
		SourceLanguage: sourceLang,
		TargetLanguage: targetLang,
		CreatedAt:      s.jobs.Timestamp(),
	}

	entries := make([]jobstore.BatchEntry, 0, n)
	for i, upload := range uploads {
		rec := jobstore.TranslateRecord{
			TranslateID:    "tr_" + s.newID(),
			Status:         jobstore.StatusPending,
			UploadID:       upload.UploadID,
			SourceLanguage: sourceLang,
			TargetLanguage: targetLang,
			CreatedAt:      view.CreatedAt,
			OriginalURL:    s.ImageURL(upload.Path),
		}
		if err := s.jobs.PutTranslate(ctx, rec); err != nil {
			s.refund(ctx, ipHash, n)
			return BatchView{}, fmt.Errorf("persist translate record: %w", err)
		}

		entries = append(entries, jobstore.BatchEntry{
			OrderIndex:  i,
			UploadID:    upload.UploadID,
			TranslateID: rec.TranslateID,
		})
		view.Images = append(view.Images, BatchImage{
			OrderIndex:  i,
			UploadID:    upload.UploadID,
			TranslateID: rec.TranslateID,
			Status:      jobstore.StatusPending,
			OriginalURL: rec.OriginalURL,
		})
	}

	if err := s.jobs.PutBatch(ctx, jobstore.BatchRecord{
		BatchID:        view.BatchID,
		SourceLanguage: sourceLang,
		TargetLanguage: targetLang,
		Images:         entries,
		CreatedAt:      view.CreatedAt,
	}); err != nil {
		s.refund(ctx, ipHash, n)
		return BatchView{}, fmt.Errorf("persist batch record: %w", err)
	}

	failed := 0
	for i := range view.Images {
		img := &view.Images[i]
		if err := s.queue.Enqueue(ctx, queue.Task{TranslateID: img.TranslateID}); err != nil {
			s.logger.Error("enqueue failed", zap.String("translate_id", img.TranslateID), zap.Error(err))
			failed++
			img.Status = jobstore.StatusFailed
			img.ErrorMessage = "작업 큐잉에 실패했습니다."
			if _, err := s.jobs.UpdateTranslateStatus(ctx, img.TranslateID, jobstore.StatusUpdate{
				Status:       jobstore.StatusFailed,
				ErrorMessage: "작업 큐잉에 실패했습니다.",
			}); err != nil {
				s.logger.Error("status update failed", zap.String("translate_id", img.TranslateID), zap.Error(err))
			}
		}
	}

	if failed == n {
		s.refund(ctx, ipHash, n)
		return BatchView{}, newError(CodeQueueUnavailable, "작업 큐가 일시적으로 사용할 수 없습니다")
	}
	if failed > 0 {
		s.refund(ctx, ipHash, failed)
	}

	s.logger.Info("batch created",
		zap.String("batch_id", view.BatchID), zap.Int("images", n), zap.Int("enqueue_failures", failed))
	return view, nil
}

// GetBatch reads the batch and derives its status from the children's
// current records. A child whose record expired counts as failed.
func (s *Service) GetBatch(ctx context.Context, batchID string) (BatchView, error) {
	rec, found, err := s.jobs.GetBatch(ctx, batchID)
	if err != nil {
		return BatchView{}, err
	}
	if !found {
		return BatchView{}, newError(CodeBatchNotFound,
			fmt.Sprintf("배치 작업을 찾을 수 없습니다: %s", batchID))
	}

	images := make([]BatchImage, len(rec.Images))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, entry := range rec.Images {
		g.Go(func() error {
			child, found, err := s.jobs.GetTranslate(gctx, entry.TranslateID)

			img := BatchImage{
				OrderIndex:  entry.OrderIndex,
				UploadID:    entry.UploadID,
				TranslateID: entry.TranslateID,
			}
			switch {
			case err != nil:
				return err
			case !found:
				img.Status = jobstore.StatusFailed
				img.ErrorMessage = "번역 메타데이터를 찾을 수 없습니다"
			default:
				img.Status = child.Status
				img.OriginalURL = child.OriginalURL
				img.ResultURL = child.ResultURL
				img.ErrorMessage = child.ErrorMessage
			}

			mu.Lock()
			images[i] = img
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchView{}, err
	}

	return BatchView{
		BatchID:        rec.BatchID,
		Status:         deriveBatchStatus(images),
		Images:         images,
		SourceLanguage: rec.SourceLanguage,
		TargetLanguage: rec.TargetLanguage,
		CreatedAt:      rec.CreatedAt,
	}, nil
}

func deriveBatchStatus(images []BatchImage) string {
	completed, failed := 0, 0
	for _, img := range images {
		switch img.Status {
		case jobstore.StatusPending, jobstore.StatusProcessing:
			return BatchProcessing
		case jobstore.StatusCompleted:
			completed++
		case jobstore.StatusFailed:
			failed++
		}
	}
	switch {
	case completed == len(images):
		return BatchCompleted
	case failed == len(images):
		return BatchFailed
	default:
		return BatchPartialFailure
	}
}
