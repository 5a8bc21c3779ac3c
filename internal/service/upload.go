package service

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/toonslate/toonslate-backend/internal/jobstore"
	"github.com/toonslate/toonslate-backend/internal/metrics"
)

// Upload runs a source image through validation, stores the blob and
// persists the record. When the record write fails the blob is removed so
// storage never holds orphans.
func (s *Service) Upload(ctx context.Context, file io.Reader, contentType, filename string) (jobstore.UploadRecord, error) {
	uploadID := "upload_" + s.newID()

	path, err := s.store.Save(file, contentType, filename, "original", uploadID)
	if err != nil {
		return jobstore.UploadRecord{}, err
	}

	var size int64
	if fi, err := os.Stat(s.store.AbsolutePath(path)); err == nil {
		size = fi.Size()
	}

	rec := jobstore.UploadRecord{
		UploadID:    uploadID,
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
		Path:        path,
		CreatedAt:   s.jobs.Timestamp(),
	}

	if err := s.jobs.PutUpload(ctx, rec); err != nil {
		s.store.Delete(path)
		return jobstore.UploadRecord{}, fmt.Errorf("persist upload record: %w", err)
	}

	metrics.UploadsAccepted.Inc()
	s.logger.Info("upload accepted",
		zap.String("upload_id", uploadID), zap.String("path", path), zap.Int64("size", size))
	return rec, nil
}

// GetUpload reads an upload record.
func (s *Service) GetUpload(ctx context.Context, uploadID string) (jobstore.UploadRecord, error) {
	rec, found, err := s.jobs.GetUpload(ctx, uploadID)
	if err != nil {
		return jobstore.UploadRecord{}, err
	}
	if !found {
		return jobstore.UploadRecord{}, newError(CodeUploadNotFound,
			fmt.Sprintf("업로드를 찾을 수 없습니다: %s", uploadID))
	}
	return rec, nil
}
