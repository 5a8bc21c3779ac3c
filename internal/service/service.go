// Package service is the request-side orchestration: upload ingest,
// translate and batch creation with quota accounting, batch status
// derivation, and the interactive erase path. Handlers stay thin; all
// business rules live here.
package service

import (
	"context"
	"encoding/hex"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/toonslate/toonslate-backend/internal/inpaint"
	"github.com/toonslate/toonslate-backend/internal/jobstore"
	"github.com/toonslate/toonslate-backend/internal/queue"
	"github.com/toonslate/toonslate-backend/internal/quota"
	"github.com/toonslate/toonslate-backend/internal/storage"
)

// Error codes surfaced in the response envelope.
const (
	CodeUnknownClient         = "UNKNOWN_CLIENT"
	CodeInvalidRequest        = "INVALID_REQUEST"
	CodeInvalidUploadID       = "INVALID_UPLOAD_ID"
	CodeUploadNotFound        = "UPLOAD_NOT_FOUND"
	CodeRateLimitExceeded     = "RATE_LIMIT_EXCEEDED"
	CodeQueueUnavailable      = "QUEUE_UNAVAILABLE"
	CodeTranslateNotFound     = "TRANSLATE_NOT_FOUND"
	CodeBatchNotFound         = "BATCH_NOT_FOUND"
	CodeInvalidTranslateID    = "INVALID_TRANSLATE_ID"
	CodeTranslateNotCompleted = "TRANSLATE_NOT_COMPLETED"
	CodeResultImageNotFound   = "RESULT_IMAGE_NOT_FOUND"
	CodeInpaintingFailed      = "INPAINTING_FAILED"
)

var statusByCode = map[string]int{
	CodeUnknownClient:         http.StatusBadRequest,
	CodeInvalidRequest:        http.StatusUnprocessableEntity,
	CodeInvalidUploadID:       http.StatusBadRequest,
	CodeUploadNotFound:        http.StatusNotFound,
	CodeRateLimitExceeded:     http.StatusTooManyRequests,
	CodeQueueUnavailable:      http.StatusServiceUnavailable,
	CodeTranslateNotFound:     http.StatusNotFound,
	CodeBatchNotFound:         http.StatusNotFound,
	CodeInvalidTranslateID:    http.StatusBadRequest,
	CodeTranslateNotCompleted: http.StatusBadRequest,
	CodeResultImageNotFound:   http.StatusNotFound,
	CodeInpaintingFailed:      http.StatusInternalServerError,
}

// Error is a client-facing failure with a stable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return "[" + e.Code + "] " + e.Message }

// HTTPStatus maps the code to its response status; unknown codes are 500.
func (e *Error) HTTPStatus() int {
	if status, ok := statusByCode[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Enqueuer pushes worker tasks. The queue package implements it; tests
// substitute failing fakes.
type Enqueuer interface {
	Enqueue(ctx context.Context, task queue.Task) error
}

// Service holds the request-path collaborators.
type Service struct {
	jobs      *jobstore.Store
	store     *storage.Local
	quota     *quota.Engine
	queue     Enqueuer
	inpainter inpaint.Inpainter

	baseURL      string
	maxBatchSize int
	logger       *zap.Logger

	newID func() string
}

// New wires the service.
func New(jobs *jobstore.Store, store *storage.Local, qe *quota.Engine, q Enqueuer, inpainter inpaint.Inpainter, baseURL string, maxBatchSize int, logger *zap.Logger) *Service {
	return &Service{
		jobs:         jobs,
		store:        store,
		quota:        qe,
		queue:        q,
		inpainter:    inpainter,
		baseURL:      baseURL,
		maxBatchSize: maxBatchSize,
		logger:       logger,
		newID:        randomID,
	}
}

// WithIDGenerator replaces the id suffix source (tests).
func (s *Service) WithIDGenerator(newID func() string) *Service {
	s.newID = newID
	return s
}

// randomID returns the 8-hex-char suffix shared by all identifier kinds.
func randomID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])[:8]
}

// HashIP exposes the quota engine's IP hashing for handlers.
func (s *Service) HashIP(ip string) string { return s.quota.HashIP(ip) }

// ImageURL builds the public URL for a stored relative path.
func (s *Service) ImageURL(relative string) string {
	return s.baseURL + "/static/" + relative
}

// refund returns quota best-effort; failures are logged, never surfaced.
func (s *Service) refund(ctx context.Context, ipHash string, n int) {
	if err := s.quota.Refund(ctx, ipHash, n); err != nil {
		s.logger.Error("quota refund failed",
			zap.String("ip_hash", ipHash), zap.Int("count", n), zap.Error(err))
	}
}
