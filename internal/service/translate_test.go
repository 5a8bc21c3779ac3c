package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toonslate/toonslate-backend/internal/jobstore"
)

func TestService_CreateTranslate(t *testing.T) {
	h := newHarness(t, 20, 10)
	ctx := context.Background()
	upload := seedUpload(t, h)

	rec, err := h.svc.CreateTranslate(ctx, "203.0.113.7", upload.UploadID, "ko", "en")
	require.NoError(t, err)

	t.Run("pending record", func(t *testing.T) {
		assert.Regexp(t, trIDPattern, rec.TranslateID)
		assert.Equal(t, jobstore.StatusPending, rec.Status)
		assert.Equal(t, upload.UploadID, rec.UploadID)
		assert.Equal(t, "http://localhost:8000/static/"+upload.Path, rec.OriginalURL)
	})

	t.Run("task queued", func(t *testing.T) {
		require.Len(t, h.queue.tasks, 1)
		assert.Equal(t, rec.TranslateID, h.queue.tasks[0].TranslateID)
	})

	t.Run("one image consumed", func(t *testing.T) {
		assert.Equal(t, "1", h.quotaCount(t, "203.0.113.7"))
	})

	t.Run("readable back", func(t *testing.T) {
		got, err := h.svc.GetTranslate(ctx, rec.TranslateID)
		require.NoError(t, err)
		assert.Equal(t, rec, got)
	})
}

func TestService_CreateTranslate_InvalidUpload(t *testing.T) {
	h := newHarness(t, 20, 10)

	_, err := h.svc.CreateTranslate(context.Background(), "203.0.113.7", "upload_ffffffff", "ko", "en")
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, CodeInvalidUploadID, serr.Code)
	assert.Equal(t, 400, serr.HTTPStatus())

	t.Run("quota untouched", func(t *testing.T) {
		assert.Equal(t, "", h.quotaCount(t, "203.0.113.7"))
	})
}

func TestService_CreateTranslate_QuotaExceeded(t *testing.T) {
	h := newHarness(t, 20, 10)
	ctx := context.Background()
	upload := seedUpload(t, h)

	for i := 0; i < 20; i++ {
		_, err := h.svc.CreateTranslate(ctx, "203.0.113.7", upload.UploadID, "ko", "en")
		require.NoError(t, err, "request %d within the limit", i+1)
	}

	_, err := h.svc.CreateTranslate(ctx, "203.0.113.7", upload.UploadID, "ko", "en")
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, CodeRateLimitExceeded, serr.Code)
	assert.Equal(t, 429, serr.HTTPStatus())

	t.Run("counter stays at the limit", func(t *testing.T) {
		assert.Equal(t, "20", h.quotaCount(t, "203.0.113.7"))
	})

	t.Run("another client is unaffected", func(t *testing.T) {
		_, err := h.svc.CreateTranslate(ctx, "198.51.100.9", upload.UploadID, "ko", "en")
		assert.NoError(t, err)
	})
}

func TestService_CreateTranslate_EnqueueFailure(t *testing.T) {
	h := newHarness(t, 20, 10)
	ctx := context.Background()
	upload := seedUpload(t, h)
	h.queue.failAll = true

	_, err := h.svc.CreateTranslate(ctx, "203.0.113.7", upload.UploadID, "ko", "en")
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, CodeQueueUnavailable, serr.Code)
	assert.Equal(t, 503, serr.HTTPStatus())

	t.Run("quota refunded", func(t *testing.T) {
		assert.Equal(t, "0", h.quotaCount(t, "203.0.113.7"))
	})

	t.Run("record marked failed", func(t *testing.T) {
		// The record was persisted before the enqueue, so it exists.
		keys := h.mr.Keys()
		var translateKey string
		for _, k := range keys {
			if len(k) > 10 && k[:10] == "translate:" {
				translateKey = k
			}
		}
		require.NotEmpty(t, translateKey)

		rec, found, err := h.jobs.GetTranslate(ctx, translateKey[10:])
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, jobstore.StatusFailed, rec.Status)
		assert.Equal(t, msgEnqueueFailed, rec.ErrorMessage)
	})
}

func TestService_GetTranslate_NotFound(t *testing.T) {
	h := newHarness(t, 20, 10)

	_, err := h.svc.GetTranslate(context.Background(), "tr_00000000")
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, CodeTranslateNotFound, serr.Code)
	assert.Equal(t, fmt.Sprintf("[%s] 번역 작업을 찾을 수 없습니다: tr_00000000", CodeTranslateNotFound), serr.Error())
}
