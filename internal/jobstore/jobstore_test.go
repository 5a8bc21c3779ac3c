package jobstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toonslate/toonslate-backend/internal/redisstore"
)

func newStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(redisstore.NewFromClient(rdb), 2*time.Hour), mr
}

func TestTimestampFormat(t *testing.T) {
	s, _ := newStore(t)
	s.WithClock(func() time.Time {
		return time.Date(2026, 8, 24, 9, 30, 15, 123456000, time.UTC)
	})
	assert.Equal(t, "2026-08-24T09:30:15.123456Z", s.Timestamp())
}

func TestUploadRoundTrip(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	rec := UploadRecord{
		UploadID:    "upload_0a1b2c3d",
		Filename:    "page01.jpg",
		ContentType: "image/jpeg",
		Size:        123456,
		Path:        "original/upload_0a1b2c3d.jpg",
		CreatedAt:   s.Timestamp(),
	}
	require.NoError(t, s.PutUpload(ctx, rec))

	got, found, err := s.GetUpload(ctx, rec.UploadID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, rec, got)
	assert.Greater(t, mr.TTL("upload:"+rec.UploadID), time.Duration(0))

	t.Run("missing key", func(t *testing.T) {
		_, found, err := s.GetUpload(ctx, "upload_ffffffff")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("corrupt value is an error, not a miss", func(t *testing.T) {
		mr.Set("upload:upload_bad", "{not json")
		_, _, err := s.GetUpload(ctx, "upload_bad")
		assert.Error(t, err)
	})
}

func TestUpdateTranslateStatus(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, s *Store, status string) TranslateRecord {
		rec := TranslateRecord{
			TranslateID:    "tr_0a1b2c3d",
			Status:         status,
			UploadID:       "upload_0a1b2c3d",
			SourceLanguage: "ko",
			TargetLanguage: "en",
			CreatedAt:      s.Timestamp(),
		}
		require.NoError(t, s.PutTranslate(ctx, rec))
		return rec
	}

	t.Run("pending to processing", func(t *testing.T) {
		s, _ := newStore(t)
		seed(t, s, StatusPending)

		applied, err := s.UpdateTranslateStatus(ctx, "tr_0a1b2c3d", StatusUpdate{Status: StatusProcessing})
		require.NoError(t, err)
		assert.True(t, applied)

		got, _, _ := s.GetTranslate(ctx, "tr_0a1b2c3d")
		assert.Equal(t, StatusProcessing, got.Status)
		assert.Empty(t, got.CompletedAt)
	})

	t.Run("completed stamps completed_at and result_url", func(t *testing.T) {
		s, _ := newStore(t)
		seed(t, s, StatusProcessing)

		applied, err := s.UpdateTranslateStatus(ctx, "tr_0a1b2c3d", StatusUpdate{
			Status:    StatusCompleted,
			ResultURL: "http://localhost:8000/static/result/tr_0a1b2c3d_result.png",
		})
		require.NoError(t, err)
		assert.True(t, applied)

		got, _, _ := s.GetTranslate(ctx, "tr_0a1b2c3d")
		assert.Equal(t, StatusCompleted, got.Status)
		assert.NotEmpty(t, got.CompletedAt)
		assert.Contains(t, got.ResultURL, "tr_0a1b2c3d_result.png")
	})

	t.Run("terminal states are sticky", func(t *testing.T) {
		s, _ := newStore(t)
		seed(t, s, StatusCompleted)

		applied, err := s.UpdateTranslateStatus(ctx, "tr_0a1b2c3d", StatusUpdate{
			Status:       StatusFailed,
			ErrorMessage: "late worker",
		})
		require.NoError(t, err)
		assert.False(t, applied)

		got, _, _ := s.GetTranslate(ctx, "tr_0a1b2c3d")
		assert.Equal(t, StatusCompleted, got.Status)
		assert.Empty(t, got.ErrorMessage)
	})

	t.Run("preserves TTL", func(t *testing.T) {
		s, mr := newStore(t)
		seed(t, s, StatusPending)
		mr.SetTTL("translate:tr_0a1b2c3d", 45*time.Minute)

		_, err := s.UpdateTranslateStatus(ctx, "tr_0a1b2c3d", StatusUpdate{Status: StatusProcessing})
		require.NoError(t, err)
		assert.Equal(t, 45*time.Minute, mr.TTL("translate:tr_0a1b2c3d"))
	})

	t.Run("missing record is an error", func(t *testing.T) {
		s, _ := newStore(t)
		_, err := s.UpdateTranslateStatus(ctx, "tr_ffffffff", StatusUpdate{Status: StatusFailed})
		assert.Error(t, err)
	})
}

func TestBatchRoundTrip(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	rec := BatchRecord{
		BatchID:        "batch_0a1b2c3d",
		SourceLanguage: "ko",
		TargetLanguage: "en",
		Images: []BatchEntry{
			{OrderIndex: 0, UploadID: "upload_00000001", TranslateID: "tr_00000001"},
			{OrderIndex: 1, UploadID: "upload_00000002", TranslateID: "tr_00000002"},
		},
		CreatedAt: s.Timestamp(),
	}
	require.NoError(t, s.PutBatch(ctx, rec))

	got, found, err := s.GetBatch(ctx, rec.BatchID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, rec, got)
}
