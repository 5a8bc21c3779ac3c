// Package jobstore persists upload, translate and batch records as JSON in
// the keyed store. Every write carries the data TTL; status updates go
// through a read-modify-write that preserves the remaining TTL and never
// moves a record out of a terminal state.
package jobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/toonslate/toonslate-backend/internal/redisstore"
)

// Key prefixes in the keyed store.
const (
	uploadPrefix    = "upload:"
	translatePrefix = "translate:"
	batchPrefix     = "batch:"
)

// Translate statuses. pending and processing are transient; completed and
// failed are terminal and sticky.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// UploadRecord describes an ingested source image.
type UploadRecord struct {
	UploadID    string `json:"upload_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Path        string `json:"path"`
	CreatedAt   string `json:"created_at"`
}

// TranslateRecord describes one translation job. Only the worker mutates
// status after creation.
type TranslateRecord struct {
	TranslateID    string `json:"translate_id"`
	Status         string `json:"status"`
	UploadID       string `json:"upload_id"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	CreatedAt      string `json:"created_at"`
	CompletedAt    string `json:"completed_at,omitempty"`
	OriginalURL    string `json:"original_url,omitempty"`
	ResultURL      string `json:"result_url,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

// BatchEntry ties a child translation to its position in the batch.
type BatchEntry struct {
	OrderIndex  int    `json:"order_index"`
	UploadID    string `json:"upload_id"`
	TranslateID string `json:"translate_id"`
}

// BatchRecord groups child translations. Batch status is always derived
// from the children, never persisted.
type BatchRecord struct {
	BatchID        string       `json:"batch_id"`
	SourceLanguage string       `json:"source_language"`
	TargetLanguage string       `json:"target_language"`
	Images         []BatchEntry `json:"images"`
	CreatedAt      string       `json:"created_at"`
}

// Store reads and writes typed job records.
type Store struct {
	store *redisstore.Client
	ttl   time.Duration
	now   func() time.Time
}

// New builds a Store writing records with the given TTL.
func New(store *redisstore.Client, ttl time.Duration) *Store {
	return &Store{store: store, ttl: ttl, now: time.Now}
}

// WithClock replaces the store's clock (tests).
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Timestamp returns the current time formatted the way all records carry
// it: UTC ISO-8601 with a literal Z suffix.
func (s *Store) Timestamp() string {
	return s.now().UTC().Format("2006-01-02T15:04:05.000000Z")
}

func (s *Store) put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.store.Set(ctx, key, string(data), s.ttl)
}

func get[T any](ctx context.Context, s *Store, key string) (T, bool, error) {
	var rec T
	data, found, err := s.store.Get(ctx, key)
	if err != nil || !found {
		return rec, false, err
	}
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return rec, false, fmt.Errorf("parse %s: %w", key, err)
	}
	return rec, true, nil
}

// PutUpload persists an upload record.
func (s *Store) PutUpload(ctx context.Context, rec UploadRecord) error {
	return s.put(ctx, uploadPrefix+rec.UploadID, rec)
}

// GetUpload reads an upload record; found=false means the key is absent.
func (s *Store) GetUpload(ctx context.Context, uploadID string) (UploadRecord, bool, error) {
	return get[UploadRecord](ctx, s, uploadPrefix+uploadID)
}

// DeleteUpload removes an upload record.
func (s *Store) DeleteUpload(ctx context.Context, uploadID string) error {
	return s.store.Del(ctx, uploadPrefix+uploadID)
}

// PutTranslate persists a translate record.
func (s *Store) PutTranslate(ctx context.Context, rec TranslateRecord) error {
	return s.put(ctx, translatePrefix+rec.TranslateID, rec)
}

// GetTranslate reads a translate record.
func (s *Store) GetTranslate(ctx context.Context, translateID string) (TranslateRecord, bool, error) {
	return get[TranslateRecord](ctx, s, translatePrefix+translateID)
}

// StatusUpdate carries the fields a worker may change on a record.
type StatusUpdate struct {
	Status       string
	ResultURL    string
	ErrorMessage string
}

// UpdateTranslateStatus applies a status transition while preserving the
// record's TTL. Terminal states are sticky: a record already completed or
// failed is left untouched and the update reports applied=false.
func (s *Store) UpdateTranslateStatus(ctx context.Context, translateID string, upd StatusUpdate) (bool, error) {
	key := translatePrefix + translateID

	rec, found, err := get[TranslateRecord](ctx, s, key)
	if err != nil {
		return false, err
	}
	if !found {
		return false, fmt.Errorf("translate record not found: %s", translateID)
	}

	if rec.Status == StatusCompleted || rec.Status == StatusFailed {
		return false, nil
	}

	rec.Status = upd.Status
	if upd.ResultURL != "" {
		rec.ResultURL = upd.ResultURL
	}
	if upd.ErrorMessage != "" {
		rec.ErrorMessage = upd.ErrorMessage
	}
	if upd.Status == StatusCompleted {
		rec.CompletedAt = s.Timestamp()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("marshal %s: %w", key, err)
	}
	return true, s.store.SetKeepTTL(ctx, key, string(data))
}

// PutBatch persists a batch record.
func (s *Store) PutBatch(ctx context.Context, rec BatchRecord) error {
	return s.put(ctx, batchPrefix+rec.BatchID, rec)
}

// GetBatch reads a batch record.
func (s *Store) GetBatch(ctx context.Context, batchID string) (BatchRecord, bool, error) {
	return get[BatchRecord](ctx, s, batchPrefix+batchID)
}
