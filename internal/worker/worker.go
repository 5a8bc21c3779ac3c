// Package worker consumes translation tasks one at a time. Each task runs
// the image pipeline under a soft deadline; a hard watchdog abandons tasks
// that ignore cancellation so the consumer loop never wedges.
package worker

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/toonslate/toonslate-backend/internal/imgutil"
	"github.com/toonslate/toonslate-backend/internal/jobstore"
	"github.com/toonslate/toonslate-backend/internal/metrics"
	"github.com/toonslate/toonslate-backend/internal/queue"
	"github.com/toonslate/toonslate-backend/internal/storage"
)

// Worker-facing failure messages, surfaced to clients via the record.
const (
	MsgTimeout       = "처리 시간 초과"
	MsgImageNotFound = "이미지를 찾을 수 없음"
)

const dequeueWait = 5 * time.Second

// ImageTranslator is the pipeline capability the worker drives.
type ImageTranslator interface {
	TranslateImage(ctx context.Context, imagePath string) (image.Image, error)
}

// TaskResult is the per-task summary the worker logs.
type TaskResult struct {
	Status    string `json:"status"`
	ResultURL string `json:"result_url,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Worker runs the consume loop.
type Worker struct {
	queue    *queue.Queue
	jobs     *jobstore.Store
	store    *storage.Local
	pipeline ImageTranslator
	baseURL  string

	softLimit time.Duration
	hardLimit time.Duration

	logger *zap.Logger
}

// New builds a worker. softLimit bounds the pipeline context; hardLimit is
// the watchdog after which a stuck task is abandoned.
func New(q *queue.Queue, jobs *jobstore.Store, store *storage.Local, pipeline ImageTranslator, baseURL string, softLimit, hardLimit time.Duration, logger *zap.Logger) *Worker {
	return &Worker{
		queue:     q,
		jobs:      jobs,
		store:     store,
		pipeline:  pipeline,
		baseURL:   baseURL,
		softLimit: softLimit,
		hardLimit: hardLimit,
		logger:    logger,
	}
}

// Run consumes tasks until the context is cancelled. One task at a time:
// each holds a decoded page in memory and hits rate-limited upstreams.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started",
		zap.Duration("soft_limit", w.softLimit), zap.Duration("hard_limit", w.hardLimit))

	for {
		if err := ctx.Err(); err != nil {
			w.logger.Info("worker stopping")
			return err
		}

		task, found, err := w.queue.Dequeue(ctx, dequeueWait)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("worker stopping")
				return ctx.Err()
			}
			w.logger.Error("dequeue failed", zap.Error(err))
			continue
		}
		if !found {
			continue
		}

		result := w.Process(ctx, task.TranslateID)
		w.logger.Info("task finished",
			zap.String("translate_id", task.TranslateID),
			zap.String("status", result.Status),
			zap.String("error", result.Error))
	}
}

// Process runs one translation task end to end and records the outcome on
// the translate record.
func (w *Worker) Process(ctx context.Context, translateID string) TaskResult {
	start := time.Now()
	w.logger.Info("task started", zap.String("translate_id", translateID))

	result := w.process(ctx, translateID)

	metrics.JobsProcessed.WithLabelValues(result.Status).Inc()
	metrics.JobDuration.Observe(time.Since(start).Seconds())
	return result
}

func (w *Worker) process(ctx context.Context, translateID string) TaskResult {
	if _, err := w.jobs.UpdateTranslateStatus(ctx, translateID, jobstore.StatusUpdate{
		Status: jobstore.StatusProcessing,
	}); err != nil {
		w.logger.Error("status update failed", zap.String("translate_id", translateID), zap.Error(err))
		return TaskResult{Status: jobstore.StatusFailed, Error: err.Error()}
	}

	imagePath, ok, err := w.imagePath(ctx, translateID)
	if err != nil {
		return w.fail(ctx, translateID, err.Error())
	}
	if !ok {
		return w.fail(ctx, translateID, MsgImageNotFound)
	}

	final, err := w.runPipeline(ctx, imagePath)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			msg = MsgTimeout
		}
		return w.fail(ctx, translateID, msg)
	}

	data, err := imgutil.EncodePNG(final)
	if err != nil {
		return w.fail(ctx, translateID, fmt.Sprintf("failed to encode result: %v", err))
	}

	resultRelative := fmt.Sprintf("result/%s_result.png", translateID)
	if err := w.store.SaveBytes(resultRelative, data); err != nil {
		return w.fail(ctx, translateID, fmt.Sprintf("failed to save result: %v", err))
	}

	resultURL := fmt.Sprintf("%s/static/%s", w.baseURL, resultRelative)
	if _, err := w.jobs.UpdateTranslateStatus(ctx, translateID, jobstore.StatusUpdate{
		Status:    jobstore.StatusCompleted,
		ResultURL: resultURL,
	}); err != nil {
		w.logger.Error("completion update failed", zap.String("translate_id", translateID), zap.Error(err))
		return TaskResult{Status: jobstore.StatusFailed, Error: err.Error()}
	}

	return TaskResult{Status: jobstore.StatusCompleted, ResultURL: resultURL}
}

// runPipeline executes the pipeline under the soft deadline and abandons
// it after the hard limit. An abandoned goroutine leaks until its backends
// give up, which the hard limit margin over the soft limit allows for.
func (w *Worker) runPipeline(ctx context.Context, imagePath string) (image.Image, error) {
	softCtx, cancel := context.WithTimeout(ctx, w.softLimit)
	defer cancel()

	type outcome struct {
		img image.Image
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		img, err := w.pipeline.TranslateImage(softCtx, imagePath)
		done <- outcome{img: img, err: err}
	}()

	hard := time.NewTimer(w.hardLimit)
	defer hard.Stop()

	select {
	case out := <-done:
		if out.err != nil && softCtx.Err() != nil {
			return nil, context.DeadlineExceeded
		}
		return out.img, out.err
	case <-hard.C:
		w.logger.Error("hard time limit hit, abandoning task", zap.String("image", imagePath))
		return nil, context.DeadlineExceeded
	}
}

// imagePath chains translate record → upload record → stored file.
func (w *Worker) imagePath(ctx context.Context, translateID string) (string, bool, error) {
	rec, found, err := w.jobs.GetTranslate(ctx, translateID)
	if err != nil {
		return "", false, err
	}
	if !found || rec.UploadID == "" {
		return "", false, nil
	}

	upload, found, err := w.jobs.GetUpload(ctx, rec.UploadID)
	if err != nil {
		return "", false, err
	}
	if !found || upload.Path == "" {
		return "", false, nil
	}

	if !w.store.Exists(upload.Path) {
		return "", false, nil
	}
	return w.store.AbsolutePath(upload.Path), true, nil
}

func (w *Worker) fail(ctx context.Context, translateID, msg string) TaskResult {
	if _, err := w.jobs.UpdateTranslateStatus(ctx, translateID, jobstore.StatusUpdate{
		Status:       jobstore.StatusFailed,
		ErrorMessage: msg,
	}); err != nil {
		w.logger.Error("failure update failed", zap.String("translate_id", translateID), zap.Error(err))
	}
	return TaskResult{Status: jobstore.StatusFailed, Error: msg}
}
