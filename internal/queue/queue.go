// Package queue is the worker task queue: a Redis list with JSON task
// payloads, pushed by the API process and popped by workers one at a time.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/toonslate/toonslate-backend/internal/redisstore"
)

// DefaultKey is the list the translation workers consume.
const DefaultKey = "queue:translate"

// Task is one unit of worker work. Only the record id travels; everything
// else is read back from the job store.
type Task struct {
	TranslateID string `json:"translate_id"`
}

// Queue pushes and pops tasks on a single Redis list.
type Queue struct {
	store *redisstore.Client
	key   string
}

// New returns a queue over the given list key. An empty key uses
// DefaultKey.
func New(store *redisstore.Client, key string) *Queue {
	if key == "" {
		key = DefaultKey
	}
	return &Queue{store: store, key: key}
}

// Enqueue pushes a task for the workers.
func (q *Queue) Enqueue(ctx context.Context, task Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := q.store.LPush(ctx, q.key, string(payload)); err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next task. The second return is
// false when the wait timed out with nothing to do.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (Task, bool, error) {
	payload, found, err := q.store.BRPop(ctx, timeout, q.key)
	if err != nil {
		return Task{}, false, fmt.Errorf("dequeue task: %w", err)
	}
	if !found {
		return Task{}, false, nil
	}

	var task Task
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		return Task{}, false, fmt.Errorf("malformed task payload: %w", err)
	}
	return task, true, nil
}
