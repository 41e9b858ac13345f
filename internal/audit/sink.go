// Package audit forwards best-effort audit events to an external log store.
// Delivery is at-most-once: enqueue failures are reported to the caller for
// logging and never retried.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task routing for the worker.
const (
	TaskTypeRecord = "audit:record"
	Queue          = "audit"
)

// Streams separate user lifecycle events from catalog events.
const (
	StreamUsers = "users"
	StreamBooks = "books"
)

// Envelope is the task payload carried through the queue.
type Envelope struct {
	Stream  string         `json:"stream"`
	Payload map[string]any `json:"payload"`
}

// Sink accepts audit events. Implementations must not block on downstream
// failures beyond the enqueue itself.
type Sink interface {
	Write(ctx context.Context, stream string, payload map[string]any) error
}

// AsynqSink enqueues audit events onto a Redis-backed task queue.
type AsynqSink struct {
	client *asynq.Client
}

// NewAsynqSink constructs an AsynqSink.
func NewAsynqSink(client *asynq.Client) *AsynqSink {
	return &AsynqSink{client: client}
}

// Write enqueues one event. MaxRetry(0) keeps delivery at-most-once.
func (s *AsynqSink) Write(ctx context.Context, stream string, payload map[string]any) error {
	raw, err := json.Marshal(Envelope{Stream: stream, Payload: payload})
	if err != nil {
		return fmt.Errorf("audit: marshal envelope: %w", err)
	}
	task := asynq.NewTask(TaskTypeRecord, raw)
	if _, err := s.client.EnqueueContext(ctx, task, asynq.Queue(Queue), asynq.MaxRetry(0)); err != nil {
		return fmt.Errorf("audit: enqueue: %w", err)
	}
	return nil
}

var _ Sink = (*AsynqSink)(nil)

// NopSink discards events. Used when the queue is not configured.
type NopSink struct{}

// Write implements Sink.
func (NopSink) Write(context.Context, string, map[string]any) error { return nil }
