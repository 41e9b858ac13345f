// Package jobs runs the asynchronous audit worker.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/shelfmark/shelfmark/internal/audit"
)

// Worker wraps the Asynq server consuming audit events.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

// Recorder persists consumed audit events.
type Recorder interface {
	Record(ctx context.Context, env audit.Envelope) error
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts asynq.RedisClientOpt
	Logger    *slog.Logger
	Recorder  Recorder
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Recorder == nil {
		return nil, errors.New("worker: recorder required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			audit.Queue: 1,
		},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(audit.TaskTypeRecord, recordHandler(logger, cfg.Recorder))

	return &Worker{server: srv, mux: mux, logger: logger}, nil
}

// recordHandler writes one audit event. Delivery is at-most-once: failures
// are logged and the task is dropped, never retried.
func recordHandler(logger *slog.Logger, recorder Recorder) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var env audit.Envelope
		if err := json.Unmarshal(task.Payload(), &env); err != nil {
			logger.Warn("decode audit task", slog.Any("error", err))
			return nil
		}
		if err := recorder.Record(ctx, env); err != nil {
			logger.Warn("record audit event", slog.String("stream", env.Stream), slog.Any("error", err))
		}
		return nil
	}
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
