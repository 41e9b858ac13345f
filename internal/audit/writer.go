package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Writer persists audit events into audit_logs.
type Writer struct {
	pool *pgxpool.Pool
}

// NewWriter constructs a Writer.
func NewWriter(pool *pgxpool.Pool) *Writer {
	return &Writer{pool: pool}
}

// Record inserts one event row.
func (w *Writer) Record(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env.Payload)
	if err != nil {
		return fmt.Errorf("audit: marshal payload: %w", err)
	}
	_, err = w.pool.Exec(ctx,
		`INSERT INTO audit_logs (id, stream, payload, recorded_at) VALUES ($1, $2, $3, $4)`,
		uuid.New(), env.Stream, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("audit: insert log: %w", err)
	}
	return nil
}
