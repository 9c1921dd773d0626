// Package activity records an append-only audit trail of user actions
// (file uploads, deletions, chat mutations, admin config changes) in
// PostgreSQL. Recording is best-effort: a failed audit write is logged
// but never fails the action being audited.
package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillchat/quill/internal/log"
)

// Actions recorded by the API layer.
const (
	ActionFileUpload   = "file.upload"
	ActionFileDelete   = "file.delete"
	ActionFileRetrieve = "file.retrieve"
	ActionChatCreate   = "chat.create"
	ActionChatDelete   = "chat.delete"
	ActionConfigSet    = "config.set"
)

// DefaultListLimit bounds admin listing when no limit is given.
const DefaultListLimit int32 = 100

// Event is one recorded action.
type Event struct {
	ID        int64           `json:"id"`
	UserID    uuid.UUID       `json:"userId"`
	Action    string          `json:"action"`
	Target    string          `json:"target"`
	Detail    json.RawMessage `json:"detail,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Recorder appends audit events. Safe for concurrent use.
type Recorder struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// New creates a Recorder backed by the given pool.
func New(pool *pgxpool.Pool, logger log.Logger) (*Recorder, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Recorder{pool: pool, logger: logger}, nil
}

// Record appends one event. Failures are swallowed after logging so the
// audited action is never blocked by its audit trail.
func (r *Recorder) Record(ctx context.Context, userID uuid.UUID, action, target string, detail json.RawMessage) {
	if len(detail) > 0 && !json.Valid(detail) {
		r.logger.Warn("dropping activity detail, not valid JSON",
			"action", action, "target", target)
		detail = nil
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO activity_log (user_id, action, target, detail)
		VALUES ($1, $2, $3, $4)`,
		userID, action, target, detail,
	)
	if err != nil {
		r.logger.Warn("failed to record activity",
			"action", action, "target", target, "error", err)
	}
}

// List returns recent events, newest first. Admin use only; the API layer
// enforces the role check.
func (r *Recorder) List(ctx context.Context, limit int32) ([]*Event, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, COALESCE(user_id, '00000000-0000-0000-0000-000000000000'), action, target, detail, created_at
		FROM activity_log
		ORDER BY created_at DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing activity: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Target, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning activity row: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing activity: %w", err)
	}
	return events, nil
}
