// Package appconfig stores runtime-adjustable configuration as JSON
// key-values in PostgreSQL. These are operator knobs changed through the
// admin API, distinct from the process configuration in internal/config
// which is fixed at startup.
package appconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillchat/quill/internal/log"
)

// MaxValueBytes caps one config value. Values are operator knobs, not
// document storage.
const MaxValueBytes = 64 << 10 // 64 KiB

// Sentinel errors for config operations. Check with errors.Is.
var (
	ErrNotFound      = errors.New("config key not found")
	ErrInvalidKey    = errors.New("invalid config key")
	ErrValueTooLarge = errors.New("config value too large")
)

// keyPattern permits dotted lowercase identifiers, e.g. "files.max_batch".
var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)*$`)

// Entry is one stored config value with its audit fields.
type Entry struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UpdatedBy uuid.UUID       `json:"updatedBy"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Store manages runtime config persistence. Safe for concurrent use.
type Store struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// New creates a Store backed by the given pool.
func New(pool *pgxpool.Pool, logger log.Logger) (*Store, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Get retrieves one config entry by key.
func (s *Store) Get(ctx context.Context, key string) (*Entry, error) {
	if !ValidKey(key) {
		return nil, fmt.Errorf("key %q: %w", key, ErrInvalidKey)
	}

	var e Entry
	var updatedBy *uuid.UUID
	err := s.pool.QueryRow(ctx, `
		SELECT key, value, updated_by, updated_at
		FROM app_config
		WHERE key = $1`,
		key,
	).Scan(&e.Key, &e.Value, &updatedBy, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("key %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting config %q: %w", key, err)
	}
	if updatedBy != nil {
		e.UpdatedBy = *updatedBy
	}
	return &e, nil
}

// Set upserts one config entry, recording who changed it.
func (s *Store) Set(ctx context.Context, key string, value json.RawMessage, updatedBy uuid.UUID) error {
	if !ValidKey(key) {
		return fmt.Errorf("key %q: %w", key, ErrInvalidKey)
	}
	if len(value) > MaxValueBytes {
		return fmt.Errorf("key %q (%d bytes): %w", key, len(value), ErrValueTooLarge)
	}
	if !json.Valid(value) {
		return fmt.Errorf("key %q: value is not valid JSON", key)
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO app_config (key, value, updated_by, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
		    updated_by = EXCLUDED.updated_by,
		    updated_at = now()`,
		key, value, updatedBy,
	)
	if err != nil {
		return fmt.Errorf("setting config %q: %w", key, err)
	}

	s.logger.Info("runtime config changed", "key", key, "updated_by", updatedBy)
	return nil
}

// List returns all config entries ordered by key.
func (s *Store) List(ctx context.Context) ([]*Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT key, value, updated_by, updated_at
		FROM app_config
		ORDER BY key`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing config: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var updatedBy *uuid.UUID
		if err := rows.Scan(&e.Key, &e.Value, &updatedBy, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning config row: %w", err)
		}
		if updatedBy != nil {
			e.UpdatedBy = *updatedBy
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing config: %w", err)
	}
	return entries, nil
}

// Delete removes one config entry.
func (s *Store) Delete(ctx context.Context, key string) error {
	if !ValidKey(key) {
		return fmt.Errorf("key %q: %w", key, ErrInvalidKey)
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM app_config WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("deleting config %q: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("key %q: %w", key, ErrNotFound)
	}
	return nil
}

// ValidKey reports whether key is a dotted lowercase identifier.
func ValidKey(key string) bool {
	return len(key) <= 128 && keyPattern.MatchString(key)
}
