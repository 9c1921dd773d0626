// Package chat persists conversations and their messages in PostgreSQL.
//
// Every read and mutation is scoped to the owning user: a chat that exists
// but belongs to someone else behaves exactly like a chat that does not
// exist. Message ordering is enforced with per-chat sequence numbers
// assigned under a row lock.
package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillchat/quill/internal/log"
)

// Store manages chat persistence. Safe for concurrent use.
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

// Create creates a new chat for userID. An empty title is allowed; the UI
// typically names chats after the first message.
func (s *Store) Create(ctx context.Context, userID uuid.UUID, title string) (*Chat, error) {
	var c Chat
	err := s.pool.QueryRow(ctx, `
		INSERT INTO chats (user_id, title)
		VALUES ($1, $2)
		RETURNING id, user_id, COALESCE(title, ''), visibility, created_at, updated_at`,
		userID, nullable(title),
	).Scan(&c.ID, &c.UserID, &c.Title, &c.Visibility, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating chat: %w", err)
	}

	s.logger.Debug("created chat", "chat_id", c.ID, "user_id", userID)
	return &c, nil
}

// Get retrieves a chat by ID, scoped to its owner.
func (s *Store) Get(ctx context.Context, chatID, userID uuid.UUID) (*Chat, error) {
	var c Chat
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, COALESCE(title, ''), visibility, created_at, updated_at
		FROM chats
		WHERE id = $1 AND user_id = $2`,
		chatID, userID,
	).Scan(&c.ID, &c.UserID, &c.Title, &c.Visibility, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("chat %s: %w", chatID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting chat %s: %w", chatID, err)
	}
	return &c, nil
}

// List returns the user's chats ordered by most recently updated.
func (s *Store) List(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]*Chat, error) {
	limit = NormalizeLimit(limit)
	if offset < 0 {
		offset = 0
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, COALESCE(title, ''), visibility, created_at, updated_at
		FROM chats
		WHERE user_id = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing chats: %w", err)
	}
	defer rows.Close()

	var chats []*Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.Visibility, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning chat row: %w", err)
		}
		chats = append(chats, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing chats: %w", err)
	}

	s.logger.Debug("listed chats", "user_id", userID, "count", len(chats))
	return chats, nil
}

// Rename updates a chat's title, scoped to its owner.
func (s *Store) Rename(ctx context.Context, chatID, userID uuid.UUID, title string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE chats SET title = $3, updated_at = now()
		WHERE id = $1 AND user_id = $2`,
		chatID, userID, nullable(title),
	)
	if err != nil {
		return fmt.Errorf("renaming chat %s: %w", chatID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("chat %s: %w", chatID, ErrNotFound)
	}
	return nil
}

// Delete removes a chat and, via CASCADE, its messages and documents.
func (s *Store) Delete(ctx context.Context, chatID, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM chats WHERE id = $1 AND user_id = $2`,
		chatID, userID,
	)
	if err != nil {
		return fmt.Errorf("deleting chat %s: %w", chatID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("chat %s: %w", chatID, ErrNotFound)
	}

	s.logger.Debug("deleted chat", "chat_id", chatID, "user_id", userID)
	return nil
}

// AddMessages appends messages to a chat in one transaction. The chat row
// is locked first so concurrent appends cannot race on sequence numbers.
func (s *Store) AddMessages(ctx context.Context, chatID, userID uuid.UUID, messages []*Message) error {
	if len(messages) == 0 {
		return nil
	}
	for i, m := range messages {
		if !ValidRole(m.Role) {
			return fmt.Errorf("message %d role %q: %w", i, m.Role, ErrInvalidRole)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", err)
		}
	}()

	var owner uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT user_id FROM chats WHERE id = $1 FOR UPDATE`,
		chatID,
	).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && owner != userID) {
		return fmt.Errorf("chat %s: %w", chatID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("locking chat %s: %w", chatID, err)
	}

	var maxSeq int32
	if err := tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(sequence_number), 0) FROM chat_messages WHERE chat_id = $1`,
		chatID,
	).Scan(&maxSeq); err != nil {
		return fmt.Errorf("reading max sequence for chat %s: %w", chatID, err)
	}

	for i, m := range messages {
		seq := maxSeq + int32(i) + 1
		if _, err := tx.Exec(ctx, `
			INSERT INTO chat_messages (chat_id, role, content, sequence_number)
			VALUES ($1, $2, $3, $4)`,
			chatID, m.Role, m.Content, seq,
		); err != nil {
			return fmt.Errorf("inserting message %d: %w", i, err)
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE chats SET updated_at = now() WHERE id = $1`,
		chatID,
	); err != nil {
		return fmt.Errorf("touching chat %s: %w", chatID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing messages: %w", err)
	}

	s.logger.Debug("added messages", "chat_id", chatID, "count", len(messages))
	return nil
}

// Messages retrieves a chat's messages ordered by sequence number.
func (s *Store) Messages(ctx context.Context, chatID, userID uuid.UUID, limit, offset int32) ([]*Message, error) {
	// Ownership check up front: a foreign chat must return ErrNotFound,
	// not an empty message list.
	if _, err := s.Get(ctx, chatID, userID); err != nil {
		return nil, err
	}

	limit = NormalizeLimit(limit)
	if offset < 0 {
		offset = 0
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, chat_id, role, content, sequence_number, created_at
		FROM chat_messages
		WHERE chat_id = $1
		ORDER BY sequence_number ASC
		LIMIT $2 OFFSET $3`,
		chatID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing messages for chat %s: %w", chatID, err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &m.SequenceNumber, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing messages for chat %s: %w", chatID, err)
	}
	return messages, nil
}

// nullable maps an empty string to NULL for optional text columns.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
