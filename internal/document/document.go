// Package document persists chat-scoped documents (code, text and other
// artifacts produced during a conversation) in PostgreSQL.
//
// Documents are versioned: saving under an existing (chat, title) pair
// replaces the content and bumps the version instead of creating a
// duplicate. All operations are scoped to the owning user.
package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillchat/quill/internal/log"
)

// Document kinds. Kind drives client-side rendering only; the store does
// not interpret content.
const (
	KindText = "text"
	KindCode = "code"
)

// Sentinel errors for document operations. Check with errors.Is.
var (
	ErrNotFound     = errors.New("document not found")
	ErrInvalidKind  = errors.New("invalid document kind")
	ErrTitleMissing = errors.New("document title is required")
)

// Document is one versioned artifact attached to a chat.
type Document struct {
	ID        uuid.UUID `json:"id"`
	ChatID    uuid.UUID `json:"chatId"`
	UserID    uuid.UUID `json:"userId"`
	Title     string    `json:"title"`
	Kind      string    `json:"kind"`
	Content   string    `json:"content"`
	Version   int32     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store manages document persistence. Safe for concurrent use.
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

// Save upserts a document. A new (chat, title) pair starts at version 1;
// saving over an existing pair replaces content and increments version.
func (s *Store) Save(ctx context.Context, chatID, userID uuid.UUID, title, kind, content string) (*Document, error) {
	if title == "" {
		return nil, ErrTitleMissing
	}
	if kind != KindText && kind != KindCode {
		return nil, fmt.Errorf("kind %q: %w", kind, ErrInvalidKind)
	}

	var d Document
	err := s.pool.QueryRow(ctx, `
		INSERT INTO documents (chat_id, user_id, title, kind, content)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chat_id, title) DO UPDATE
		SET content = EXCLUDED.content,
		    kind = EXCLUDED.kind,
		    version = documents.version + 1,
		    updated_at = now()
		WHERE documents.user_id = EXCLUDED.user_id
		RETURNING id, chat_id, user_id, title, kind, content, version, created_at, updated_at`,
		chatID, userID, title, kind, content,
	).Scan(&d.ID, &d.ChatID, &d.UserID, &d.Title, &d.Kind, &d.Content, &d.Version, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// The conflict row belongs to another user; the WHERE clause
		// suppressed the update.
		return nil, fmt.Errorf("document %q in chat %s: %w", title, chatID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("saving document %q: %w", title, err)
	}

	s.logger.Debug("saved document",
		"document_id", d.ID, "chat_id", chatID, "version", d.Version)
	return &d, nil
}

// Get retrieves a document by ID, scoped to its owner.
func (s *Store) Get(ctx context.Context, documentID, userID uuid.UUID) (*Document, error) {
	var d Document
	err := s.pool.QueryRow(ctx, `
		SELECT id, chat_id, user_id, title, kind, content, version, created_at, updated_at
		FROM documents
		WHERE id = $1 AND user_id = $2`,
		documentID, userID,
	).Scan(&d.ID, &d.ChatID, &d.UserID, &d.Title, &d.Kind, &d.Content, &d.Version, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", documentID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting document %s: %w", documentID, err)
	}
	return &d, nil
}

// ListByChat returns all documents in a chat, newest first.
func (s *Store) ListByChat(ctx context.Context, chatID, userID uuid.UUID) ([]*Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, chat_id, user_id, title, kind, content, version, created_at, updated_at
		FROM documents
		WHERE chat_id = $1 AND user_id = $2
		ORDER BY updated_at DESC`,
		chatID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing documents for chat %s: %w", chatID, err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.ChatID, &d.UserID, &d.Title, &d.Kind, &d.Content, &d.Version, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		docs = append(docs, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing documents for chat %s: %w", chatID, err)
	}
	return docs, nil
}

// Delete removes a document, scoped to its owner.
func (s *Store) Delete(ctx context.Context, documentID, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM documents WHERE id = $1 AND user_id = $2`,
		documentID, userID,
	)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", documentID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", documentID, ErrNotFound)
	}

	s.logger.Debug("deleted document", "document_id", documentID, "user_id", userID)
	return nil
}
