package document

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/quillchat/quill/internal/log"
)

// Validation runs before any database access, so a store without a pool
// is enough to exercise the rejection paths.
func TestSaveValidation(t *testing.T) {
	s := &Store{logger: log.NewNop()}
	chatID, userID := uuid.New(), uuid.New()

	_, err := s.Save(context.Background(), chatID, userID, "", KindText, "content")
	if !errors.Is(err, ErrTitleMissing) {
		t.Errorf("empty title: err = %v, want ErrTitleMissing", err)
	}

	_, err = s.Save(context.Background(), chatID, userID, "notes", "spreadsheet", "content")
	if !errors.Is(err, ErrInvalidKind) {
		t.Errorf("bad kind: err = %v, want ErrInvalidKind", err)
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(nil, log.NewNop()); err == nil {
		t.Error("New(nil pool) should fail")
	}
}
