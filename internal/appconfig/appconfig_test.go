package appconfig

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/quillchat/quill/internal/log"
)

func TestValidKey(t *testing.T) {
	valid := []string{"files", "files.max_batch", "a.b.c", "retention_days"}
	for _, key := range valid {
		if !ValidKey(key) {
			t.Errorf("ValidKey(%q) = false", key)
		}
	}

	invalid := []string{"", ".files", "files.", "Files", "files..max", "1abc",
		"files-max", strings.Repeat("k", 129)}
	for _, key := range invalid {
		if ValidKey(key) {
			t.Errorf("ValidKey(%q) = true", key)
		}
	}
}

// Validation runs before any database access.
func TestSetValidation(t *testing.T) {
	s := &Store{logger: log.NewNop()}
	ctx := context.Background()
	admin := uuid.New()

	if err := s.Set(ctx, "Bad Key", json.RawMessage(`1`), admin); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("bad key: err = %v, want ErrInvalidKey", err)
	}

	huge := json.RawMessage(`"` + strings.Repeat("x", MaxValueBytes) + `"`)
	if err := s.Set(ctx, "files.limit", huge, admin); !errors.Is(err, ErrValueTooLarge) {
		t.Errorf("oversized value: err = %v, want ErrValueTooLarge", err)
	}

	if err := s.Set(ctx, "files.limit", json.RawMessage(`{broken`), admin); err == nil {
		t.Error("malformed JSON value should be rejected")
	}
}
