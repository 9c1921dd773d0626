package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestParseBearer(t *testing.T) {
	token, err := ParseBearer("Bearer abc123")
	if err != nil || token != "abc123" {
		t.Errorf("ParseBearer = %q, %v", token, err)
	}

	if _, err := ParseBearer(""); !errors.Is(err, ErrMissingToken) {
		t.Errorf("empty header: err = %v, want ErrMissingToken", err)
	}
	if _, err := ParseBearer("Basic dXNlcg=="); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("wrong scheme: err = %v, want ErrInvalidToken", err)
	}
	if _, err := ParseBearer("Bearer "); !errors.Is(err, ErrMissingToken) {
		t.Errorf("empty token: err = %v, want ErrMissingToken", err)
	}
}

func TestHashTokenIsStable(t *testing.T) {
	if HashToken("secret") != HashToken("secret") {
		t.Error("same token must hash identically")
	}
	if HashToken("secret") == HashToken("secret2") {
		t.Error("different tokens must hash differently")
	}
	if got := len(HashToken("secret")); got != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", got)
	}
}

func TestStaticAuthenticator(t *testing.T) {
	admin := Identity{UserID: uuid.New(), Role: RoleAdmin}
	s := Static{"admin-token": admin}

	got, err := s.Authenticate(context.Background(), "admin-token")
	if err != nil || got != admin {
		t.Errorf("Authenticate = %+v, %v", got, err)
	}
	if !got.IsAdmin() {
		t.Error("admin identity should report IsAdmin")
	}

	if _, err := s.Authenticate(context.Background(), "unknown"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("unknown token: err = %v, want ErrInvalidToken", err)
	}
	if _, err := s.Authenticate(context.Background(), ""); !errors.Is(err, ErrMissingToken) {
		t.Errorf("empty token: err = %v, want ErrMissingToken", err)
	}
}
