package extract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/quillchat/quill/internal/log"
)

// serve returns a test server responding with body and status for any path.
func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExtractPlainText(t *testing.T) {
	srv := serve(t, http.StatusOK, "hello world")
	e := New(srv.Client(), log.NewNop())

	got, err := e.Extract(context.Background(), srv.URL, "notes.txt", "text/plain")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "hello world" {
		t.Errorf("Extract = %q, want %q", got, "hello world")
	}
}

func TestExtractJSONPrettyPrints(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"a":1,"b":[2,3]}`)
	e := New(srv.Client(), log.NewNop())

	got, err := e.Extract(context.Background(), srv.URL, "data.json", "application/json")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(got, "\n  \"a\": 1") {
		t.Errorf("JSON not pretty-printed:\n%s", got)
	}
}

func TestExtractMalformedJSONFallsBack(t *testing.T) {
	srv := serve(t, http.StatusOK, `{not json`)
	e := New(srv.Client(), log.NewNop())

	got, err := e.Extract(context.Background(), srv.URL, "data.json", "application/json")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "{not json" {
		t.Errorf("malformed JSON should pass through raw, got %q", got)
	}
}

func TestExtractCodeFenced(t *testing.T) {
	srv := serve(t, http.StatusOK, "package main\n")
	e := New(srv.Client(), log.NewNop())

	got, err := e.Extract(context.Background(), srv.URL, "main.go", "text/x-go")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.HasPrefix(got, "```go\n") || !strings.HasSuffix(got, "\n```") {
		t.Errorf("code not fenced with language tag:\n%s", got)
	}
}

func TestExtractOpaqueFormatsSkipFetch(t *testing.T) {
	// A server that fails loudly proves the fetch is skipped.
	srv := serve(t, http.StatusInternalServerError, "must not be fetched")
	e := New(srv.Client(), log.NewNop())

	tests := []struct {
		name      string
		mediaType string
		want      string
	}{
		{"photo.png", "image/png", "[Image: photo.png (image/png)]"},
		{"report.pdf", "application/pdf", "[PDF document: report.pdf]"},
		{"blob.bin", "application/octet-stream", "[Binary file: blob.bin (application/octet-stream)]"},
	}
	for _, tt := range tests {
		got, err := e.Extract(context.Background(), srv.URL, tt.name, tt.mediaType)
		if err != nil {
			t.Errorf("%s: Extract returned error %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestExtractFetchFailure(t *testing.T) {
	srv := serve(t, http.StatusForbidden, "expired signature")
	e := New(srv.Client(), log.NewNop())

	_, err := e.Extract(context.Background(), srv.URL, "notes.txt", "text/plain")
	if !errors.Is(err, ErrFetchFailed) {
		t.Errorf("Extract = %v, want ErrFetchFailed", err)
	}
}

func TestExtractRespectsContextCancellation(t *testing.T) {
	srv := serve(t, http.StatusOK, "never read")
	e := New(srv.Client(), log.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Extract(ctx, srv.URL, "notes.txt", "text/plain")
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestNormalizeMediaType(t *testing.T) {
	tests := []struct{ in, want string }{
		{"text/plain; charset=utf-8", "text/plain"},
		{"TEXT/HTML", "text/html"},
		{"", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := normalizeMediaType(tt.in); got != tt.want {
			t.Errorf("normalizeMediaType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
