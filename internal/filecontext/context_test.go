package filecontext

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/quillchat/quill/internal/blob"
)

func TestBuildContextEmpty(t *testing.T) {
	r, _ := newTestResolver(t, &fakeBlob{}, &fakeExtractor{})
	if got := r.BuildContext(context.Background(), "u1", "c1", nil); got != "" {
		t.Errorf("BuildContext(nil) = %q, want empty", got)
	}
}

func TestBuildContextFormatsResolvedFiles(t *testing.T) {
	fb := &fakeBlob{statInfo: blob.ObjectInfo{Size: 11, ContentType: "text/plain"}}
	fe := &fakeExtractor{result: "hello world"}
	r, _ := newTestResolver(t, fb, fe)

	got := r.BuildContext(context.Background(), "u1", "c1", []FileRef{textRef()})

	if !strings.HasPrefix(got, "Attached files:\n\n") {
		t.Errorf("missing header:\n%s", got)
	}
	if !strings.Contains(got, "File: f1.txt (text/plain, 11 bytes, uploaded ") {
		t.Errorf("missing metadata line:\n%s", got)
	}
	if !strings.Contains(got, "hello world\n---\n") {
		t.Errorf("missing content block:\n%s", got)
	}
}

func TestBuildContextIncludesFailedFiles(t *testing.T) {
	fb := &fakeBlob{signErr: errors.New("store down")}
	fe := &fakeExtractor{}
	r, _ := newTestResolver(t, fb, fe)

	got := r.BuildContext(context.Background(), "u1", "c1", []FileRef{textRef()})
	if !strings.Contains(got, "File: f1.txt [unavailable: unavailable]") {
		t.Errorf("failed file not acknowledged:\n%s", got)
	}
}

func TestPreviewTruncation(t *testing.T) {
	longJSON := "{" + strings.Repeat("x", MaxJSONPreview*2) + "}"
	longBinary := strings.Repeat("b", MaxBinaryPreview*2)
	longText := strings.Repeat("t", MaxJSONPreview*2)

	tests := []struct {
		name        string
		content     string
		contentType string
		truncated   bool
	}{
		{"json over limit", longJSON, "application/json", true},
		{"json under limit", `{"a":1}`, "application/json", false},
		{"binary over limit", longBinary, "application/octet-stream", true},
		{"text never truncated", longText, "text/plain", false},
		{"code never truncated", "```go\n" + longText + "\n```", "application/octet-stream", false},
	}
	for _, tt := range tests {
		got := preview(tt.content, tt.contentType)
		if truncated := strings.HasSuffix(got, "[Preview truncated]"); truncated != tt.truncated {
			t.Errorf("%s: truncated = %v, want %v", tt.name, truncated, tt.truncated)
		}
		if !tt.truncated && got != tt.content {
			t.Errorf("%s: content altered without truncation", tt.name)
		}
	}
}

func TestPreviewTruncationKeepsValidUTF8(t *testing.T) {
	// Three-byte runes placed so the byte limit lands mid-rune.
	multibyteJSON := strings.Repeat("日", MaxJSONPreview)
	multibyteBinary := strings.Repeat("日", MaxBinaryPreview)

	tests := []struct {
		name        string
		content     string
		contentType string
	}{
		{"json", multibyteJSON, "application/json"},
		{"binary", multibyteBinary, "application/octet-stream"},
	}
	for _, tt := range tests {
		got := preview(tt.content, tt.contentType)
		if !strings.HasSuffix(got, "[Preview truncated]") {
			t.Errorf("%s: expected truncation, got %d bytes", tt.name, len(got))
		}
		if !utf8.ValidString(got) {
			t.Errorf("%s: truncated preview is not valid UTF-8", tt.name)
		}
		body := strings.TrimSuffix(got, "\n[Preview truncated]")
		if !strings.HasPrefix(tt.content, body) {
			t.Errorf("%s: truncated preview is not a prefix of the content", tt.name)
		}
	}
}
