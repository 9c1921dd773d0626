// Package extract turns a fetchable file into a text representation
// suitable for LLM context building.
//
// The representation depends on the declared media type: plain text passes
// through, JSON is pretty-printed, source code is fenced with a language
// tag, and opaque formats (images, PDFs, other binaries) become a short
// descriptive placeholder so the file is still acknowledged in context.
//
// Extraction is the expensive half of file resolution (network fetch plus
// parsing); its results are what internal/filecache holds on to.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/quillchat/quill/internal/log"
)

const (
	// FetchTimeout bounds the whole fetch of one file.
	FetchTimeout = 30 * time.Second

	// MaxContentBytes caps how much of a file is read. Anything past the
	// cap is truncated with a marker rather than failing the extraction.
	MaxContentBytes = 10 << 20 // 10 MiB
)

// ErrFetchFailed indicates the signed URL could not be fetched.
var ErrFetchFailed = errors.New("fetch failed")

// languageByExt maps file extensions to fence language tags. Only common
// chat-attachment languages; anything else fences untagged.
var languageByExt = map[string]string{
	".go":   "go",
	".js":   "javascript",
	".ts":   "typescript",
	".tsx":  "tsx",
	".jsx":  "jsx",
	".py":   "python",
	".rb":   "ruby",
	".rs":   "rust",
	".java": "java",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".cs":   "csharp",
	".sh":   "bash",
	".sql":  "sql",
	".yaml": "yaml",
	".yml":  "yaml",
	".toml": "toml",
	".css":  "css",
	".html": "html",
}

// codeMediaTypes are media types rendered as fenced code regardless of
// file extension.
var codeMediaTypes = map[string]bool{
	"application/javascript": true,
	"application/typescript": true,
	"application/x-python":   true,
	"text/x-python":          true,
	"text/x-go":              true,
	"application/x-sh":       true,
	"application/xml":        true,
}

// Extractor fetches file content over HTTP and renders it as text.
// Safe for concurrent use.
type Extractor struct {
	client *http.Client
	logger log.Logger
}

// New creates an Extractor. A nil client gets a default with FetchTimeout;
// a nil logger falls back to slog.Default.
func New(client *http.Client, logger log.Logger) *Extractor {
	if client == nil {
		client = &http.Client{Timeout: FetchTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{client: client, logger: logger}
}

// Extract fetches url and returns the text representation of the file.
//
// Opaque formats (images, PDFs) skip the fetch entirely: their placeholder
// depends only on name and media type, and downloading megabytes to throw
// them away would defeat the point of the cache in front of this.
func (e *Extractor) Extract(ctx context.Context, url, name, mediaType string) (string, error) {
	mt := normalizeMediaType(mediaType)

	switch {
	case strings.HasPrefix(mt, "image/"):
		return fmt.Sprintf("[Image: %s (%s)]", name, mt), nil
	case mt == "application/pdf":
		return fmt.Sprintf("[PDF document: %s]", name), nil
	}

	if !isTextual(mt, name) {
		return fmt.Sprintf("[Binary file: %s (%s)]", name, mt), nil
	}

	body, truncated, err := e.fetch(ctx, url)
	if err != nil {
		return "", err
	}

	text := renderText(body, name, mt)
	if truncated {
		text += "\n[Content truncated]"
	}
	return text, nil
}

// fetch downloads at most MaxContentBytes+1 from url, reporting whether
// the content was cut off.
func (e *Extractor) fetch(ctx context.Context, url string) (body []byte, truncated bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("%w: building request: %v", ErrFetchFailed, err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			e.logger.Debug("closing fetch body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("%w: unexpected status %d", ErrFetchFailed, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxContentBytes+1))
	if err != nil {
		return nil, false, fmt.Errorf("%w: reading body: %v", ErrFetchFailed, err)
	}
	if len(data) > MaxContentBytes {
		return data[:MaxContentBytes], true, nil
	}
	return data, false, nil
}

// renderText formats fetched bytes according to media type.
func renderText(body []byte, name, mediaType string) string {
	switch {
	case mediaType == "application/json":
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, body, "", "  "); err != nil {
			// Malformed JSON still renders; the model sees what the user sent.
			return string(body)
		}
		return pretty.String()
	case isCode(mediaType, name):
		lang := languageByExt[strings.ToLower(path.Ext(name))]
		return "```" + lang + "\n" + strings.TrimRight(string(body), "\n") + "\n```"
	default:
		return string(body)
	}
}

// isTextual reports whether the media type (or file extension, as a
// fallback for generic octet-stream uploads) is worth fetching as text.
func isTextual(mediaType, name string) bool {
	if strings.HasPrefix(mediaType, "text/") {
		return true
	}
	if mediaType == "application/json" || codeMediaTypes[mediaType] {
		return true
	}
	_, known := languageByExt[strings.ToLower(path.Ext(name))]
	return known
}

// isCode reports whether content should be fenced.
func isCode(mediaType, name string) bool {
	if codeMediaTypes[mediaType] {
		return true
	}
	if strings.HasPrefix(mediaType, "text/") && mediaType != "text/plain" &&
		mediaType != "text/markdown" && mediaType != "text/csv" && mediaType != "text/html" {
		return true
	}
	_, known := languageByExt[strings.ToLower(path.Ext(name))]
	return known && !strings.HasPrefix(mediaType, "text/plain")
}

// normalizeMediaType strips parameters ("text/plain; charset=utf-8") and
// lowercases the type. Empty becomes application/octet-stream.
func normalizeMediaType(mediaType string) string {
	mt, _, _ := strings.Cut(mediaType, ";")
	mt = strings.ToLower(strings.TrimSpace(mt))
	if mt == "" {
		return "application/octet-stream"
	}
	return mt
}
