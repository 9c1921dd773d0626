package filecontext

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Preview truncation thresholds for context building. Text and source code
// go in whole (the extractor already caps raw size); structured and opaque
// formats only need enough to identify themselves.
const (
	MaxJSONPreview   = 1000
	MaxBinaryPreview = 500
)

// BuildContext resolves the given attachments and concatenates them into a
// single formatted text block for inclusion in generation context. Files
// that fail to resolve still appear, as a named placeholder line, so the
// conversation never silently loses an acknowledged attachment.
func (r *Resolver) BuildContext(ctx context.Context, userID, chatID string, refs []FileRef) string {
	if len(refs) == 0 {
		return ""
	}

	result := r.Resolve(ctx, userID, chatID, refs)

	failed := make(map[string]FileError, len(result.Errors))
	for _, fe := range result.Errors {
		failed[fe.Path] = fe
	}
	resolved := make(map[string]int, len(result.Files))
	for i, entry := range result.Files {
		resolved[entry.StoragePath] = i
	}

	var b strings.Builder
	b.WriteString("Attached files:\n\n")
	for _, ref := range refs {
		if i, ok := resolved[ref.StoragePath]; ok {
			entry := result.Files[i]
			fmt.Fprintf(&b, "File: %s (%s, %d bytes, uploaded %s)\n",
				entry.FileName, entry.ContentType, entry.Size, entry.UploadedAt)
			b.WriteString(preview(entry.Content, entry.ContentType))
			b.WriteString("\n---\n")
			continue
		}
		if fe, ok := failed[ref.StoragePath]; ok {
			fmt.Fprintf(&b, "File: %s [unavailable: %s]\n---\n", ref.FileName, fe.Code)
		}
	}
	return b.String()
}

// preview truncates content according to its media type.
func preview(content, contentType string) string {
	limit := 0
	switch {
	case contentType == "application/json":
		limit = MaxJSONPreview
	case strings.HasPrefix(contentType, "text/"), isFenced(content):
		// Full content for text and code.
	default:
		limit = MaxBinaryPreview
	}

	if limit == 0 || len(content) <= limit {
		return content
	}
	// Back the cut point off to a rune boundary so truncation never emits
	// invalid UTF-8.
	for limit > 0 && !utf8.RuneStart(content[limit]) {
		limit--
	}
	return content[:limit] + "\n[Preview truncated]"
}

// isFenced reports whether extracted content is a code fence, which the
// extractor produces for source files regardless of declared media type.
func isFenced(content string) bool {
	return strings.HasPrefix(content, "```")
}
