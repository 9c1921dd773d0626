// Package filecontext resolves chat file references to extracted content,
// reading through the file content cache.
//
// Every caller follows the same refill protocol: cache Get; on miss, mint a
// presigned URL, stat the object, extract the content, then write the fully
// assembled entry back through cache Set. The expensive steps all happen
// here, outside the cache's lock, and concurrent misses for the same
// (user, chat, file) are collapsed to one refill via singleflight.
//
// Failed extraction is cached too, as a named placeholder: a transient
// extraction failure must not cause every later reference within the TTL
// window to repeat the failing fetch. A fresh attempt happens only after
// the entry expires.
//
// Errors are isolated per file so a batch returns partial success: resolved
// entries plus per-file error descriptors, never all-or-nothing.
package filecontext

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/quillchat/quill/internal/blob"
	"github.com/quillchat/quill/internal/filecache"
	"github.com/quillchat/quill/internal/log"
)

// ExtractionFailedFormat renders the placeholder cached when extraction
// fails; the %s is the file name. The file still resolves to something so
// context building and UI rendering keep working.
const ExtractionFailedFormat = "[Failed to extract content from %s]"

// Per-file error codes returned in FileError.Code.
const (
	CodeForbidden   = "forbidden"
	CodeNotFound    = "not_found"
	CodeUnavailable = "unavailable"
)

// FileRef describes one file to resolve.
type FileRef struct {
	// StoragePath is the durable blob path, "<userID>/<fileID>".
	StoragePath string `json:"storagePath"`
	FileName    string `json:"fileName"`

	// ContentType is the declared media type; the blob store's stat result
	// wins when it reports one.
	ContentType string `json:"contentType"`
}

// FileError describes why one file in a batch failed to resolve.
type FileError struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BatchResult carries the partial-success outcome of a batch resolve.
type BatchResult struct {
	Files  []filecache.Entry `json:"files"`
	Errors []FileError       `json:"errors"`
}

// BlobStore is the subset of internal/blob the resolver needs.
// Defined here, on the consumer side, so tests can fake it.
type BlobStore interface {
	SignedURL(ctx context.Context, path string) (string, error)
	Stat(ctx context.Context, path string) (blob.ObjectInfo, error)
}

// Extractor is the content extraction capability the resolver needs.
type Extractor interface {
	Extract(ctx context.Context, url, name, mediaType string) (string, error)
}

// Resolver reads file content through the cache. Safe for concurrent use.
type Resolver struct {
	cache     *filecache.Store
	blob      BlobStore
	extractor Extractor
	group     singleflight.Group
	now       func() time.Time // replaced in tests
	logger    log.Logger
}

// New creates a Resolver. All dependencies are required.
func New(cache *filecache.Store, blobStore BlobStore, extractor Extractor, logger log.Logger) (*Resolver, error) {
	if cache == nil || blobStore == nil || extractor == nil {
		return nil, errors.New("cache, blob store and extractor are required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Resolver{
		cache:     cache,
		blob:      blobStore,
		extractor: extractor,
		now:       time.Now,
		logger:    logger,
	}, nil
}

// Resolve resolves a batch of file references for one (user, chat).
// Ownership is checked before anything else touches the cache or blob
// store; a path outside the user's prefix yields a forbidden descriptor.
// Other failures are recorded per file; the batch never fails wholesale.
func (r *Resolver) Resolve(ctx context.Context, userID, chatID string, refs []FileRef) BatchResult {
	var result BatchResult
	for _, ref := range refs {
		if !blob.OwnedBy(ref.StoragePath, userID) {
			result.Errors = append(result.Errors, FileError{
				Path:    ref.StoragePath,
				Code:    CodeForbidden,
				Message: "storage path does not belong to the requesting user",
			})
			continue
		}

		entry, ferr := r.resolveOne(ctx, userID, chatID, ref)
		if ferr != nil {
			result.Errors = append(result.Errors, *ferr)
			continue
		}
		result.Files = append(result.Files, entry)
	}
	return result
}

// resolveOne returns the cached entry for ref, refilling on miss.
func (r *Resolver) resolveOne(ctx context.Context, userID, chatID string, ref FileRef) (filecache.Entry, *FileError) {
	fileID := blob.FileID(ref.StoragePath)

	if entry, ok := r.cache.Get(userID, chatID, fileID); ok {
		r.logger.Debug("file content cache hit", "path", ref.StoragePath, "chat_id", chatID)
		return entry, nil
	}

	// Collapse concurrent misses for the same key into one refill. The
	// cache itself stays last-write-wins; deduplication is purely a
	// wasted-work optimization here.
	key := filecache.Key(userID, chatID, fileID)
	v, err, shared := r.group.Do(key, func() (any, error) {
		return r.refill(ctx, userID, chatID, fileID, ref)
	})
	if err != nil {
		return filecache.Entry{}, classify(ref.StoragePath, err)
	}
	if shared {
		r.logger.Debug("file refill deduplicated", "path", ref.StoragePath)
	}
	return v.(filecache.Entry), nil
}

// refill performs the miss path: presign, stat, extract, cache.
// A cancelled or timed-out context aborts without writing to the cache, so
// the next request retries cleanly.
func (r *Resolver) refill(ctx context.Context, userID, chatID, fileID string, ref FileRef) (filecache.Entry, error) {
	signedURL, err := r.blob.SignedURL(ctx, ref.StoragePath)
	if err != nil {
		return filecache.Entry{}, fmt.Errorf("signing URL: %w", err)
	}

	info, err := r.blob.Stat(ctx, ref.StoragePath)
	if err != nil {
		return filecache.Entry{}, fmt.Errorf("reading object metadata: %w", err)
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = ref.ContentType
	}
	uploadedAt := info.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = r.now()
	}

	content, err := r.extractor.Extract(ctx, signedURL, ref.FileName, contentType)
	if err != nil {
		// Cache the failure placeholder; see the package doc.
		r.logger.Warn("extraction failed, caching placeholder",
			"path", ref.StoragePath, "error", err)
		content = fmt.Sprintf(ExtractionFailedFormat, ref.FileName)
	}

	if ctx.Err() != nil {
		// Never cache the result of an aborted refill.
		return filecache.Entry{}, fmt.Errorf("refill aborted: %w", ctx.Err())
	}

	now := r.now()
	entry := filecache.Entry{
		Content:     content,
		ContentType: contentType,
		Size:        info.Size,
		FileName:    ref.FileName,
		StoragePath: ref.StoragePath,
		SignedURL:   signedURL,
		UploadedAt:  uploadedAt.Format(time.RFC3339),
		ChatID:      chatID,
		UserID:      userID,
		CachedAt:    now.UnixMilli(),
		ExpiresAt:   now.Add(filecache.TTL).UnixMilli(),
	}
	r.cache.Set(userID, chatID, fileID, entry)
	r.logger.Debug("file content cached",
		"path", ref.StoragePath, "chat_id", chatID, "size", info.Size)
	return entry, nil
}

// Forget drops the cache entry for a deleted file. Called by the delete
// handler after the blob itself is removed.
func (r *Resolver) Forget(userID, chatID, storagePath string) {
	r.cache.Delete(userID, chatID, blob.FileID(storagePath))
}

// classify maps a refill error to a per-file descriptor.
func classify(path string, err error) *FileError {
	code := CodeUnavailable
	if errors.Is(err, blob.ErrNotFound) {
		code = CodeNotFound
	}
	return &FileError{Path: path, Code: code, Message: err.Error()}
}
