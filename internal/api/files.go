package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/quillchat/quill/internal/activity"
	"github.com/quillchat/quill/internal/blob"
	"github.com/quillchat/quill/internal/filecache"
	"github.com/quillchat/quill/internal/filecontext"
	"github.com/quillchat/quill/internal/log"
)

const (
	// MaxRetrieveBatch caps how many files one retrieve request may name.
	MaxRetrieveBatch = 20

	// MaxUploadBytes caps one uploaded attachment.
	MaxUploadBytes = 25 << 20 // 25 MiB

	maxJSONBody = 1 << 20 // 1 MiB
)

// FileResolver is the file content resolution capability the handlers
// need. Implemented by *filecontext.Resolver.
type FileResolver interface {
	Resolve(ctx context.Context, userID, chatID string, refs []filecontext.FileRef) filecontext.BatchResult
	Forget(userID, chatID, storagePath string)
}

// FileBlobStore is the blob mutation capability the handlers need.
// Implemented by *blob.Store.
type FileBlobStore interface {
	Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, path string) error
}

// CacheInspector exposes cache introspection for the admin endpoint.
// Implemented by *filecache.Store.
type CacheInspector interface {
	Stats() filecache.Stats
	PurgeExpired() int
}

// ActivityLog records audit events. Implemented by *activity.Recorder.
type ActivityLog interface {
	Record(ctx context.Context, userID uuid.UUID, action, target string, detail json.RawMessage)
}

type filesHandler struct {
	resolver FileResolver
	blob     FileBlobStore
	cache    CacheInspector
	activity ActivityLog
	limiter  *rateLimiter
	logger   log.Logger
}

type retrieveRequest struct {
	ChatID string                `json:"chatId"`
	Files  []filecontext.FileRef `json:"files"`
}

// retrieve resolves a batch of file references to extracted content,
// reading through the cache. Partial failure is normal: the response
// carries resolved entries and per-file errors side by side.
func (h *filesHandler) retrieve(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", h.logger)
		return
	}
	userID := identity.UserID.String()

	if !h.limiter.allow(userID) {
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many retrieve requests", h.logger)
		return
	}

	var req retrieveRequest
	if err := decodeJSON(w, r, &req, maxJSONBody); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}
	if req.ChatID == "" {
		writeError(w, http.StatusBadRequest, "missing_chat_id", "chatId is required", h.logger)
		return
	}
	if len(req.Files) == 0 {
		writeError(w, http.StatusBadRequest, "missing_files", "files must not be empty", h.logger)
		return
	}
	if len(req.Files) > MaxRetrieveBatch {
		writeError(w, http.StatusBadRequest, "batch_too_large",
			fmt.Sprintf("at most %d files per request", MaxRetrieveBatch), h.logger)
		return
	}

	result := h.resolver.Resolve(r.Context(), userID, req.ChatID, req.Files)

	h.activity.Record(r.Context(), identity.UserID, activity.ActionFileRetrieve, req.ChatID, nil)
	writeJSON(w, http.StatusOK, result, h.logger)
}

type deleteRequest struct {
	ChatID      string `json:"chatId"`
	StoragePath string `json:"storagePath"`
}

// delete removes a blob and drops its cache entry. Blob first: a failed
// blob delete leaves the cache entry alone so the file stays usable.
func (h *filesHandler) delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", h.logger)
		return
	}
	userID := identity.UserID.String()

	var req deleteRequest
	if err := decodeJSON(w, r, &req, maxJSONBody); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}
	if req.ChatID == "" || req.StoragePath == "" {
		writeError(w, http.StatusBadRequest, "missing_fields", "chatId and storagePath are required", h.logger)
		return
	}
	if !blob.OwnedBy(req.StoragePath, userID) {
		writeError(w, http.StatusForbidden, "forbidden", "storage path does not belong to the requesting user", h.logger)
		return
	}

	if err := h.blob.Remove(r.Context(), req.StoragePath); err != nil {
		h.logger.Error("blob delete failed", "path", req.StoragePath, "error", err)
		writeError(w, http.StatusInternalServerError, "delete_failed", "failed to delete file", h.logger)
		return
	}
	h.resolver.Forget(userID, req.ChatID, req.StoragePath)

	h.activity.Record(r.Context(), identity.UserID, activity.ActionFileDelete, req.StoragePath, nil)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"}, h.logger)
}

type uploadResponse struct {
	StoragePath string `json:"storagePath"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// upload stores one multipart attachment under the caller's prefix and
// returns the storage path for later retrieve calls.
func (h *filesHandler) upload(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", h.logger)
		return
	}
	userID := identity.UserID.String()

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_upload", "multipart field 'file' is required", h.logger)
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			h.logger.Debug("closing upload part", "error", err)
		}
	}()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(header.Filename))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	// The file ID keeps the original extension so media type can be
	// inferred later even when the upload omitted it.
	fileID := uuid.New().String() + filepath.Ext(header.Filename)
	path := blob.ObjectPath(userID, fileID)

	if err := h.blob.Upload(r.Context(), path, file, header.Size, contentType); err != nil {
		h.logger.Error("blob upload failed", "path", path, "error", err)
		writeError(w, http.StatusInternalServerError, "upload_failed", "failed to store file", h.logger)
		return
	}

	detail, _ := json.Marshal(map[string]any{"fileName": header.Filename, "size": header.Size})
	h.activity.Record(r.Context(), identity.UserID, activity.ActionFileUpload, path, detail)

	writeJSON(w, http.StatusCreated, uploadResponse{
		StoragePath: path,
		FileName:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
	}, h.logger)
}

// cacheStats reports cache occupancy. Admin only; wired behind
// requireAdmin in the server.
func (h *filesHandler) cacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.Stats(), h.logger)
}
