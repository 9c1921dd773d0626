package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/quillchat/quill/internal/auth"
	"github.com/quillchat/quill/internal/document"
	"github.com/quillchat/quill/internal/log"
)

// DocumentStore is the document persistence capability the handlers need.
// Implemented by *document.Store.
type DocumentStore interface {
	Save(ctx context.Context, chatID, userID uuid.UUID, title, kind, content string) (*document.Document, error)
	Get(ctx context.Context, documentID, userID uuid.UUID) (*document.Document, error)
	ListByChat(ctx context.Context, chatID, userID uuid.UUID) ([]*document.Document, error)
	Delete(ctx context.Context, documentID, userID uuid.UUID) error
}

type documentsHandler struct {
	store  DocumentStore
	logger log.Logger
}

type saveDocumentRequest struct {
	ChatID  string `json:"chatId"`
	Title   string `json:"title"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

// save upserts a document; an existing (chat, title) pair gets a version
// bump instead of a duplicate.
func (h *documentsHandler) save(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", h.logger)
		return
	}

	var req saveDocumentRequest
	if err := decodeJSON(w, r, &req, maxJSONBody); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}
	chatID, err := uuid.Parse(req.ChatID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_chat_id", "invalid chat ID", h.logger)
		return
	}

	d, err := h.store.Save(r.Context(), chatID, identity.UserID, req.Title, req.Kind, req.Content)
	switch {
	case errors.Is(err, document.ErrTitleMissing):
		writeError(w, http.StatusBadRequest, "missing_title", "title is required", h.logger)
		return
	case errors.Is(err, document.ErrInvalidKind):
		writeError(w, http.StatusBadRequest, "invalid_kind", "kind must be text or code", h.logger)
		return
	case errors.Is(err, document.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "document not found", h.logger)
		return
	case err != nil:
		h.logger.Error("document save failed", "chat_id", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "save_failed", "failed to save document", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, d, h.logger)
}

func (h *documentsHandler) get(w http.ResponseWriter, r *http.Request) {
	identity, documentID, ok := h.identityAndDocumentID(w, r)
	if !ok {
		return
	}

	d, err := h.store.Get(r.Context(), documentID, identity.UserID)
	if errors.Is(err, document.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "document not found", h.logger)
		return
	}
	if err != nil {
		h.logger.Error("document get failed", "document_id", documentID, "error", err)
		writeError(w, http.StatusInternalServerError, "get_failed", "failed to get document", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, d, h.logger)
}

func (h *documentsHandler) listByChat(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", h.logger)
		return
	}

	chatID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid chat ID", h.logger)
		return
	}

	docs, err := h.store.ListByChat(r.Context(), chatID, identity.UserID)
	if err != nil {
		h.logger.Error("document list failed", "chat_id", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list documents", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"documents": docs, "count": len(docs)}, h.logger)
}

func (h *documentsHandler) delete(w http.ResponseWriter, r *http.Request) {
	identity, documentID, ok := h.identityAndDocumentID(w, r)
	if !ok {
		return
	}

	err := h.store.Delete(r.Context(), documentID, identity.UserID)
	if errors.Is(err, document.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "document not found", h.logger)
		return
	}
	if err != nil {
		h.logger.Error("document delete failed", "document_id", documentID, "error", err)
		writeError(w, http.StatusInternalServerError, "delete_failed", "failed to delete document", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"}, h.logger)
}

func (h *documentsHandler) identityAndDocumentID(w http.ResponseWriter, r *http.Request) (auth.Identity, uuid.UUID, bool) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", h.logger)
		return auth.Identity{}, uuid.Nil, false
	}

	documentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid document ID", h.logger)
		return auth.Identity{}, uuid.Nil, false
	}
	return identity, documentID, true
}
