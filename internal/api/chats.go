package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/quillchat/quill/internal/activity"
	"github.com/quillchat/quill/internal/auth"
	"github.com/quillchat/quill/internal/chat"
	"github.com/quillchat/quill/internal/log"
)

// ChatStore is the chat persistence capability the handlers need.
// Implemented by *chat.Store.
type ChatStore interface {
	Create(ctx context.Context, userID uuid.UUID, title string) (*chat.Chat, error)
	Get(ctx context.Context, chatID, userID uuid.UUID) (*chat.Chat, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]*chat.Chat, error)
	Rename(ctx context.Context, chatID, userID uuid.UUID, title string) error
	Delete(ctx context.Context, chatID, userID uuid.UUID) error
	AddMessages(ctx context.Context, chatID, userID uuid.UUID, messages []*chat.Message) error
	Messages(ctx context.Context, chatID, userID uuid.UUID, limit, offset int32) ([]*chat.Message, error)
}

type chatsHandler struct {
	store    ChatStore
	activity ActivityLog
	logger   log.Logger
}

type createChatRequest struct {
	Title string `json:"title"`
}

func (h *chatsHandler) create(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", h.logger)
		return
	}

	var req createChatRequest
	if err := decodeJSON(w, r, &req, maxJSONBody); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}

	c, err := h.store.Create(r.Context(), identity.UserID, req.Title)
	if err != nil {
		h.logger.Error("chat create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "create_failed", "failed to create chat", h.logger)
		return
	}

	h.activity.Record(r.Context(), identity.UserID, activity.ActionChatCreate, c.ID.String(), nil)
	writeJSON(w, http.StatusCreated, c, h.logger)
}

func (h *chatsHandler) list(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", h.logger)
		return
	}

	limit, offset := pagination(r)
	chats, err := h.store.List(r.Context(), identity.UserID, limit, offset)
	if err != nil {
		h.logger.Error("chat list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list chats", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"chats": chats, "count": len(chats)}, h.logger)
}

func (h *chatsHandler) get(w http.ResponseWriter, r *http.Request) {
	identity, chatID, ok := h.identityAndChatID(w, r)
	if !ok {
		return
	}

	c, err := h.store.Get(r.Context(), chatID, identity.UserID)
	if errors.Is(err, chat.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "chat not found", h.logger)
		return
	}
	if err != nil {
		h.logger.Error("chat get failed", "chat_id", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "get_failed", "failed to get chat", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, c, h.logger)
}

type renameChatRequest struct {
	Title string `json:"title"`
}

func (h *chatsHandler) rename(w http.ResponseWriter, r *http.Request) {
	identity, chatID, ok := h.identityAndChatID(w, r)
	if !ok {
		return
	}

	var req renameChatRequest
	if err := decodeJSON(w, r, &req, maxJSONBody); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}

	err := h.store.Rename(r.Context(), chatID, identity.UserID, req.Title)
	if errors.Is(err, chat.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "chat not found", h.logger)
		return
	}
	if err != nil {
		h.logger.Error("chat rename failed", "chat_id", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "rename_failed", "failed to rename chat", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "renamed"}, h.logger)
}

func (h *chatsHandler) delete(w http.ResponseWriter, r *http.Request) {
	identity, chatID, ok := h.identityAndChatID(w, r)
	if !ok {
		return
	}

	err := h.store.Delete(r.Context(), chatID, identity.UserID)
	if errors.Is(err, chat.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "chat not found", h.logger)
		return
	}
	if err != nil {
		h.logger.Error("chat delete failed", "chat_id", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "delete_failed", "failed to delete chat", h.logger)
		return
	}

	h.activity.Record(r.Context(), identity.UserID, activity.ActionChatDelete, chatID.String(), nil)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"}, h.logger)
}

type addMessagesRequest struct {
	Messages []struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"messages"`
}

func (h *chatsHandler) addMessages(w http.ResponseWriter, r *http.Request) {
	identity, chatID, ok := h.identityAndChatID(w, r)
	if !ok {
		return
	}

	var req addMessagesRequest
	if err := decodeJSON(w, r, &req, maxJSONBody); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "missing_messages", "messages must not be empty", h.logger)
		return
	}

	messages := make([]*chat.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, &chat.Message{Role: m.Role, Content: m.Content})
	}

	err := h.store.AddMessages(r.Context(), chatID, identity.UserID, messages)
	switch {
	case errors.Is(err, chat.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "chat not found", h.logger)
		return
	case errors.Is(err, chat.ErrInvalidRole):
		writeError(w, http.StatusBadRequest, "invalid_role", "message role must be user, assistant or system", h.logger)
		return
	case err != nil:
		h.logger.Error("add messages failed", "chat_id", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "append_failed", "failed to append messages", h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"status": "appended", "count": len(messages)}, h.logger)
}

func (h *chatsHandler) messages(w http.ResponseWriter, r *http.Request) {
	identity, chatID, ok := h.identityAndChatID(w, r)
	if !ok {
		return
	}

	limit, offset := pagination(r)
	messages, err := h.store.Messages(r.Context(), chatID, identity.UserID, limit, offset)
	if errors.Is(err, chat.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "chat not found", h.logger)
		return
	}
	if err != nil {
		h.logger.Error("list messages failed", "chat_id", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list messages", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": messages, "count": len(messages)}, h.logger)
}

// identityAndChatID extracts the authenticated identity and the {id} path
// value, writing the error response itself when either is missing.
func (h *chatsHandler) identityAndChatID(w http.ResponseWriter, r *http.Request) (auth.Identity, uuid.UUID, bool) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", h.logger)
		return auth.Identity{}, uuid.Nil, false
	}

	chatID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid chat ID", h.logger)
		return auth.Identity{}, uuid.Nil, false
	}
	return identity, chatID, true
}

// pagination reads limit/offset query parameters, leaving normalization
// to the store.
func pagination(r *http.Request) (limit, offset int32) {
	if v, err := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 32); err == nil {
		limit = int32(v)
	}
	if v, err := strconv.ParseInt(r.URL.Query().Get("offset"), 10, 32); err == nil {
		offset = int32(v)
	}
	return limit, offset
}
