package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/quillchat/quill/internal/activity"
	"github.com/quillchat/quill/internal/appconfig"
	"github.com/quillchat/quill/internal/log"
)

// ConfigStore is the runtime config capability the admin handlers need.
// Implemented by *appconfig.Store.
type ConfigStore interface {
	Get(ctx context.Context, key string) (*appconfig.Entry, error)
	Set(ctx context.Context, key string, value json.RawMessage, updatedBy uuid.UUID) error
	List(ctx context.Context) ([]*appconfig.Entry, error)
	Delete(ctx context.Context, key string) error
}

// ActivityLister exposes the audit trail for admin listing.
// Implemented by *activity.Recorder.
type ActivityLister interface {
	List(ctx context.Context, limit int32) ([]*activity.Event, error)
}

type adminHandler struct {
	config   ConfigStore
	activity ActivityLister
	recorder ActivityLog
	logger   log.Logger
}

func (h *adminHandler) listConfig(w http.ResponseWriter, r *http.Request) {
	entries, err := h.config.List(r.Context())
	if err != nil {
		h.logger.Error("config list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list config", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"config": entries, "count": len(entries)}, h.logger)
}

func (h *adminHandler) getConfig(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	entry, err := h.config.Get(r.Context(), key)
	switch {
	case errors.Is(err, appconfig.ErrInvalidKey):
		writeError(w, http.StatusBadRequest, "invalid_key", "invalid config key", h.logger)
		return
	case errors.Is(err, appconfig.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "config key not found", h.logger)
		return
	case err != nil:
		h.logger.Error("config get failed", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "get_failed", "failed to get config", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, entry, h.logger)
}

type setConfigRequest struct {
	Value json.RawMessage `json:"value"`
}

func (h *adminHandler) setConfig(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", h.logger)
		return
	}
	key := r.PathValue("key")

	var req setConfigRequest
	if err := decodeJSON(w, r, &req, maxJSONBody); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}
	if len(req.Value) == 0 {
		writeError(w, http.StatusBadRequest, "missing_value", "value is required", h.logger)
		return
	}

	err := h.config.Set(r.Context(), key, req.Value, identity.UserID)
	switch {
	case errors.Is(err, appconfig.ErrInvalidKey):
		writeError(w, http.StatusBadRequest, "invalid_key", "invalid config key", h.logger)
		return
	case errors.Is(err, appconfig.ErrValueTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "value_too_large", "config value too large", h.logger)
		return
	case err != nil:
		h.logger.Error("config set failed", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "set_failed", "failed to set config", h.logger)
		return
	}

	h.recorder.Record(r.Context(), identity.UserID, activity.ActionConfigSet, key, req.Value)
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"}, h.logger)
}

func (h *adminHandler) deleteConfig(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	err := h.config.Delete(r.Context(), key)
	switch {
	case errors.Is(err, appconfig.ErrInvalidKey):
		writeError(w, http.StatusBadRequest, "invalid_key", "invalid config key", h.logger)
		return
	case errors.Is(err, appconfig.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "config key not found", h.logger)
		return
	case err != nil:
		h.logger.Error("config delete failed", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "delete_failed", "failed to delete config", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"}, h.logger)
}

func (h *adminHandler) listActivity(w http.ResponseWriter, r *http.Request) {
	var limit int32
	if v, err := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 32); err == nil {
		limit = int32(v)
	}

	events, err := h.activity.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("activity list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list activity", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)}, h.logger)
}
