package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillchat/quill/internal/chat"
)

func createChat(t *testing.T, env *testEnv, title string) chat.Chat {
	t.Helper()

	var c chat.Chat
	resp := env.do(t, http.MethodPost, "/api/chats", userToken,
		strings.NewReader(`{"title":"`+title+`"}`), &c)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return c
}

func TestChatLifecycle(t *testing.T) {
	env := newTestEnv(t)

	created := createChat(t, env, "notes")
	assert.Equal(t, "notes", created.Title)
	assert.Equal(t, testUserID, created.UserID)

	var got chat.Chat
	resp := env.do(t, http.MethodGet, "/api/chats/"+created.ID.String(), userToken, nil, &got)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created.ID, got.ID)

	resp = env.do(t, http.MethodPatch, "/api/chats/"+created.ID.String(), userToken,
		strings.NewReader(`{"title":"renamed"}`), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var list struct {
		Chats []chat.Chat `json:"chats"`
		Count int         `json:"count"`
	}
	resp = env.do(t, http.MethodGet, "/api/chats", userToken, nil, &list)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "renamed", list.Chats[0].Title)

	resp = env.do(t, http.MethodDelete, "/api/chats/"+created.ID.String(), userToken, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/chats/"+created.ID.String(), userToken, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestChatInvalidID(t *testing.T) {
	env := newTestEnv(t)

	var body errorBody
	resp := env.do(t, http.MethodGet, "/api/chats/not-a-uuid", userToken, nil, &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_id", body.Error.Code)
}

func TestChatNotFound(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/chats/"+uuid.NewString(), userToken, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestChatMessages(t *testing.T) {
	env := newTestEnv(t)
	c := createChat(t, env, "notes")

	body := `{"messages":[
		{"role":"user","content":{"text":"hi"}},
		{"role":"assistant","content":{"text":"hello"}}
	]}`
	resp := env.do(t, http.MethodPost, "/api/chats/"+c.ID.String()+"/messages", userToken,
		strings.NewReader(body), nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var list struct {
		Messages []chat.Message `json:"messages"`
		Count    int            `json:"count"`
	}
	resp = env.do(t, http.MethodGet, "/api/chats/"+c.ID.String()+"/messages", userToken, nil, &list)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 2, list.Count)
	assert.Equal(t, "user", list.Messages[0].Role)
	assert.Equal(t, "assistant", list.Messages[1].Role)
}

func TestChatMessagesInvalidRole(t *testing.T) {
	env := newTestEnv(t)
	c := createChat(t, env, "notes")

	body := `{"messages":[{"role":"robot","content":{"text":"hi"}}]}`
	var errBody errorBody
	resp := env.do(t, http.MethodPost, "/api/chats/"+c.ID.String()+"/messages", userToken,
		strings.NewReader(body), &errBody)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_role", errBody.Error.Code)
}

func TestDocumentLifecycle(t *testing.T) {
	env := newTestEnv(t)
	c := createChat(t, env, "notes")

	save := `{"chatId":"` + c.ID.String() + `","title":"draft","kind":"text","content":"v1"}`
	var doc struct {
		ID      uuid.UUID `json:"id"`
		Version int32     `json:"version"`
		Content string    `json:"content"`
	}
	resp := env.do(t, http.MethodPost, "/api/documents", userToken, strings.NewReader(save), &doc)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), doc.Version)

	// Saving the same title again bumps the version.
	save2 := `{"chatId":"` + c.ID.String() + `","title":"draft","kind":"text","content":"v2"}`
	resp = env.do(t, http.MethodPost, "/api/documents", userToken, strings.NewReader(save2), &doc)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), doc.Version)
	assert.Equal(t, "v2", doc.Content)

	resp = env.do(t, http.MethodDelete, "/api/documents/"+doc.ID.String(), userToken, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/documents/"+doc.ID.String(), userToken, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
