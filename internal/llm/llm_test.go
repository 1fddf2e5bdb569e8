package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarvis/internal/fault"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content any    `json:"content"`
	} `json:"messages"`
}

func newServer(t *testing.T, status int, body string, seen *chatRequest) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if seen != nil {
			require.NoError(t, json.Unmarshal(raw, seen))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestClientChat(t *testing.T) {
	var seen chatRequest
	srv := newServer(t, http.StatusOK, `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 1700000000,
		"model": "llama3-70b-8192",
		"choices": [{"index": 0, "finish_reason": "stop",
			"message": {"role": "assistant", "content": "It is noon."}}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 3, "total_tokens": 13}
	}`, &seen)

	c := NewClient(Options{APIKey: "test-key", BaseURL: srv.URL + "/", Model: "llama3-70b-8192"})

	reply, err := c.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "what time is it"},
		{Role: RoleAssistant, Content: "earlier answer"},
		{Role: RoleUser, Content: "again"},
	})
	require.NoError(t, err)

	assert.Equal(t, Message{Role: RoleAssistant, Content: "It is noon."}, reply)

	assert.Equal(t, "llama3-70b-8192", seen.Model)
	require.Len(t, seen.Messages, 4)
	roles := []string{seen.Messages[0].Role, seen.Messages[1].Role, seen.Messages[2].Role, seen.Messages[3].Role}
	assert.Equal(t, []string{"system", "user", "assistant", "user"}, roles)
	assert.Equal(t, "what time is it", seen.Messages[1].Content)
}

func TestClientChatNoChoices(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`, nil)

	c := NewClient(Options{APIKey: "test-key", BaseURL: srv.URL + "/", Model: "m"})

	_, err := c.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.ErrServiceUnreachable)
}

func TestClientChatAPIError(t *testing.T) {
	srv := newServer(t, http.StatusUnauthorized, `{"error":{"message":"bad key","type":"invalid_request_error"}}`, nil)

	c := NewClient(Options{APIKey: "test-key", BaseURL: srv.URL + "/", Model: "m"})

	_, err := c.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.ErrServiceUnreachable)
}
