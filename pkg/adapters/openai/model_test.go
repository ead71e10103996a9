package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/redline/pkg/adapters/openai"
	"github.com/aretw0/redline/pkg/ports"
)

func TestModel_Chat(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":0,"model":"m",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"[]"}}]}`))
	}))
	defer srv.Close()

	model := openai.New("sk-test", openai.WithBaseURL(srv.URL), openai.WithModel("gpt-test"))
	reply, err := model.Chat(context.Background(), []ports.Message{
		{Role: ports.RoleSystem, Content: "You are a risk analyst."},
		{Role: ports.RoleUser, Content: "Clause 4.1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "[]", reply)
	assert.Equal(t, "gpt-test", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "Clause 4.1", got.Messages[1].Content)
}

func TestModel_ChatFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	model := openai.New("sk-test", openai.WithBaseURL(srv.URL),
		openai.WithRequestOptions(option.WithMaxRetries(0)))
	_, err := model.Chat(context.Background(), []ports.Message{{Role: ports.RoleUser, Content: "hi"}})
	assert.Error(t, err)
}

func TestModel_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":0,"model":"m","choices":[]}`))
	}))
	defer srv.Close()

	model := openai.New("sk-test", openai.WithBaseURL(srv.URL))
	_, err := model.Chat(context.Background(), []ports.Message{{Role: ports.RoleUser, Content: "hi"}})
	assert.ErrorIs(t, err, openai.ErrEmptyReply)
}
