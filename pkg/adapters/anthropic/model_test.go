package anthropic_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/redline/pkg/adapters/anthropic"
	"github.com/aretw0/redline/pkg/ports"
)

const textReply = `{"id":"msg_1","type":"message","role":"assistant","model":"m",
	"content":[{"type":"text","text":"{\"passed\": "},{"type":"text","text":"true}"}],
	"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`

func TestModel_Chat(t *testing.T) {
	var got struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		System    []struct {
			Text string `json:"text"`
		} `json:"system"`
		Messages []struct {
			Role string `json:"role"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(textReply))
	}))
	defer srv.Close()

	model := anthropic.New("key", anthropic.WithBaseURL(srv.URL), anthropic.WithMaxTokens(512))
	reply, err := model.Chat(context.Background(), []ports.Message{
		{Role: ports.RoleSystem, Content: "You are quality control."},
		{Role: ports.RoleUser, Content: "Check this."},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"passed": true}`, reply)
	assert.Equal(t, anthropic.DefaultModel, got.Model)
	assert.Equal(t, 512, got.MaxTokens)
	require.Len(t, got.System, 1)
	assert.Equal(t, "You are quality control.", got.System[0].Text)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
}

func TestModel_ChatFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"type":"error","error":{"type":"api_error","message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	model := anthropic.New("key", anthropic.WithBaseURL(srv.URL),
		anthropic.WithRequestOptions(option.WithMaxRetries(0)))
	_, err := model.Chat(context.Background(), []ports.Message{{Role: ports.RoleUser, Content: "hi"}})
	assert.Error(t, err)
}
