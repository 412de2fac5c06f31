package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhengjr9/agent-studio/internal/chat"
	apierrors "github.com/zhengjr9/agent-studio/internal/errors"
)

func payload(system string) chat.Payload {
	return chat.Build(&chat.Request{
		Model:    "llama3.2",
		System:   system,
		Messages: []chat.Message{{Role: "user", Content: "hi"}},
	}, chat.Defaults{Model: "llama3.2", MaxTokens: 1024}, false)
}

func TestSendChat(t *testing.T) {
	var got ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"model":"llama3.2","message":{"role":"assistant","content":"hola"},"done":true,
			"done_reason":"stop","prompt_eval_count":7,"eval_count":3}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	defer c.Close()

	res, err := c.SendChat(context.Background(), payload("be terse"), "")
	require.NoError(t, err)

	assert.Equal(t, &chat.Result{
		Content:    "hola",
		Model:      "llama3.2",
		Usage:      chat.Usage{InputTokens: 7, OutputTokens: 3},
		StopReason: "stop",
	}, res)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, chat.Message{Role: "system", Content: "be terse"}, got.Messages[0])
}

func TestSendChat_NonSuccessIsLocalUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model 'nope' not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).SendChat(context.Background(), payload(""), "")

	var upErr *apierrors.UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.True(t, upErr.Local)
	assert.Equal(t, http.StatusBadGateway, apierrors.StatusFor(err))
}

func TestSendChat_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second).SendChat(context.Background(), payload(""), "")

	assert.Equal(t, http.StatusBadGateway, apierrors.StatusFor(err))
}

func TestListModelsAndPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"models":[{"name":"llama3.2:latest","size":2019393189},{"name":"qwen2.5:7b"}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	models, err := c.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "llama3.2:latest", models[0].Name)
	assert.Equal(t, "online", c.Ping(context.Background()))
}

func TestPing_Offline(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	assert.Equal(t, "offline", NewClient(url, time.Second).Ping(context.Background()))
}
