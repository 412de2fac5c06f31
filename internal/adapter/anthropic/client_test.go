package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhengjr9/agent-studio/internal/chat"
	apierrors "github.com/zhengjr9/agent-studio/internal/errors"
)

const testKey = "sk-ant-test-key"

func testPayload() chat.Payload {
	return chat.Build(&chat.Request{
		Messages: []chat.Message{{Role: "user", Content: "hi"}},
	}, chat.Defaults{Model: "claude-sonnet-4-20250514", MaxTokens: 1024}, false)
}

func TestSendChat_JoinsTextBlocks(t *testing.T) {
	var gotHeaders http.Header
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		gotHeaders = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-20250514",
			"content":[{"type":"text","text":"hel"},{"type":"tool_use","id":"t"},{"type":"text","text":"lo"}],
			"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":2}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, 5*time.Second)
	res, err := c.SendChat(context.Background(), testPayload(), testKey)
	require.NoError(t, err)

	assert.Equal(t, "hello", res.Content)
	assert.Equal(t, "claude-sonnet-4-20250514", res.Model)
	assert.Equal(t, "end_turn", res.StopReason)
	assert.Equal(t, chat.Usage{InputTokens: 3, OutputTokens: 2}, res.Usage)

	assert.Equal(t, testKey, gotHeaders.Get("x-api-key"))
	assert.Equal(t, APIVersion, gotHeaders.Get("anthropic-version"))
	assert.Equal(t, false, gotBody["stream"])
	assert.NotContains(t, gotBody, "system")
}

func TestSendChat_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 5*time.Second, 5*time.Second).SendChat(context.Background(), testPayload(), testKey)

	var upErr *apierrors.UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusTooManyRequests, upErr.StatusCode)
	assert.Contains(t, upErr.Body, "rate_limit_error")
	assert.Equal(t, http.StatusTooManyRequests, apierrors.StatusFor(err))
}

func TestSendChat_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewClient(srv.URL, 50*time.Millisecond, time.Second).SendChat(context.Background(), testPayload(), testKey)

	var te *apierrors.TimeoutError
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.Equal(t, http.StatusGatewayTimeout, apierrors.StatusFor(err))
}

func TestSendChat_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>not json</html>`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second, time.Second).SendChat(context.Background(), testPayload(), testKey)

	var pe *apierrors.ProtocolError
	assert.True(t, errors.As(err, &pe))
}

func TestStreamChat_ReturnsRawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, delta("Hi")+"\n\n"+stopLine+"\n\n")
	}))
	defer srv.Close()

	body, err := NewClient(srv.URL, time.Second, time.Second).StreamChat(context.Background(), testPayload(), testKey)
	require.NoError(t, err)
	defer body.Close()

	got := slices.Collect(Translate(body))
	assert.Equal(t, []chat.StreamEvent{chat.Token("Hi"), chat.Done()}, got)
}

func TestStreamChat_RejectedHandshake(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second, time.Second).StreamChat(context.Background(), testPayload(), testKey)

	var upErr *apierrors.UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, "API error 401", upErr.Error())
}

func TestNewClient_AcceptsFullEndpoint(t *testing.T) {
	c := NewClient("https://relay.example.com/v1/messages/", time.Second, time.Second)
	assert.Equal(t, "https://relay.example.com/v1/messages", c.messagesURL)
}

func TestSetProxy(t *testing.T) {
	c := NewClient("https://api.anthropic.com", time.Second, time.Second)
	require.NoError(t, c.SetProxy(""))
	require.NoError(t, c.SetProxy("http://proxy.internal:3128"))

	req, _ := http.NewRequest(http.MethodPost, c.messagesURL, nil)
	proxy, err := c.transport.Proxy(req)
	require.NoError(t, err)
	assert.Equal(t, "proxy.internal:3128", proxy.Host)

	assert.Error(t, c.SetProxy("http://bad host:1"))
}
