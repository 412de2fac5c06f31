// Package ollama speaks the local model daemon's /api/chat contract.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"resty.dev/v3"

	"github.com/zhengjr9/agent-studio/internal/chat"
	apierrors "github.com/zhengjr9/agent-studio/internal/errors"
)

// pingTimeout bounds the tags and health requests.
const pingTimeout = 2 * time.Second

// Client sends requests to an Ollama daemon.
type Client struct {
	chat *resty.Client
	ping *resty.Client
}

// NewClient constructs a Client for the daemon at host. timeout bounds a
// complete chat call.
func NewClient(host string, timeout time.Duration) *Client {
	base := strings.TrimRight(host, "/")
	return &Client{
		chat: resty.New().
			SetBaseURL(base).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		ping: resty.New().
			SetBaseURL(base).
			SetTimeout(pingTimeout),
	}
}

// Name implements adapter.Backend.
func (c *Client) Name() string { return "ollama" }

// Close releases idle connections.
func (c *Client) Close() error {
	c.chat.Close()
	c.ping.Close()
	return nil
}

// SendChat performs a non-streaming /api/chat call. Every failure is
// reported as a local *errors.UpstreamError; the daemon's error text is not
// structured enough to decompose.
func (c *Client) SendChat(ctx context.Context, p chat.Payload, _ string) (*chat.Result, error) {
	req := toChatRequest(p)
	resp, err := c.chat.R().
		SetContext(ctx).
		SetBody(req).
		Post("/api/chat")
	if err != nil {
		return nil, &apierrors.UpstreamError{Local: true, Err: err}
	}

	if !resp.IsSuccess() {
		return nil, &apierrors.UpstreamError{Local: true, StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	var out ChatResponse
	if err := json.Unmarshal(resp.Bytes(), &out); err != nil {
		return nil, &apierrors.UpstreamError{Local: true, StatusCode: resp.StatusCode(), Err: fmt.Errorf("decode response: %w", err)}
	}

	stop := out.DoneReason
	if stop == "" {
		stop = "stop"
	}
	model := out.Model
	if model == "" {
		model = p.Model
	}
	return &chat.Result{
		Content:    out.Message.Content,
		Model:      model,
		Usage:      chat.Usage{InputTokens: out.PromptEvalCount, OutputTokens: out.EvalCount},
		StopReason: stop,
	}, nil
}

// ListModels returns the models installed in the daemon.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	resp, err := c.ping.R().SetContext(ctx).Get("/api/tags")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("ollama tags: status %d", resp.StatusCode())
	}

	var tags TagsResponse
	if err := json.Unmarshal(resp.Bytes(), &tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return tags.Models, nil
}

// Ping reports "online", "error" or "offline".
func (c *Client) Ping(ctx context.Context) string {
	resp, err := c.ping.R().SetContext(ctx).Get("/api/tags")
	if err != nil {
		return "offline"
	}
	if resp.IsSuccess() {
		return "online"
	}
	return "error"
}

func toChatRequest(p chat.Payload) ChatRequest {
	msgs := make([]chat.Message, 0, len(p.Messages)+1)
	if p.System != "" {
		msgs = append(msgs, chat.Message{Role: "system", Content: p.System})
	}
	msgs = append(msgs, p.Messages...)
	return ChatRequest{Model: p.Model, Messages: msgs, Stream: false}
}
