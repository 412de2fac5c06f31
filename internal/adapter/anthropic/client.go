package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zhengjr9/agent-studio/internal/chat"
	apierrors "github.com/zhengjr9/agent-studio/internal/errors"
)

// APIVersion is sent as the anthropic-version header.
const APIVersion = "2023-06-01"

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 64 << 10

// Client sends requests to the Anthropic Messages API.
type Client struct {
	// messagesURL is the full URL of the Messages endpoint. A base host gets
	// "/v1/messages" appended.
	messagesURL string
	httpClient  *http.Client
	// streamClient bounds the whole streamed exchange, body reads included.
	streamClient *http.Client
	transport    *http.Transport
}

// NewClient constructs a Client. chatTimeout bounds blocking calls and
// streamTimeout bounds a complete streamed response.
func NewClient(baseURL string, chatTimeout, streamTimeout time.Duration) *Client {
	messagesURL := strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(messagesURL, "/v1/messages") {
		messagesURL += "/v1/messages"
	}

	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	return &Client{
		messagesURL:  messagesURL,
		httpClient:   &http.Client{Timeout: chatTimeout, Transport: transport},
		streamClient: &http.Client{Timeout: streamTimeout, Transport: transport},
		transport:    transport,
	}
}

// SetProxy routes both clients through proxyURL instead of the environment
// proxy. An empty proxyURL keeps the environment setting.
func (c *Client) SetProxy(proxyURL string) error {
	if proxyURL == "" {
		return nil
	}
	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("parse proxy url: %w", err)
	}
	c.transport.Proxy = http.ProxyURL(parsed)
	return nil
}

// Name implements adapter.Backend.
func (c *Client) Name() string { return "anthropic" }

// SendChat performs a blocking Messages call and joins every text block of
// the answer in order.
func (c *Client) SendChat(ctx context.Context, p chat.Payload, apiKey string) (*chat.Result, error) {
	p.Stream = false
	resp, err := c.do(ctx, c.httpClient, p, apiKey)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out MessagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if apierrors.IsTimeout(err) {
			return nil, &apierrors.TimeoutError{Op: "anthropic", Err: err}
		}
		return nil, &apierrors.ProtocolError{Err: fmt.Errorf("decode response: %w", err)}
	}

	result := &chat.Result{
		Content:    JoinText(out.Content),
		Model:      out.Model,
		Usage:      chat.Usage{InputTokens: out.Usage.InputTokens, OutputTokens: out.Usage.OutputTokens},
		StopReason: out.StopReason,
	}
	if result.Model == "" {
		result.Model = p.Model
	}
	if result.StopReason == "" {
		result.StopReason = "end_turn"
	}
	return result, nil
}

// StreamChat opens a streaming Messages call and returns the raw SSE body.
// A non-2xx answer is returned as *errors.UpstreamError with the body read
// and closed.
func (c *Client) StreamChat(ctx context.Context, p chat.Payload, apiKey string) (io.ReadCloser, error) {
	p.Stream = true
	resp, err := c.do(ctx, c.streamClient, p, apiKey)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) do(ctx context.Context, client *http.Client, p chat.Payload, apiKey string) (*http.Response, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.messagesURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", apiKey)
	httpReq.Header.Set("anthropic-version", APIVersion)
	if p.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		if apierrors.IsTimeout(err) {
			return nil, &apierrors.TimeoutError{Op: "anthropic", Err: err}
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("anthropic request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, &apierrors.UpstreamError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, nil
}

// JoinText concatenates the text of every "text" block, in order.
func JoinText(blocks []ContentBlock) string {
	var sb strings.Builder
	for _, b := range blocks {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}
