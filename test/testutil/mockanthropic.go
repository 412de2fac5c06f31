package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
)

// MockAnthropic is an httptest.Server that simulates the hosted /v1/messages endpoint.
type MockAnthropic struct {
	Server *httptest.Server

	// Answer is returned whole when blocking and word by word when streaming.
	Answer string

	mu          sync.Mutex
	status      int
	truncate    bool
	lastRequest map[string]any
	lastAPIKey  string
	requests    int
}

// NewMockAnthropic creates and starts a mock hosted provider.
func NewMockAnthropic(answer string) *MockAnthropic {
	m := &MockAnthropic{Answer: answer}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// Close shuts down the mock server.
func (m *MockAnthropic) Close() {
	m.Server.Close()
}

// URL returns the base URL of the mock server.
func (m *MockAnthropic) URL() string {
	return m.Server.URL
}

// SetStatus makes every following request fail with status; 0 restores
// normal answers.
func (m *MockAnthropic) SetStatus(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
}

// SetTruncate makes streams end without the terminal message_stop event.
func (m *MockAnthropic) SetTruncate(truncate bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.truncate = truncate
}

// LastRequest returns the most recent request body parsed.
func (m *MockAnthropic) LastRequest() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequest
}

// LastAPIKey returns the x-api-key header of the most recent request.
func (m *MockAnthropic) LastAPIKey() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastAPIKey
}

// Requests returns the number of requests served.
func (m *MockAnthropic) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

func (m *MockAnthropic) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/messages" || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	m.mu.Lock()
	m.lastRequest = body
	m.lastAPIKey = r.Header.Get("x-api-key")
	m.requests++
	status, truncate := m.status, m.truncate
	m.mu.Unlock()

	if status != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"type":"error","error":{"type":"mock_error","message":"status %d"}}`, status)
		return
	}

	if stream, _ := body["stream"].(bool); stream {
		m.writeStreaming(w, truncate)
		return
	}
	m.writeBlocking(w, body)
}

func (m *MockAnthropic) writeBlocking(w http.ResponseWriter, body map[string]any) {
	resp := map[string]any{
		"id":          "msg_mock",
		"type":        "message",
		"role":        "assistant",
		"model":       body["model"],
		"content":     []any{map[string]any{"type": "text", "text": m.Answer}},
		"stop_reason": "end_turn",
		"usage":       map[string]any{"input_tokens": 10, "output_tokens": len(splitWords(m.Answer))},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (m *MockAnthropic) writeStreaming(w http.ResponseWriter, truncate bool) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, hasFlusher := w.(http.Flusher)

	send := func(event string, payload any) {
		data, _ := json.Marshal(payload)
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
		if hasFlusher {
			flusher.Flush()
		}
	}

	send("message_start", map[string]any{"type": "message_start", "message": map[string]any{"id": "msg_mock", "role": "assistant"}})
	send("content_block_start", map[string]any{"type": "content_block_start", "index": 0, "content_block": map[string]any{"type": "text", "text": ""}})
	send("ping", map[string]any{"type": "ping"})

	words := splitWords(m.Answer)
	for i, word := range words {
		if i > 0 {
			word = " " + word
		}
		send("content_block_delta", map[string]any{
			"type":  "content_block_delta",
			"index": 0,
			"delta": map[string]any{"type": "text_delta", "text": word},
		})
	}
	if truncate {
		return
	}

	send("content_block_stop", map[string]any{"type": "content_block_stop", "index": 0})
	send("message_delta", map[string]any{
		"type":  "message_delta",
		"delta": map[string]any{"stop_reason": "end_turn"},
		"usage": map[string]any{"output_tokens": len(words)},
	})
	send("message_stop", map[string]any{"type": "message_stop"})
}

func splitWords(s string) []string {
	var words []string
	start := -1
	for i, c := range s {
		if c != ' ' {
			if start == -1 {
				start = i
			}
		} else {
			if start != -1 {
				words = append(words, s[start:i])
				start = -1
			}
		}
	}
	if start != -1 {
		words = append(words, s[start:])
	}
	if len(words) == 0 {
		words = []string{s}
	}
	return words
}
