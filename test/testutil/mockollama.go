package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
)

// MockOllama is an httptest.Server that simulates the local daemon's
// /api/chat and /api/tags endpoints.
type MockOllama struct {
	Server *httptest.Server

	Answer string
	Models []string

	mu          sync.Mutex
	lastRequest map[string]any
}

// NewMockOllama creates and starts a mock daemon.
func NewMockOllama(answer string, models ...string) *MockOllama {
	m := &MockOllama{Answer: answer, Models: models}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// Close shuts down the mock server.
func (m *MockOllama) Close() {
	m.Server.Close()
}

// URL returns the base URL of the mock server.
func (m *MockOllama) URL() string {
	return m.Server.URL
}

// LastRequest returns the most recent /api/chat body parsed.
func (m *MockOllama) LastRequest() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequest
}

func (m *MockOllama) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/api/tags" && r.Method == http.MethodGet:
		models := make([]map[string]any, 0, len(m.Models))
		for _, name := range m.Models {
			models = append(models, map[string]any{"name": name, "model": name, "size": 2019393189})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"models": models})

	case r.URL.Path == "/api/chat" && r.Method == http.MethodPost:
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
			return
		}
		m.mu.Lock()
		m.lastRequest = body
		m.mu.Unlock()

		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":             body["model"],
			"message":           map[string]any{"role": "assistant", "content": m.Answer},
			"done":              true,
			"done_reason":       "stop",
			"prompt_eval_count": 12,
			"eval_count":        len(splitWords(m.Answer)),
		})

	default:
		http.NotFound(w, r)
	}
}
