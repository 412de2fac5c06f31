// Package chat holds the backend-independent chat model shared by the
// adapters, the dispatcher and the HTTP layer.
package chat

import "strings"

// Provider is the optional routing hint carried by a request.
type Provider string

const (
	ProviderHosted Provider = "hosted"
	ProviderLocal  Provider = "local"
)

// Normalize folds the legacy provider names sent by older clients.
func (p Provider) Normalize() Provider {
	switch strings.ToLower(string(p)) {
	case "local", "ollama":
		return ProviderLocal
	case "hosted", "anthropic":
		return ProviderHosted
	}
	return ""
}

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role" validate:"required"`
	Content string `json:"content"`
}

// Request is the normalized chat request sent by the browser client.
type Request struct {
	Messages    []Message `json:"messages" validate:"dive"`
	Model       string    `json:"model,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty" validate:"gte=0"`
	System      string    `json:"system,omitempty"`
	Temperature *float64  `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	Provider    Provider  `json:"provider,omitempty" validate:"omitempty,oneof=hosted local anthropic ollama"`
	APIKey      string    `json:"api_key,omitempty"`
}

// TakeCredential returns the inline credential and clears it from the
// request so that later logging or echoing cannot leak it.
func (r *Request) TakeCredential() string {
	key := strings.TrimSpace(r.APIKey)
	r.APIKey = ""
	return key
}

// Usage carries token counts reported by a backend.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Result is the complete answer of a non-streaming call.
type Result struct {
	Content    string `json:"content"`
	Model      string `json:"model"`
	Usage      Usage  `json:"usage"`
	StopReason string `json:"stop_reason"`
}

// EventKind discriminates StreamEvent variants.
type EventKind int

const (
	EventToken EventKind = iota + 1
	EventUsage
	EventError
	EventDone
)

func (k EventKind) String() string {
	switch k {
	case EventToken:
		return "token"
	case EventUsage:
		return "usage"
	case EventError:
		return "error"
	case EventDone:
		return "done"
	}
	return "unknown"
}

// StreamEvent is one unit of the normalized client-facing stream.
// Only the field matching Kind is meaningful.
type StreamEvent struct {
	Kind    EventKind
	Text    string
	Usage   Usage
	Message string
}

func Token(text string) StreamEvent { return StreamEvent{Kind: EventToken, Text: text} }

func UsageEvent(u Usage) StreamEvent { return StreamEvent{Kind: EventUsage, Usage: u} }

func ErrorEvent(msg string) StreamEvent { return StreamEvent{Kind: EventError, Message: msg} }

func Done() StreamEvent { return StreamEvent{Kind: EventDone} }
